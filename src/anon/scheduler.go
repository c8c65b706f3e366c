/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package anon

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"github.com/vbauerster/mpb/v8"

	"github.com/dbmask/dbmask/src/defs"
	"github.com/dbmask/dbmask/src/pbreporter"
	"github.com/dbmask/dbmask/src/srcdb"
)

// Scheduler runs one TableAnonymizer per table on a bounded pool of workers.
type Scheduler struct {
	db        *sql.DB
	dialect   srcdb.Dialect
	generator ValueGenerator
	ignores   *defs.IgnoreSet
	workers   int
	opts      Options

	// nil disables progress bars
	progressContainer *mpb.Progress
}

func NewScheduler(db *sql.DB, dialect srcdb.Dialect, generator ValueGenerator, ignores *defs.IgnoreSet,
	workers int, opts Options, progressContainer *mpb.Progress) (*Scheduler, error) {
	if workers < 1 {
		return nil, fmt.Errorf("invalid number of workers %d: must be at least 1", workers)
	}
	return &Scheduler{
		db:                db,
		dialect:           dialect,
		generator:         generator,
		ignores:           ignores,
		workers:           workers,
		opts:              opts,
		progressContainer: progressContainer,
	}, nil
}

type indexedReport struct {
	idx    int
	report *TableReport
}

// Run processes all tables and waits for them. The returned error is the
// first fatal task error, after which tables that had not finished are
// reported as aborted.
func (s *Scheduler) Run(ctx context.Context, specs []*defs.TableSpec) (*RunReport, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fatalErr error
	var fatalOnce sync.Once
	p := pool.NewWithResults[indexedReport]().WithMaxGoroutines(s.workers)
	for i, spec := range specs {
		i, spec := i, spec
		p.Go(func() indexedReport {
			if ctx.Err() != nil {
				report := newTableReport(spec.Name)
				report.abort(ctx.Err())
				return indexedReport{idx: i, report: report}
			}
			progress := pbreporter.NewTablePB(s.progressContainer, spec.Name, s.progressContainer == nil)
			ta := NewTableAnonymizer(s.db, s.dialect, spec, s.generator, s.ignores, progress, s.opts)
			report, err := ta.Run(ctx)
			if err != nil {
				fatalOnce.Do(func() {
					log.Errorf("table %s: fatal error, stopping all tables: %v", spec.Name, err)
					fatalErr = err
					cancel()
				})
			}
			return indexedReport{idx: i, report: report}
		})
	}
	results := p.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].idx < results[j].idx })
	runReport := &RunReport{RunID: s.opts.RunID, Elapsed: time.Since(start)}
	for _, r := range results {
		runReport.Tables = append(runReport.Tables, r.report)
	}
	log.Infof("Total time for script execution: %.2f seconds", runReport.Elapsed.Seconds())
	return runReport, fatalErr
}

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
package pbreporter

import (
	log "github.com/sirupsen/logrus"
)

// counterReporter is used when progress bars are off. It keeps the counters
// and logs a line for every tenth of the table.
type counterReporter struct {
	tableName     string
	total         int64
	processed     int64
	unchanged     int64
	lastLoggedPct int64
	completed     bool
}

func newCounterReporter(tableName string) *counterReporter {
	return &counterReporter{tableName: tableName}
}

// SetTotalRowCount with a negative total takes the processed count as total.
func (r *counterReporter) SetTotalRowCount(totalRowCount int64, triggerComplete bool) {
	if totalRowCount < 0 {
		totalRowCount = r.processed
	}
	r.total = totalRowCount
	if triggerComplete && !r.completed {
		r.completed = true
		r.processed = r.total
		log.Debugf("table %s: %d records read, %d left unchanged", r.tableName, r.processed, r.unchanged)
	}
}

func (r *counterReporter) SetProcessedRowCount(processedRowCount int64) {
	if processedRowCount < 0 || r.completed {
		return
	}
	r.processed = processedRowCount
	if r.total <= 0 {
		return
	}
	pct := min(r.processed*100/r.total, 100)
	if pct/10 > r.lastLoggedPct/10 {
		r.lastLoggedPct = pct
		log.Infof("table %s: %d / %d records (%d%%), %d unchanged", r.tableName, r.processed, r.total, pct, r.unchanged)
	}
}

func (r *counterReporter) SetUnchangedRowCount(unchangedRowCount int64) {
	r.unchanged = unchangedRowCount
}

func (r *counterReporter) IsComplete() bool {
	return r.completed
}

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
	"time"

	"github.com/samber/lo"
)

const (
	TABLE_STATUS_DONE    = "DONE"
	TABLE_STATUS_DRY_RUN = "DRY-RUN"
	TABLE_STATUS_SKIPPED = "SKIPPED"
	TABLE_STATUS_FAILED  = "FAILED"
	TABLE_STATUS_ABORTED = "ABORTED"
)

type TableReport struct {
	TableName string
	Status    string
	// why the table was skipped, failed or aborted
	Reason string
	Err    error

	TotalRows         int64
	Processed         int64
	Updated           int64
	Ignored           int64
	UniqueViolations  int64
	GeneratorFailures int64
	Rollbacks         int64

	Elapsed time.Duration
}

func newTableReport(tableName string) *TableReport {
	return &TableReport{TableName: tableName}
}

// unchanged counts the records read but not rewritten.
func (r *TableReport) unchanged() int64 {
	return r.Ignored + r.UniqueViolations + r.GeneratorFailures
}

func (r *TableReport) skip(reason string) {
	r.Status = TABLE_STATUS_SKIPPED
	r.Reason = reason
}

func (r *TableReport) fail(err error) {
	r.Status = TABLE_STATUS_FAILED
	r.Reason = err.Error()
	r.Err = err
	r.Updated = 0
}

func (r *TableReport) abort(err error) {
	r.Status = TABLE_STATUS_ABORTED
	r.Reason = err.Error()
	r.Err = err
	r.Updated = 0
}

type RunReport struct {
	RunID   string
	Tables  []*TableReport
	Elapsed time.Duration
}

func (r *RunReport) CountByStatus(status string) int {
	return lo.CountBy(r.Tables, func(t *TableReport) bool { return t.Status == status })
}

func (r *RunReport) TotalUpdated() int64 {
	return lo.SumBy(r.Tables, func(t *TableReport) int64 { return t.Updated })
}

// SumOfTableElapsed is what the run would have taken with one worker.
func (r *RunReport) SumOfTableElapsed() time.Duration {
	return lo.SumBy(r.Tables, func(t *TableReport) time.Duration { return t.Elapsed })
}

func (r *RunReport) Table(tableName string) *TableReport {
	t, _ := lo.Find(r.Tables, func(t *TableReport) bool { return t.TableName == tableName })
	return t
}

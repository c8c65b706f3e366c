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

import "github.com/vbauerster/mpb/v8"

// TableProgressReporter follows one table task: how many records were read
// and how many of them were left unchanged (ignored, duplicate or exhausted).
type TableProgressReporter interface {
	SetTotalRowCount(totalRowCount int64, triggerComplete bool)
	SetProcessedRowCount(processedRowCount int64)
	SetUnchangedRowCount(unchangedRowCount int64)
	IsComplete() bool
}

func NewTablePB(progressContainer *mpb.Progress, tableName string, disablePb bool) TableProgressReporter {
	if disablePb || progressContainer == nil {
		return newCounterReporter(tableName)
	}
	return newBarReporter(progressContainer, tableName)
}

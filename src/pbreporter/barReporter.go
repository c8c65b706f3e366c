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
	"fmt"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// barReporter draws one mpb bar per table:
//
//	users  1200 / 5000 (3 unchanged) [=====>-----] 24.00% 12s
type barReporter struct {
	bar       *mpb.Bar
	unchanged atomic.Int64
}

func newBarReporter(progressContainer *mpb.Progress, tableName string) *barReporter {
	r := &barReporter{}
	// the total is only known after the row count query
	r.bar = progressContainer.AddBar(0,
		mpb.BarFillerClearOnComplete(),
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(tableName, decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			decor.Any(func(decor.Statistics) string {
				n := r.unchanged.Load()
				if n == 0 {
					return ""
				}
				return fmt.Sprintf(" (%d unchanged)", n)
			}, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.NewPercentage("%.2f", decor.WCSyncSpaceR), "done"),
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), ""),
		),
	)
	return r
}

func (r *barReporter) SetTotalRowCount(totalRowCount int64, triggerComplete bool) {
	r.bar.SetTotal(totalRowCount, triggerComplete)
}

func (r *barReporter) SetProcessedRowCount(processedRowCount int64) {
	r.bar.SetCurrent(processedRowCount)
}

func (r *barReporter) SetUnchangedRowCount(unchangedRowCount int64) {
	r.unchanged.Store(unchangedRowCount)
}

func (r *barReporter) IsComplete() bool {
	return r.bar.Completed()
}

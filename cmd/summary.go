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
package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/dbmask/dbmask/src/anon"
)

func displayRunSummary(report *anon.RunReport) {
	if report == nil || len(report.Tables) == 0 {
		fmt.Println("No tables were processed.")
		return
	}
	fmt.Println(buildSummaryTable(report))
	fmt.Print("\n")
	fmt.Printf("%s tables done, %s skipped, %s failed, %s aborted; %s records updated in %s\n",
		color.GreenString("%d", report.CountByStatus(anon.TABLE_STATUS_DONE)+report.CountByStatus(anon.TABLE_STATUS_DRY_RUN)),
		color.YellowString("%d", report.CountByStatus(anon.TABLE_STATUS_SKIPPED)),
		color.RedString("%d", report.CountByStatus(anon.TABLE_STATUS_FAILED)),
		color.RedString("%d", report.CountByStatus(anon.TABLE_STATUS_ABORTED)),
		humanize.Comma(report.TotalUpdated()),
		report.Elapsed.Round(time.Millisecond))
}

func buildSummaryTable(report *anon.RunReport) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	headerfmt := color.New(color.FgGreen, color.Underline).SprintFunc()
	table.AddRow(headerfmt("TABLE"), headerfmt("STATUS"), headerfmt("ROWS"), headerfmt("UPDATED"),
		headerfmt("IGNORED"), headerfmt("DUPLICATES"), headerfmt("ROLLBACKS"), headerfmt("TIME"), headerfmt("NOTE"))
	for _, t := range report.Tables {
		table.AddRow(t.TableName, colorStatus(t.Status), humanize.Comma(t.TotalRows), humanize.Comma(t.Updated),
			humanize.Comma(t.Ignored), humanize.Comma(t.UniqueViolations+t.GeneratorFailures), t.Rollbacks,
			t.Elapsed.Round(time.Millisecond), t.Reason)
	}
	return table
}

func colorStatus(status string) string {
	switch status {
	case anon.TABLE_STATUS_DONE, anon.TABLE_STATUS_DRY_RUN:
		return color.GreenString(status)
	case anon.TABLE_STATUS_SKIPPED:
		return color.YellowString(status)
	default:
		return color.RedString(status)
	}
}

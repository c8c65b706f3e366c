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
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/dbmask/dbmask/src/fakegen"
)

var generatorCategory string

var generatorsCmd = &cobra.Command{
	Use:   "generators",
	Short: "List the generator names that can be used in the definitions file",

	Run: func(cmd *cobra.Command, args []string) {
		infos := fakegen.Describe()
		if generatorCategory != "" {
			infos = lo.Filter(infos, func(g fakegen.GeneratorInfo, _ int) bool {
				return strings.EqualFold(g.Category, generatorCategory)
			})
		}
		fmt.Println(buildGeneratorsTable(infos))
	},
}

func buildGeneratorsTable(infos []fakegen.GeneratorInfo) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 50
	table.Wrap = true
	headerfmt := color.New(color.FgGreen, color.Underline).SprintFunc()
	table.AddRow(headerfmt("NAME"), headerfmt("CATEGORY"), headerfmt("ALIASES"), headerfmt("EXAMPLE"))
	for _, g := range infos {
		table.AddRow(g.Name, g.Category, strings.Join(g.Aliases, ", "), g.Example)
	}
	return table
}

func init() {
	rootCmd.AddCommand(generatorsCmd)
	generatorsCmd.Flags().StringVar(&generatorCategory, "category", "",
		"only list the generators of this category (e.g. person, internet, address)")
}

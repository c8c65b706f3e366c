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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"github.com/vbauerster/mpb/v8"
	"golang.org/x/term"

	"github.com/dbmask/dbmask/src/anon"
	"github.com/dbmask/dbmask/src/defs"
	"github.com/dbmask/dbmask/src/fakegen"
	"github.com/dbmask/dbmask/src/srcdb"
	"github.com/dbmask/dbmask/src/utils"
)

var (
	source           srcdb.Source
	defsFilePath     string
	ignoresFilePath  string
	threads          int
	maxUniqueRetries int
	disablePb        bool
	seed             int64
	dryRun           bool
)

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize",
	Short: "Anonymize the tables listed in the definitions file",
	Long: `Replace the configured columns of every row of the configured tables with generated values.

Each table is processed in its own transaction. Tables without a single-column primary key are
skipped, and rows whose primary key is listed in the ignores file are left untouched.`,

	PreRun: func(cmd *cobra.Command, args []string) {
		err := validateAnonymizeFlags()
		if err != nil {
			utils.ErrExit("%v", err)
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		anonymize(cmd)
	},
}

func init() {
	rootCmd.AddCommand(anonymizeCmd)
	registerSourceDBConnFlags(anonymizeCmd)
	registerAnonymizeFlags(anonymizeCmd)
}

func registerSourceDBConnFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&source.DBType, "db-type", srcdb.POSTGRESQL,
		fmt.Sprintf("database type, one of %s", strings.Join(srcdb.ValidDBTypes, ", ")))
	cmd.Flags().StringVar(&source.Driver, "driver", "",
		"database/sql driver name (pgx or postgres for postgresql; default depends on --db-type)")
	cmd.Flags().StringVar(&source.Host, "host", "localhost", "database server host")
	cmd.Flags().IntVar(&source.Port, "port", 0,
		"database server port (default 5432 for postgresql, 3306 for mysql)")
	cmd.Flags().StringVar(&source.User, "user", "", "database user")
	cmd.Flags().StringVarP(&source.Password, "password", "p", "",
		"database password (can also be set with the DBMASK_PASSWORD environment variable)")
	cmd.Flags().StringVar(&source.DBName, "name", "", "database name, or the database file path for sqlite")
	cmd.Flags().StringVar(&source.SSLMode, "ssl-mode", "prefer",
		"one of disable, allow, prefer, require, verify-ca, verify-full")
	cmd.Flags().StringVar(&source.Uri, "uri", "",
		"full connection URI or DSN; overrides host, port, user, password, name and ssl-mode")
}

func registerAnonymizeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&defsFilePath, "defs", "defs.yaml", "path of the table definitions file")
	cmd.Flags().StringVar(&ignoresFilePath, "ignores", "ignores.yaml",
		"path of the file listing primary keys that must not be modified")
	cmd.Flags().IntVar(&threads, "threads", 1, "number of tables processed in parallel")
	cmd.Flags().IntVar(&maxUniqueRetries, "max-unique-retries", anon.DEFAULT_MAX_UNIQUE_RETRIES,
		"attempts to generate a value not yet used in a unique column before the record is left unchanged")
	cmd.Flags().BoolVar(&disablePb, "disable-pb", false, "disable progress bars")
	cmd.Flags().Int64Var(&seed, "seed", 0,
		"seed of the value generators, overrides generatorConfig.seed (0 means random)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"generate and apply all updates but roll every table back at the end")
}

func validateAnonymizeFlags() error {
	if !lo.Contains(srcdb.ValidDBTypes, source.DBType) {
		return fmt.Errorf("invalid --db-type %q: must be one of %v", source.DBType, srcdb.ValidDBTypes)
	}
	if source.Uri == "" && source.DBName == "" {
		return fmt.Errorf(`one of the flags "name" or "uri" must be set`)
	}
	if source.DBType == srcdb.POSTGRESQL && source.Driver != "" && !lo.Contains([]string{srcdb.PGX_DRIVER, srcdb.PQ_DRIVER}, source.Driver) {
		return fmt.Errorf("invalid --driver %q for postgresql: must be %q or %q", source.Driver, srcdb.PGX_DRIVER, srcdb.PQ_DRIVER)
	}
	if threads < 1 {
		return fmt.Errorf("invalid --threads %d: must be at least 1", threads)
	}
	if maxUniqueRetries < 1 {
		return fmt.Errorf("invalid --max-unique-retries %d: must be at least 1", maxUniqueRetries)
	}
	return nil
}

func anonymize(cmd *cobra.Command) {
	runID := uuid.New().String()
	log.Infof("run id: %s", runID)
	source.ApplyDefaults()

	definitions, err := defs.LoadDefinitions(defsFilePath)
	if err != nil {
		utils.ErrExit("failed to load table definitions: %v", err)
	}
	ignores, err := defs.LoadIgnoreSet(ignoresFilePath, cmd.Flags().Changed("ignores"))
	if err != nil {
		utils.ErrExit("failed to load the ignore list: %v", err)
	}
	log.Infof("loaded %d table definitions and %d ignored ids", len(definitions.Tables), ignores.Len())

	genConfig := fakegen.Config{
		Locales: definitions.GeneratorConfig.Locales,
		Seed:    definitions.GeneratorConfig.Seed,
	}
	if cmd.Flags().Changed("seed") {
		genConfig.Seed = seed
	}
	registry, err := fakegen.NewRegistry(genConfig)
	if err != nil {
		utils.ErrExit("invalid generator config in %s: %v", defsFilePath, err)
	}
	err = registry.ValidateAll(definitions.AllGeneratorNames())
	if err != nil {
		utils.ErrExit("unsupported generators in %s:\n%v", defsFilePath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	atexit.Register(cancel)

	db, err := source.Open(ctx, 2*threads+1)
	if err != nil {
		utils.ErrExit("%v", err)
	}
	defer db.Close()

	var progressContainer *mpb.Progress
	if showProgressBars() {
		progressContainer = mpb.NewWithContext(ctx)
	}
	scheduler, err := anon.NewScheduler(db, source.Dialect(), registry, ignores, threads,
		anon.Options{MaxUniqueRetries: maxUniqueRetries, DryRun: dryRun, RunID: runID}, progressContainer)
	if err != nil {
		utils.ErrExit("%v", err)
	}
	if dryRun {
		utils.PrintAndLog("Dry run: no changes will be committed.")
	}
	report, runErr := scheduler.Run(ctx, definitions.Tables)
	if progressContainer != nil {
		progressContainer.Wait()
	}
	displayRunSummary(report)
	if runErr != nil {
		utils.ErrExit("anonymization stopped: %v", runErr)
	}
}

func showProgressBars() bool {
	if disablePb {
		return false
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		log.Infof("stdout is not a terminal, progress bars disabled")
		return false
	}
	return true
}

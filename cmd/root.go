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
	"os"
	"path/filepath"

	"github.com/nightlyone/lockfile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/dbmask/dbmask/src/config"
	"github.com/dbmask/dbmask/src/utils"
)

var (
	cfgFile  string
	logDir   string
	lockFile lockfile.Lockfile
	locked   bool
)

var rootCmd = &cobra.Command{
	Use:   "dbmask",
	Short: "Replace sensitive column values of a live database with synthetic data",
	Long: `dbmask rewrites the configured columns of every row of the configured tables with values
produced by named fake-data generators, in place, one transaction per table.
Supported databases are PostgreSQL, MySQL and SQLite.`,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		overrides, err := initConfig(cmd)
		if err != nil {
			utils.ErrExit("failed to load the config: %v", err)
		}
		err = config.ValidateLogLevel()
		if err != nil {
			utils.ErrExit("%v", err)
		}

		if !needsLogDir(cmd) {
			InitLogging("", true, cmd.Use)
			return
		}
		err = os.MkdirAll(logDir, 0755)
		if err != nil {
			utils.ErrExit("failed to create log dir %q: %v", logDir, err)
		}
		lockLogDir()
		InitLogging(logDir, false, cmd.Use)
		for _, o := range overrides {
			log.Infof("flag %s set from %s", o.FlagName, o.ConfigKey)
			if config.IsLogLevelDebugOrBelow() {
				utils.PrintAndLog("Using %s from config key %s", o.FlagName, o.ConfigKey)
			}
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			cmd.Help()
			os.Exit(0)
		}
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if needsLogDir(cmd) {
			unlockLogDir()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "",
		"path of the config file (default $DBMASK_CONFIG_FILE or $HOME/dbmask-config.yaml)")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel, "log-level", config.INFO,
		"log level: trace, debug, info, warn, error, fatal or panic")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", ".",
		"directory under which the logs/ folder is created")
}

func needsLogDir(cmd *cobra.Command) bool {
	return cmd.HasParent() && cmd.Use != "version" && cmd.Use != "generators"
}

func lockLogDir() {
	lockFilePath, err := filepath.Abs(filepath.Join(logDir, ".dbmask.lck"))
	if err != nil {
		utils.ErrExit("Failed to get absolute path for lockfile in %q: %v\n", logDir, err)
	}
	lockFile, err = lockfile.New(lockFilePath)
	if err != nil {
		utils.ErrExit("Failed to create lockfile %q: %v\n", lockFilePath, err)
	}

	err = lockFile.TryLock()
	if err == nil {
		locked = true
		atexit.Register(func() {
			if locked {
				_ = lockFile.Unlock()
			}
		})
		return
	} else if err == lockfile.ErrBusy {
		utils.ErrExit("Another instance of dbmask is running with log-dir = %s\n", logDir)
	} else {
		utils.ErrExit("Unable to lock the log-dir: %v\n", err)
	}
}

func unlockLogDir() {
	if !locked {
		return
	}
	err := lockFile.Unlock()
	if err != nil {
		utils.ErrExit("Unable to unlock %q: %v\n", lockFile, err)
	}
	locked = false
}

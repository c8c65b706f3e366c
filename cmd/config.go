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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ENV_PREFIX         = "DBMASK"
	SourceConfigPrefix = "source."
)

var allowedGlobalConfigKeys = mapset.NewThreadUnsafeSet[string](
	"log-level", "log-dir",
)

// flags of the anonymize command that describe the database connection; in
// the config file they live under the source section.
var allowedSourceConfigKeys = mapset.NewThreadUnsafeSet[string](
	"db-type", "driver", "host", "port", "user", "password", "name", "ssl-mode", "uri",
)

var allowedAnonymizeConfigKeys = mapset.NewThreadUnsafeSet[string](
	"defs", "ignores", "threads", "max-unique-retries", "disable-pb", "seed", "dry-run",
)

var allowedConfigSections = map[string]mapset.Set[string]{
	"source":    allowedSourceConfigKeys,
	"anonymize": allowedAnonymizeConfigKeys,
}

// ConfigFlagOverride records a flag whose value came from the config file
// or the environment.
type ConfigFlagOverride struct {
	FlagName  string
	ConfigKey string
	Value     string
}

/*
initConfig loads the .env file, the config file and the DBMASK_* environment
variables into a fresh viper instance and binds them onto the flags of cmd
that were not set on the command line.

	Config file precedence: --config-file > $DBMASK_CONFIG_FILE > $HOME/dbmask-config.yaml
	Value precedence:       CLI flag > config file / environment > flag default
*/
func initConfig(cmd *cobra.Command) ([]ConfigFlagOverride, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	v := newViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if os.Getenv(ENV_PREFIX+"_CONFIG_FILE") != "" {
		v.SetConfigFile(os.Getenv(ENV_PREFIX + "_CONFIG_FILE"))
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(home)
		v.SetConfigName("dbmask-config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", v.ConfigFileUsed())
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = validateConfigFile(v)
	if err != nil {
		return nil, err
	}

	overrides, err := bindCobraFlagsToViper(cmd, v)
	if err != nil {
		return nil, fmt.Errorf("failed to bind cobra flags to viper: %w", err)
	}
	return overrides, nil
}

// newViper returns a viper instance that also resolves keys from DBMASK_*
// environment variables, e.g. DBMASK_PASSWORD or DBMASK_ANONYMIZE_THREADS.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// validateConfigFile rejects unknown global keys, unknown sections and
// unknown keys inside a known section, printing all of them at once.
func validateConfigFile(v *viper.Viper) error {
	invalidGlobalKeys := mapset.NewThreadUnsafeSet[string]()
	invalidSectionKeys := make(map[string]mapset.Set[string])
	invalidSections := mapset.NewThreadUnsafeSet[string]()

	for _, key := range v.AllKeys() {
		parts := strings.Split(key, ".")
		if len(parts) == 1 {
			if !allowedGlobalConfigKeys.Contains(key) {
				invalidGlobalKeys.Add(key)
			}
			continue
		}
		section := parts[0]
		nestedKey := strings.Join(parts[1:], ".")
		allowedKeys, ok := allowedConfigSections[section]
		if !ok {
			invalidSections.Add(section)
			continue
		}
		if !allowedKeys.Contains(nestedKey) {
			if _, exists := invalidSectionKeys[section]; !exists {
				invalidSectionKeys[section] = mapset.NewThreadUnsafeSet[string]()
			}
			invalidSectionKeys[section].Add(nestedKey)
		}
	}

	if invalidGlobalKeys.Cardinality() == 0 && len(invalidSectionKeys) == 0 && invalidSections.Cardinality() == 0 {
		return nil
	}
	if invalidGlobalKeys.Cardinality() > 0 {
		fmt.Printf("%s [%s]\n", color.RedString("Invalid global config keys:"), strings.Join(invalidGlobalKeys.ToSlice(), ", "))
	}
	for section, keys := range invalidSectionKeys {
		fmt.Printf("%s [%s]\n", color.RedString(fmt.Sprintf("Invalid keys in section '%s':", section)), strings.Join(keys.ToSlice(), ", "))
	}
	if invalidSections.Cardinality() > 0 {
		fmt.Printf("%s [%s]\n", color.RedString("Invalid sections:"), strings.Join(invalidSections.ToSlice(), ", "))
	}
	return fmt.Errorf("found invalid configurations in config file: %s", v.ConfigFileUsed())
}

/*
bindCobraFlagsToViper sets every flag of cmd that was not given on the
command line from the first of these keys that viper knows:

	<command-path>.<flag>   e.g. anonymize.threads
	<flag>                  global keys and DBMASK_<FLAG> environment variables
	source.<flag>           connection flags
*/
func bindCobraFlagsToViper(cmd *cobra.Command, v *viper.Viper) ([]ConfigFlagOverride, error) {
	var bindErr error
	var overrides []ConfigFlagOverride

	subCmdPath := strings.TrimSpace(strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()))
	configKeyPrefix := strings.ReplaceAll(subCmdPath, " ", "-")

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Changed || f.Name == "config-file" {
			return
		}
		candidates := []string{f.Name}
		if configKeyPrefix != "" {
			candidates = append([]string{configKeyPrefix + "." + f.Name}, candidates...)
		}
		if allowedSourceConfigKeys.Contains(f.Name) {
			candidates = append(candidates, SourceConfigPrefix+f.Name)
		}
		for _, key := range candidates {
			if !v.IsSet(key) {
				continue
			}
			val := v.GetString(key)
			err := cmd.Flags().Set(f.Name, val)
			if err != nil {
				bindErr = fmt.Errorf("set flag %s from config key %s: %w", f.Name, key, err)
				return
			}
			log.Debugf("flag %s set from config key %s", f.Name, key)
			overrides = append(overrides, ConfigFlagOverride{FlagName: f.Name, ConfigKey: key, Value: val})
			return
		}
	})
	return overrides, bindErr
}

//go:build unit

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
	"strings"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnonymizeCmd() *cobra.Command {
	root := &cobra.Command{Use: "dbmask"}
	c := &cobra.Command{Use: "anonymize", Run: func(cmd *cobra.Command, args []string) {}}
	root.AddCommand(c)
	registerSourceDBConnFlags(c)
	registerAnonymizeFlags(c)
	return c
}

func viperFromYAML(t *testing.T, content string) *viper.Viper {
	v := newViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(content)))
	return v
}

func TestConfigBinding_SectionsAndGlobals(t *testing.T) {
	c := newTestAnonymizeCmd()
	v := viperFromYAML(t, `
log-level: debug
source:
  db-type: mysql
  host: db.internal
  port: 3307
  user: app
  name: shop
anonymize:
  threads: 4
  defs: /etc/dbmask/defs.yaml
  dry-run: true
`)
	require.NoError(t, validateConfigFile(v))

	overrides, err := bindCobraFlagsToViper(c, v)
	require.NoError(t, err)

	assert.Equal(t, "mysql", source.DBType)
	assert.Equal(t, "db.internal", source.Host)
	assert.Equal(t, 3307, source.Port)
	assert.Equal(t, "app", source.User)
	assert.Equal(t, "shop", source.DBName)
	assert.Equal(t, 4, threads)
	assert.Equal(t, "/etc/dbmask/defs.yaml", defsFilePath)
	assert.True(t, dryRun)

	keys := mapset.NewThreadUnsafeSet[string]()
	for _, o := range overrides {
		keys.Add(o.ConfigKey)
	}
	assert.True(t, keys.Contains("source.host"))
	assert.True(t, keys.Contains("anonymize.threads"))
}

func TestConfigBinding_CLIOverridesConfig(t *testing.T) {
	c := newTestAnonymizeCmd()
	require.NoError(t, c.Flags().Set("threads", "8"))
	v := viperFromYAML(t, `
anonymize:
  threads: 2
  seed: 99
`)
	_, err := bindCobraFlagsToViper(c, v)
	require.NoError(t, err)
	assert.Equal(t, 8, threads)
	assert.Equal(t, int64(99), seed)
}

func TestConfigBinding_EnvironmentVariables(t *testing.T) {
	t.Setenv("DBMASK_PASSWORD", "from-env")
	t.Setenv("DBMASK_ANONYMIZE_MAX_UNIQUE_RETRIES", "42")
	c := newTestAnonymizeCmd()
	v := newViper()

	overrides, err := bindCobraFlagsToViper(c, v)
	require.NoError(t, err)
	assert.Equal(t, "from-env", source.Password)
	assert.Equal(t, 42, maxUniqueRetries)
	assert.Len(t, overrides, 2)
}

func TestConfigBinding_InvalidValue(t *testing.T) {
	c := newTestAnonymizeCmd()
	v := viperFromYAML(t, `
anonymize:
  threads: many
`)
	_, err := bindCobraFlagsToViper(c, v)
	assert.ErrorContains(t, err, "threads")
}

func TestValidateConfigFile_InvalidKeys(t *testing.T) {
	cases := []string{
		"export-dir: /tmp\n",
		"source:\n  schema: public\n",
		"target:\n  host: localhost\n",
	}
	for _, content := range cases {
		v := viperFromYAML(t, content)
		assert.Error(t, validateConfigFile(v), content)
	}
}

func TestAllowedConfigKeysMatchFlags(t *testing.T) {
	flagNames := mapset.NewThreadUnsafeSet[string]()
	anonymizeCmd.Flags().VisitAll(func(f *pflag.Flag) {
		flagNames.Add(f.Name)
	})
	configKeys := allowedSourceConfigKeys.Union(allowedAnonymizeConfigKeys)

	missingInConfig := flagNames.Difference(configKeys)
	missingInFlags := configKeys.Difference(flagNames)
	assert.True(t, missingInConfig.Cardinality() == 0, "flags missing in allowed config keys: %v", missingInConfig.ToSlice())
	assert.True(t, missingInFlags.Cardinality() == 0, "config keys without a flag: %v", missingInFlags.ToSlice())
	assert.True(t, allowedSourceConfigKeys.Intersect(allowedAnonymizeConfigKeys).Cardinality() == 0)
}

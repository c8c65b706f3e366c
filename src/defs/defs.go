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
package defs

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const DEFAULT_LOCALE = "en_US"

type Field struct {
	Name      string
	Generator string
}

// TableSpec lists the fields to rewrite in one table, in the order they
// appear in the definitions file.
type TableSpec struct {
	Name   string
	Fields []Field
}

func (t *TableSpec) FieldNames() []string {
	return lo.Map(t.Fields, func(f Field, _ int) string { return f.Name })
}

func (t *TableSpec) GeneratorNames() []string {
	return lo.Uniq(lo.Map(t.Fields, func(f Field, _ int) string { return f.Generator }))
}

// WithoutField returns a copy of the spec with the named field dropped.
func (t *TableSpec) WithoutField(name string) *TableSpec {
	return &TableSpec{
		Name:   t.Name,
		Fields: lo.Reject(t.Fields, func(f Field, _ int) bool { return f.Name == name }),
	}
}

type GeneratorConfig struct {
	Locales []string
	Seed    int64
}

type Definitions struct {
	Tables          []*TableSpec
	GeneratorConfig GeneratorConfig
}

func (d *Definitions) TableNames() []string {
	return lo.Map(d.Tables, func(t *TableSpec, _ int) string { return t.Name })
}

func (d *Definitions) AllGeneratorNames() []string {
	return lo.Uniq(lo.FlatMap(d.Tables, func(t *TableSpec, _ int) []string { return t.GeneratorNames() }))
}

func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions file %q: %w", path, err)
	}
	defs, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("parse definitions file %q: %w", path, err)
	}
	log.Infof("loaded definitions for %d tables from %q: %v", len(defs.Tables), path, defs.TableNames())
	return defs, nil
}

func ParseDefinitions(data []byte) (*Definitions, error) {
	var doc yaml.MapSlice
	err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap(), yaml.DisallowDuplicateKey())
	if err != nil {
		return nil, err
	}

	defs := &Definitions{
		GeneratorConfig: GeneratorConfig{Locales: []string{DEFAULT_LOCALE}},
	}
	seenTables := false
	seenGenConfig := false
	for _, item := range doc {
		key := fmt.Sprint(item.Key)
		switch key {
		case "tables":
			seenTables = true
			defs.Tables, err = parseTables(item.Value)
			if err != nil {
				return nil, err
			}
		case "generatorConfig", "faker":
			if seenGenConfig {
				return nil, fmt.Errorf("both 'generatorConfig' and 'faker' are set, use only one of them")
			}
			seenGenConfig = true
			defs.GeneratorConfig, err = parseGeneratorConfig(item.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
		default:
			log.Warnf("ignoring unknown key %q in definitions", key)
		}
	}
	if !seenTables {
		return nil, fmt.Errorf("missing 'tables' section")
	}
	return defs, nil
}

func parseTables(v any) ([]*TableSpec, error) {
	if v == nil {
		return nil, nil
	}
	tables, ok := v.(yaml.MapSlice)
	if !ok {
		return nil, fmt.Errorf("'tables' must be a mapping of table name to fields, got %T", v)
	}
	result := make([]*TableSpec, 0, len(tables))
	for _, item := range tables {
		tableName := strings.TrimSpace(fmt.Sprint(item.Key))
		if tableName == "" {
			return nil, fmt.Errorf("empty table name")
		}
		fields, ok := item.Value.(yaml.MapSlice)
		if !ok || len(fields) == 0 {
			return nil, fmt.Errorf("table %q: expected a non-empty mapping of field name to generator", tableName)
		}
		spec := &TableSpec{Name: tableName}
		for _, f := range fields {
			fieldName := strings.TrimSpace(fmt.Sprint(f.Key))
			generator, ok := f.Value.(string)
			if !ok || strings.TrimSpace(generator) == "" {
				return nil, fmt.Errorf("table %q field %q: generator name must be a non-empty string", tableName, fieldName)
			}
			spec.Fields = append(spec.Fields, Field{Name: fieldName, Generator: strings.TrimSpace(generator)})
		}
		result = append(result, spec)
	}
	return result, nil
}

func parseGeneratorConfig(v any) (GeneratorConfig, error) {
	cfg := GeneratorConfig{Locales: []string{DEFAULT_LOCALE}}
	if v == nil {
		return cfg, nil
	}
	m, ok := v.(yaml.MapSlice)
	if !ok {
		return cfg, fmt.Errorf("expected a mapping, got %T", v)
	}
	for _, item := range m {
		switch key := fmt.Sprint(item.Key); key {
		case "locales":
			locales, err := toStringList(item.Value)
			if err != nil {
				return cfg, fmt.Errorf("locales: %w", err)
			}
			if len(locales) > 0 {
				cfg.Locales = locales
			}
		case "seed":
			seed, err := toInt64(item.Value)
			if err != nil {
				return cfg, fmt.Errorf("seed: %w", err)
			}
			cfg.Seed = seed
		default:
			log.Warnf("ignoring unknown generator config key %q", key)
		}
	}
	return cfg, nil
}

func toStringList(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []any:
		result := make([]string, 0, len(val))
		for _, e := range val {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string, got %v (%T)", e, e)
			}
			result = append(result, s)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", v)
	}
}

func toInt64(v any) (int64, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case uint64:
		return int64(val), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %v (%T)", v, v)
	}
}

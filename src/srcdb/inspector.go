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
package srcdb

import (
	"context"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	log "github.com/sirupsen/logrus"
)

// SchemaMetadata is what the anonymizer needs to know about one table.
// PrimaryKey is empty when the table has no single-column primary key.
type SchemaMetadata struct {
	TableName     string
	PrimaryKey    string
	UniqueColumns mapset.Set[string]

	foldCase bool
}

func (m *SchemaMetadata) HasPrimaryKey() bool {
	return m.PrimaryKey != ""
}

func (m *SchemaMetadata) IsPrimaryKey(columnName string) bool {
	return m.HasPrimaryKey() && m.sameColumn(m.PrimaryKey, columnName)
}

func (m *SchemaMetadata) IsUnique(columnName string) bool {
	if m.UniqueColumns == nil {
		return false
	}
	if m.UniqueColumns.Contains(columnName) {
		return true
	}
	if !m.foldCase {
		return false
	}
	found := false
	m.UniqueColumns.Each(func(c string) bool {
		found = strings.EqualFold(c, columnName)
		return found
	})
	return found
}

func (m *SchemaMetadata) sameColumn(a, b string) bool {
	if m.foldCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

type SchemaInspector struct {
	dialect Dialect
	q       Querier
}

func NewSchemaInspector(dialect Dialect, q Querier) *SchemaInspector {
	return &SchemaInspector{dialect: dialect, q: q}
}

// GetPrimaryKey returns the primary-key column of tableName. found is false
// when the table has no primary key or a composite one.
func (si *SchemaInspector) GetPrimaryKey(ctx context.Context, tableName string) (column string, found bool, err error) {
	columns, err := si.dialect.PrimaryKeyColumns(ctx, si.q, tableName)
	if err != nil {
		return "", false, fmt.Errorf("get primary key of %s: %w", tableName, err)
	}
	switch len(columns) {
	case 0:
		return "", false, nil
	case 1:
		return columns[0], true, nil
	default:
		log.Warnf("table %s has a composite primary key %v, only single column keys are supported", tableName, columns)
		return "", false, nil
	}
}

func (si *SchemaInspector) GetUniqueColumns(ctx context.Context, tableName string) (mapset.Set[string], error) {
	columns, err := si.dialect.UniqueColumns(ctx, si.q, tableName)
	if err != nil {
		return nil, fmt.Errorf("get unique columns of %s: %w", tableName, err)
	}
	return mapset.NewThreadUnsafeSet(columns...), nil
}

func (si *SchemaInspector) Inspect(ctx context.Context, tableName string) (*SchemaMetadata, error) {
	meta := &SchemaMetadata{
		TableName: tableName,
		foldCase:  si.dialect.CaseInsensitiveColumns(),
	}
	pk, found, err := si.GetPrimaryKey(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if !found {
		return meta, nil
	}
	meta.PrimaryKey = pk
	meta.UniqueColumns, err = si.GetUniqueColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}
	log.Infof("table %s: primary key %q, unique columns %v", tableName, pk, meta.UniqueColumns.ToSlice())
	return meta, nil
}

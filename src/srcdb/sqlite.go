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
	"errors"
	"net/url"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/dbmask/dbmask/src/utils/sqlname"
)

const SQLITE_DRIVER = "sqlite3"

// SQLite uses the DBName as the path of the database file.
type SQLite struct {
	source *Source
}

func newSQLite(s *Source) *SQLite {
	return &SQLite{source: s}
}

func (sl *SQLite) Name() string {
	return SQLITE
}

func (sl *SQLite) DriverName() string {
	return SQLITE_DRIVER
}

// ConnectionUri enables WAL so that the streaming reader connection does not
// block commits of the writer connection.
func (sl *SQLite) ConnectionUri() string {
	if sl.source.Uri != "" {
		return sl.source.Uri
	}
	params := url.Values{}
	params.Set("_busy_timeout", "10000")
	params.Set("_journal_mode", "WAL")
	return "file:" + sl.source.DBName + "?" + params.Encode()
}

func (sl *SQLite) RedactedConnectionUri() string {
	return sl.ConnectionUri()
}

func (sl *SQLite) PlaceholderFormat() sq.PlaceholderFormat {
	return sq.Question
}

func (sl *SQLite) QuoteTable(tableName string) string {
	return sqlname.NewObjectName(sqlname.SQLITE, tableName).MinQuoted()
}

func (sl *SQLite) QuoteColumn(columnName string) string {
	return sqlname.MinQuote(sqlname.SQLITE, sqlname.Unquote(columnName))
}

func (sl *SQLite) CaseInsensitiveColumns() bool {
	return true
}

func (sl *SQLite) PrimaryKeyColumns(ctx context.Context, q Querier, tableName string) ([]string, error) {
	name := sqlname.NewObjectName(sqlname.SQLITE, tableName)
	query := `SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk`
	args := []any{name.ObjectName}
	if name.SchemaName != "" {
		query = `SELECT name FROM pragma_table_info(?, ?) WHERE pk > 0 ORDER BY pk`
		args = append(args, name.SchemaName)
	}
	return queryColumnNames(ctx, q, query, args...)
}

func (sl *SQLite) UniqueColumns(ctx context.Context, q Querier, tableName string) ([]string, error) {
	name := sqlname.NewObjectName(sqlname.SQLITE, tableName)
	query := `SELECT DISTINCT ii.name
FROM pragma_index_list(?) AS il
JOIN pragma_index_info(il.name) AS ii
WHERE il."unique" = 1 AND ii.name IS NOT NULL`
	args := []any{name.ObjectName}
	if name.SchemaName != "" {
		query = `SELECT DISTINCT ii.name
FROM pragma_index_list(?, ?) AS il
JOIN pragma_index_info(il.name, ?) AS ii
WHERE il."unique" = 1 AND ii.name IS NOT NULL`
		args = append(args, name.SchemaName, name.SchemaName)
	}
	return queryColumnNames(ctx, q, query, args...)
}

func (sl *SQLite) IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func (sl *SQLite) NeedsStatementSavepoint() bool {
	return false
}

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
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Dialect hides the differences between the supported databases: driver and
// DSN, identifier quoting, catalog queries and error classification.
type Dialect interface {
	Name() string
	DriverName() string
	ConnectionUri() string
	RedactedConnectionUri() string
	PlaceholderFormat() sq.PlaceholderFormat
	QuoteTable(tableName string) string
	QuoteColumn(columnName string) string
	// CaseInsensitiveColumns reports whether column names compare without case.
	CaseInsensitiveColumns() bool
	PrimaryKeyColumns(ctx context.Context, q Querier, tableName string) ([]string, error)
	UniqueColumns(ctx context.Context, q Querier, tableName string) ([]string, error)
	IsUniqueViolation(err error) bool
	// NeedsStatementSavepoint is true when a failed statement aborts the
	// whole transaction unless it ran under a savepoint.
	NeedsStatementSavepoint() bool
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func newDialect(source *Source) Dialect {
	switch source.DBType {
	case POSTGRESQL:
		return newPostgreSQL(source)
	case MYSQL:
		return newMySQL(source)
	case SQLITE:
		return newSQLite(source)
	default:
		panic(fmt.Sprintf("unknown source database type %q", source.DBType))
	}
}

func queryColumnNames(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()
	var result []string
	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("scan result of %q: %w", query, err)
		}
		result = append(result, name)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result of %q: %w", query, err)
	}
	return result, nil
}

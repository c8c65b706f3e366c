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
	"fmt"
	"net/url"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/dbmask/dbmask/src/utils"
	"github.com/dbmask/dbmask/src/utils/sqlname"
)

const (
	PGX_DRIVER = "pgx"
	PQ_DRIVER  = "postgres"

	PG_UNIQUE_VIOLATION = "23505"
)

const pgIndexColumnsQuery = `SELECT a.attname
FROM   pg_index i
JOIN   pg_attribute a ON a.attrelid = i.indrelid
                     AND a.attnum = ANY(i.indkey)
WHERE  i.indrelid = $1::regclass
AND    i.%s`

type PostgreSQL struct {
	source *Source
}

func newPostgreSQL(s *Source) *PostgreSQL {
	return &PostgreSQL{source: s}
}

func (pg *PostgreSQL) Name() string {
	return POSTGRESQL
}

func (pg *PostgreSQL) DriverName() string {
	if pg.source.Driver == PQ_DRIVER {
		return PQ_DRIVER
	}
	return PGX_DRIVER
}

func (pg *PostgreSQL) ConnectionUri() string {
	source := pg.source
	if source.Uri != "" {
		return source.Uri
	}
	sourceUrl := &url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(source.User, source.Password),
		Host:   fmt.Sprintf("%s:%d", source.Host, source.Port),
		Path:   source.DBName,
	}
	sslMode := pg.sslMode()
	if sslMode != "" {
		sourceUrl.RawQuery = url.Values{"sslmode": []string{sslMode}}.Encode()
	}
	return sourceUrl.String()
}

// sslMode translates the libpq modes lib/pq does not know: prefer is left
// to the driver default, allow becomes disable.
func (pg *PostgreSQL) sslMode() string {
	mode := pg.source.SSLMode
	if pg.DriverName() != PQ_DRIVER {
		return mode
	}
	switch mode {
	case "prefer":
		return ""
	case "allow":
		return "disable"
	}
	return mode
}

func (pg *PostgreSQL) RedactedConnectionUri() string {
	return utils.GetRedactedURLs([]string{pg.ConnectionUri()})[0]
}

func (pg *PostgreSQL) PlaceholderFormat() sq.PlaceholderFormat {
	return sq.Dollar
}

func (pg *PostgreSQL) QuoteTable(tableName string) string {
	return sqlname.NewObjectName(sqlname.POSTGRESQL, tableName).MinQuoted()
}

func (pg *PostgreSQL) QuoteColumn(columnName string) string {
	return sqlname.MinQuote(sqlname.POSTGRESQL, sqlname.Unquote(columnName))
}

func (pg *PostgreSQL) CaseInsensitiveColumns() bool {
	return false
}

func (pg *PostgreSQL) PrimaryKeyColumns(ctx context.Context, q Querier, tableName string) ([]string, error) {
	return queryColumnNames(ctx, q, fmt.Sprintf(pgIndexColumnsQuery, "indisprimary"), pg.QuoteTable(tableName))
}

func (pg *PostgreSQL) UniqueColumns(ctx context.Context, q Querier, tableName string) ([]string, error) {
	return queryColumnNames(ctx, q, fmt.Sprintf(pgIndexColumnsQuery, "indisunique"), pg.QuoteTable(tableName))
}

func (pg *PostgreSQL) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == PG_UNIQUE_VIOLATION
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == PG_UNIQUE_VIOLATION
	}
	return false
}

func (pg *PostgreSQL) NeedsStatementSavepoint() bool {
	return true
}

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

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"

	"github.com/dbmask/dbmask/src/utils/sqlname"
)

const (
	MYSQL_DRIVER = "mysql"

	MYSQL_ER_DUP_ENTRY = 1062
)

type MySQL struct {
	source *Source
}

func newMySQL(s *Source) *MySQL {
	return &MySQL{source: s}
}

func (ms *MySQL) Name() string {
	return MYSQL
}

func (ms *MySQL) DriverName() string {
	return MYSQL_DRIVER
}

func (ms *MySQL) ConnectionUri() string {
	source := ms.source
	if source.Uri != "" {
		return source.Uri
	}
	cfg := mysql.NewConfig()
	cfg.User = source.User
	cfg.Passwd = source.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", source.Host, source.Port)
	cfg.DBName = source.DBName
	switch source.SSLMode {
	case "":
	case "disable":
		cfg.TLSConfig = "false"
	case "prefer", "allow":
		cfg.TLSConfig = "preferred"
	case "require":
		cfg.TLSConfig = "skip-verify"
	case "verify-ca", "verify-full":
		cfg.TLSConfig = "true"
	default:
		log.Warnf("unknown ssl mode %q for mysql, using driver default", source.SSLMode)
	}
	return cfg.FormatDSN()
}

func (ms *MySQL) RedactedConnectionUri() string {
	cfg, err := mysql.ParseDSN(ms.ConnectionUri())
	if err != nil {
		return "<unparseable dsn>"
	}
	if cfg.Passwd != "" {
		cfg.Passwd = "xxxxx"
	}
	return cfg.FormatDSN()
}

func (ms *MySQL) PlaceholderFormat() sq.PlaceholderFormat {
	return sq.Question
}

func (ms *MySQL) QuoteTable(tableName string) string {
	return sqlname.NewObjectName(sqlname.MYSQL, tableName).MinQuoted()
}

func (ms *MySQL) QuoteColumn(columnName string) string {
	return sqlname.MinQuote(sqlname.MYSQL, sqlname.Unquote(columnName))
}

func (ms *MySQL) CaseInsensitiveColumns() bool {
	return true
}

func (ms *MySQL) indexColumnsQuery(tableName string, cond sq.Sqlizer) (string, []any, error) {
	name := sqlname.NewObjectName(sqlname.MYSQL, tableName)
	schemaCond := sq.Sqlizer(sq.Expr("TABLE_SCHEMA = DATABASE()"))
	if name.SchemaName != "" {
		schemaCond = sq.Eq{"TABLE_SCHEMA": name.SchemaName}
	}
	return sq.Select("COLUMN_NAME").Distinct().
		From("information_schema.STATISTICS").
		Where(schemaCond).
		Where(sq.Eq{"TABLE_NAME": name.ObjectName}).
		Where(cond).
		OrderBy("COLUMN_NAME").
		PlaceholderFormat(sq.Question).
		ToSql()
}

func (ms *MySQL) PrimaryKeyColumns(ctx context.Context, q Querier, tableName string) ([]string, error) {
	query, args, err := ms.indexColumnsQuery(tableName, sq.Eq{"INDEX_NAME": "PRIMARY"})
	if err != nil {
		return nil, err
	}
	return queryColumnNames(ctx, q, query, args...)
}

func (ms *MySQL) UniqueColumns(ctx context.Context, q Querier, tableName string) ([]string, error) {
	query, args, err := ms.indexColumnsQuery(tableName, sq.Eq{"NON_UNIQUE": 0})
	if err != nil {
		return nil, err
	}
	return queryColumnNames(ctx, q, query, args...)
}

func (ms *MySQL) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == MYSQL_ER_DUP_ENTRY
}

func (ms *MySQL) NeedsStatementSavepoint() bool {
	return false
}

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

package anon

import (
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dbmask/dbmask/src/defs"
	"github.com/dbmask/dbmask/src/srcdb"
)

// sequenceGenerator returns "<name>-<n>" for the n-th call of a generator
// unless fn overrides it.
type sequenceGenerator struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(name string, n int) (any, error)
}

func newSequenceGenerator() *sequenceGenerator {
	return &sequenceGenerator{calls: make(map[string]int)}
}

func (g *sequenceGenerator) Generate(name string) (any, error) {
	g.mu.Lock()
	g.calls[name]++
	n := g.calls[name]
	g.mu.Unlock()
	if g.fn != nil {
		return g.fn(name, n)
	}
	return fmt.Sprintf("%s-%d", name, n), nil
}

func (g *sequenceGenerator) Calls(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func createMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func mysqlDialect() srcdb.Dialect {
	return (&srcdb.Source{DBType: srcdb.MYSQL}).Dialect()
}

func pgDialect() srcdb.Dialect {
	return (&srcdb.Source{DBType: srcdb.POSTGRESQL}).Dialect()
}

func usersSpec() *defs.TableSpec {
	return &defs.TableSpec{
		Name: "users",
		Fields: []defs.Field{
			{Name: "email", Generator: "email"},
			{Name: "name", Generator: "name"},
		},
	}
}

func q(query string) string {
	return "^" + regexp.QuoteMeta(query) + "$"
}

func expectMySQLInspect(mock sqlmock.Sqlmock, table, pk string, unique ...string) {
	pkRows := sqlmock.NewRows([]string{"COLUMN_NAME"})
	if pk != "" {
		pkRows.AddRow(pk)
	}
	mock.ExpectQuery(`INDEX_NAME = \?`).WithArgs(table, "PRIMARY").WillReturnRows(pkRows)
	if pk == "" {
		return
	}
	uniqueRows := sqlmock.NewRows([]string{"COLUMN_NAME"})
	for _, u := range unique {
		uniqueRows.AddRow(u)
	}
	mock.ExpectQuery(`NON_UNIQUE = \?`).WithArgs(table, 0).WillReturnRows(uniqueRows)
}

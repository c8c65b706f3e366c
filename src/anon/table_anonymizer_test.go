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
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmask/dbmask/src/defs"
	"github.com/dbmask/dbmask/src/errs"
)

const mysqlUpdateUsers = "UPDATE users SET email = ?, name = ? WHERE id = ?"

func usersRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "name"}).
		AddRow(1, "a@example.com", "Ann").
		AddRow(2, "b@example.com", "Bob").
		AddRow(3, "c@example.com", "Cid")
}

func TestRunUpdatesAllRecords(t *testing.T) {
	db, mock := createMockDB(t)
	expectMySQLInspect(mock, "users", "id", "id", "email")
	mock.ExpectQuery(q("SELECT COUNT(*) FROM users")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id, email, name FROM users")).WillReturnRows(usersRows())
	mock.ExpectExec(q(mysqlUpdateUsers)).WithArgs("email-1", "name-1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(mysqlUpdateUsers)).WithArgs("email-2", "name-2", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(mysqlUpdateUsers)).WithArgs("email-3", "name-3", 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ta := NewTableAnonymizer(db, mysqlDialect(), usersSpec(), newSequenceGenerator(), defs.NewIgnoreSet(), nil, Options{})
	report, err := ta.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TABLE_STATUS_DONE, report.Status)
	assert.Equal(t, int64(3), report.TotalRows)
	assert.Equal(t, int64(3), report.Processed)
	assert.Equal(t, int64(3), report.Updated)
	assert.Equal(t, STATE_CLOSED, ta.state)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSkipsTableWithoutPrimaryKey(t *testing.T) {
	db, mock := createMockDB(t)
	expectMySQLInspect(mock, "users", "")

	gen := newSequenceGenerator()
	report, err := NewTableAnonymizer(db, mysqlDialect(), usersSpec(), gen, defs.NewIgnoreSet(), nil, Options{}).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TABLE_STATUS_SKIPPED, report.Status)
	assert.Equal(t, int64(0), report.Updated)
	assert.Equal(t, 0, gen.Calls("email"))
	// no count, no transaction, no writes
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSkipsIgnoredRecords(t *testing.T) {
	db, mock := createMockDB(t)
	expectMySQLInspect(mock, "users", "id", "id")
	mock.ExpectQuery(q("SELECT COUNT(*) FROM users")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id, email, name FROM users")).WillReturnRows(usersRows())
	mock.ExpectExec(q(mysqlUpdateUsers)).WithArgs("email-1", "name-1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(mysqlUpdateUsers)).WithArgs("email-2", "name-2", 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	gen := newSequenceGenerator()
	// "2" in the ignore file matches the integer key 2
	report, err := NewTableAnonymizer(db, mysqlDialect(), usersSpec(), gen, defs.NewIgnoreSet("2"), nil, Options{}).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Updated)
	assert.Equal(t, int64(1), report.Ignored)
	assert.Equal(t, 2, gen.Calls("email"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunGenericErrorRollsBackEarlierRecords(t *testing.T) {
	db, mock := createMockDB(t)
	expectMySQLInspect(mock, "users", "id", "id")
	mock.ExpectQuery(q("SELECT COUNT(*) FROM users")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id, email, name FROM users")).WillReturnRows(usersRows())
	mock.ExpectExec(q(mysqlUpdateUsers)).WithArgs("email-1", "name-1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(mysqlUpdateUsers)).WithArgs("email-2", "name-2", 2).WillReturnError(errors.New("Deadlock found when trying to get lock"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(q(mysqlUpdateUsers)).WithArgs("email-3", "name-3", 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	report, err := NewTableAnonymizer(db, mysqlDialect(), usersSpec(), newSequenceGenerator(), defs.NewIgnoreSet(), nil, Options{}).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TABLE_STATUS_DONE, report.Status)
	assert.Equal(t, int64(3), report.Processed)
	// only the record after the rollback is committed
	assert.Equal(t, int64(1), report.Updated)
	assert.Equal(t, int64(1), report.Rollbacks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunUniqueViolationWithSavepoints(t *testing.T) {
	db, mock := createMockDB(t)
	pkRows := sqlmock.NewRows([]string{"attname"}).AddRow("id")
	mock.ExpectQuery(`indisprimary`).WithArgs("users").WillReturnRows(pkRows)
	mock.ExpectQuery(`indisunique`).WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"attname"}).AddRow("id").AddRow("email"))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM users")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id, email FROM users")).WillReturnRows(
		sqlmock.NewRows([]string{"id", "email"}).AddRow(1, "a").AddRow(2, "b").AddRow(3, "c"))

	update := q("UPDATE users SET email = $1 WHERE id = $2")
	mock.ExpectExec(q("SAVEPOINT dbmask_record")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(update).WithArgs("email-1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("RELEASE SAVEPOINT dbmask_record")).WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec(q("SAVEPOINT dbmask_record")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(update).WithArgs("email-2", 2).WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectExec(q("ROLLBACK TO SAVEPOINT dbmask_record")).WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec(q("SAVEPOINT dbmask_record")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(update).WithArgs("email-3", 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("RELEASE SAVEPOINT dbmask_record")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	spec := &defs.TableSpec{Name: "users", Fields: []defs.Field{{Name: "email", Generator: "email"}}}
	report, err := NewTableAnonymizer(db, pgDialect(), spec, newSequenceGenerator(), defs.NewIgnoreSet(), nil, Options{}).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TABLE_STATUS_DONE, report.Status)
	assert.Equal(t, int64(2), report.Updated)
	assert.Equal(t, int64(1), report.UniqueViolations)
	assert.Equal(t, int64(0), report.Rollbacks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunDropsPrimaryKeyField(t *testing.T) {
	db, mock := createMockDB(t)
	expectMySQLInspect(mock, "users", "id", "id")
	mock.ExpectQuery(q("SELECT COUNT(*) FROM users")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id, email FROM users")).WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(7, "x"))
	mock.ExpectExec(q("UPDATE users SET email = ? WHERE id = ?")).WithArgs("email-1", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	spec := &defs.TableSpec{Name: "users", Fields: []defs.Field{{Name: "ID", Generator: "uuid"}, {Name: "email", Generator: "email"}}}
	gen := newSequenceGenerator()
	report, err := NewTableAnonymizer(db, mysqlDialect(), spec, gen, defs.NewIgnoreSet(), nil, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Updated)
	assert.Equal(t, 0, gen.Calls("uuid"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunGeneratorExhaustedLeavesRecordUnchanged(t *testing.T) {
	db, mock := createMockDB(t)
	expectMySQLInspect(mock, "users", "id", "id", "email")
	mock.ExpectQuery(q("SELECT COUNT(*) FROM users")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id, email FROM users")).WillReturnRows(
		sqlmock.NewRows([]string{"id", "email"}).AddRow(1, "a").AddRow(2, "b"))
	mock.ExpectExec(q("UPDATE users SET email = ? WHERE id = ?")).WithArgs("always-the-same", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	gen := newSequenceGenerator()
	gen.fn = func(string, int) (any, error) { return "always-the-same", nil }
	spec := &defs.TableSpec{Name: "users", Fields: []defs.Field{{Name: "email", Generator: "email"}}}
	report, err := NewTableAnonymizer(db, mysqlDialect(), spec, gen, defs.NewIgnoreSet(), nil, Options{MaxUniqueRetries: 5}).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Updated)
	assert.Equal(t, int64(1), report.GeneratorFailures)
	assert.Equal(t, 6, gen.Calls("email"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunUnsupportedGeneratorIsFatal(t *testing.T) {
	db, mock := createMockDB(t)
	expectMySQLInspect(mock, "users", "id", "id")
	mock.ExpectQuery(q("SELECT COUNT(*) FROM users")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id, email, name FROM users")).WillReturnRows(usersRows())
	mock.ExpectExec(q(mysqlUpdateUsers)).WithArgs("email-1", "name-1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	gen := newSequenceGenerator()
	gen.fn = func(name string, n int) (any, error) {
		if name == "email" && n == 2 {
			return nil, errs.NewUnsupportedGeneratorError(name, "no such generator", nil)
		}
		return name + "-1", nil
	}
	report, err := NewTableAnonymizer(db, mysqlDialect(), usersSpec(), gen, defs.NewIgnoreSet(), nil, Options{}).Run(context.Background())

	var unsupported errs.UnsupportedGeneratorError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, TABLE_STATUS_FAILED, report.Status)
	assert.Equal(t, int64(0), report.Updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStreamErrorCommitsWhatWasDone(t *testing.T) {
	db, mock := createMockDB(t)
	expectMySQLInspect(mock, "users", "id", "id")
	mock.ExpectQuery(q("SELECT COUNT(*) FROM users")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id, email, name FROM users")).WillReturnRows(
		usersRows().RowError(1, errors.New("connection reset by peer")))
	mock.ExpectExec(q(mysqlUpdateUsers)).WithArgs("email-1", "name-1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	report, err := NewTableAnonymizer(db, mysqlDialect(), usersSpec(), newSequenceGenerator(), defs.NewIgnoreSet(), nil, Options{}).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TABLE_STATUS_DONE, report.Status)
	assert.Equal(t, int64(1), report.Processed)
	assert.Equal(t, int64(1), report.Updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInspectFailure(t *testing.T) {
	db, mock := createMockDB(t)
	mock.ExpectQuery(`INDEX_NAME = \?`).WillReturnError(errors.New("Table 'shop.users' doesn't exist"))

	report, err := NewTableAnonymizer(db, mysqlDialect(), usersSpec(), newSequenceGenerator(), defs.NewIgnoreSet(), nil, Options{}).
		Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TABLE_STATUS_FAILED, report.Status)

	var opErr errs.TableOperationError
	require.True(t, errors.As(report.Err, &opErr))
	assert.Equal(t, errs.TABLE_STEP_INSPECT, opErr.Step())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunCancelledContext(t *testing.T) {
	db, _ := createMockDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewTableAnonymizer(db, mysqlDialect(), usersSpec(), newSequenceGenerator(), defs.NewIgnoreSet(), nil, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, TABLE_STATUS_ABORTED, report.Status)
	assert.ErrorIs(t, report.Err, context.Canceled)
}

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
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/dbmask/dbmask/src/defs"
	"github.com/dbmask/dbmask/src/errs"
	"github.com/dbmask/dbmask/src/pbreporter"
	"github.com/dbmask/dbmask/src/srcdb"
)

const recordSavepoint = "dbmask_record"

type tableState string

const (
	STATE_OPENING    tableState = "opening"
	STATE_INSPECTING tableState = "inspecting"
	STATE_STREAMING  tableState = "streaming"
	STATE_COMMITTING tableState = "committing"
	STATE_CLOSED     tableState = "closed"
)

type Options struct {
	MaxUniqueRetries int
	// DryRun rolls every table back instead of committing.
	DryRun bool
	RunID  string
}

type fieldValue struct {
	name  string
	value any
}

// TableAnonymizer rewrites the configured fields of every record of one
// table inside a single transaction.
type TableAnonymizer struct {
	db        *sql.DB
	dialect   srcdb.Dialect
	spec      *defs.TableSpec
	generator ValueGenerator
	ignores   *defs.IgnoreSet
	progress  pbreporter.TableProgressReporter
	opts      Options

	state  tableState
	report *TableReport
}

func NewTableAnonymizer(db *sql.DB, dialect srcdb.Dialect, spec *defs.TableSpec, generator ValueGenerator,
	ignores *defs.IgnoreSet, progress pbreporter.TableProgressReporter, opts Options) *TableAnonymizer {
	if progress == nil {
		progress = pbreporter.NewTablePB(nil, spec.Name, true)
	}
	return &TableAnonymizer{
		db:        db,
		dialect:   dialect,
		spec:      spec,
		generator: generator,
		ignores:   ignores,
		progress:  progress,
		opts:      opts,
		state:     STATE_OPENING,
		report:    newTableReport(spec.Name),
	}
}

func (ta *TableAnonymizer) setState(state tableState) {
	log.Debugf("table %s: %s -> %s", ta.spec.Name, ta.state, state)
	ta.state = state
}

// Run processes the table. Per-record and per-table failures are recorded in
// the report; the returned error is only set for failures that must stop the
// whole run.
func (ta *TableAnonymizer) Run(ctx context.Context) (*TableReport, error) {
	start := time.Now()
	report := ta.report
	log.Infof("run %s: anonymizing table %s", ta.opts.RunID, ta.spec.Name)
	defer func() {
		report.Elapsed = time.Since(start)
		ta.progress.SetUnchangedRowCount(report.unchanged())
		ta.progress.SetTotalRowCount(-1, true)
		ta.setState(STATE_CLOSED)
	}()

	writeConn, err := ta.db.Conn(ctx)
	if err != nil {
		ta.failOrAbort(ctx, errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_CONNECT, err))
		return report, nil
	}
	defer writeConn.Close()

	ta.setState(STATE_INSPECTING)
	meta, err := srcdb.NewSchemaInspector(ta.dialect, writeConn).Inspect(ctx, ta.spec.Name)
	if err != nil {
		ta.failOrAbort(ctx, errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_INSPECT, err))
		return report, nil
	}
	if !meta.HasPrimaryKey() {
		log.Warnf("Skipping table %s due to missing primary key.", ta.spec.Name)
		report.skip("no single-column primary key")
		return report, nil
	}
	spec := ta.fieldsToRewrite(meta)
	if len(spec.Fields) == 0 {
		log.Warnf("Skipping table %s: no fields left to anonymize.", ta.spec.Name)
		report.skip("no fields to anonymize")
		return report, nil
	}

	ta.setState(STATE_STREAMING)
	report.TotalRows, err = ta.countRows(ctx, writeConn)
	if err != nil {
		ta.failOrAbort(ctx, errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_COUNT, err))
		return report, nil
	}
	log.Infof("Processing table %s with %d records...", ta.spec.Name, report.TotalRows)
	ta.progress.SetTotalRowCount(report.TotalRows, false)

	tx, err := writeConn.BeginTx(ctx, nil)
	if err != nil {
		ta.failOrAbort(ctx, errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_BEGIN_TXN, err))
		return report, nil
	}
	// the write conn cannot be released while its transaction is open
	defer func() { ta.rollback(tx) }()

	readConn, err := ta.db.Conn(ctx)
	if err != nil {
		ta.failOrAbort(ctx, errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_CONNECT, err))
		return report, nil
	}
	defer readConn.Close()

	stream, err := OpenRecordStream(ctx, readConn, ta.dialect, ta.spec.Name, meta.PrimaryKey, spec.FieldNames())
	if err != nil {
		ta.failOrAbort(ctx, errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_OPEN_STREAM, err))
		return report, nil
	}
	defer stream.Close()

	enforcer := NewUniquenessEnforcer(ta.spec.Name, ta.generator, ta.opts.MaxUniqueRetries)
	for {
		record, ok := stream.Next()
		if !ok {
			break
		}
		report.Processed++
		ta.progress.SetProcessedRowCount(report.Processed)
		ta.progress.SetUnchangedRowCount(report.unchanged())

		if ta.ignores.Contains(record.PrimaryKey) {
			log.Warnf("Skipping update for %s with %s = %v due to ignore list.", ta.spec.Name, meta.PrimaryKey, record.PrimaryKey)
			report.Ignored++
			for _, f := range spec.Fields {
				if meta.IsUnique(f.Name) {
					enforcer.Reserve(f.Name, record.Values[f.Name])
				}
			}
			continue
		}

		values, err := ta.generateValues(enforcer, spec, meta)
		if err != nil {
			var exhausted errs.GeneratorExhaustedError
			if errors.As(err, &exhausted) {
				log.Errorf("record %s = %v of %s left unchanged: %v", meta.PrimaryKey, record.PrimaryKey, ta.spec.Name, err)
				report.GeneratorFailures++
				continue
			}
			// unsupported generator: nothing in this run can succeed
			report.fail(err)
			return report, err
		}

		err = ta.apply(ctx, tx, meta.PrimaryKey, record.PrimaryKey, values)
		var uniqueErr errs.UniqueViolationError
		switch {
		case err == nil:
			report.Updated++
		case errors.As(err, &uniqueErr):
			log.Warnf("Duplicate key value violation in %s for %s = %v, record left unchanged: %v",
				ta.spec.Name, meta.PrimaryKey, record.PrimaryKey, uniqueErr.Unwrap())
			report.UniqueViolations++
		case ctx.Err() != nil:
			// cancelled while writing, handled after the loop
		default:
			log.Errorf("Error updating record %s = %v of %s: %v", meta.PrimaryKey, record.PrimaryKey, ta.spec.Name, err)
			newTx, err := ta.restartTransaction(ctx, writeConn, tx)
			if err != nil {
				ta.failOrAbort(ctx, err)
				return report, nil
			}
			tx = newTx
		}
		if ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() != nil {
		log.Warnf("table %s: run cancelled, rolling back", ta.spec.Name)
		ta.rollback(tx)
		report.abort(ctx.Err())
		return report, nil
	}
	if stream.Err() != nil {
		log.Warnf("table %s: committing the %d records updated before the stream ended", ta.spec.Name, report.Updated)
	}
	// the reader must not hold its snapshot while the writer commits
	stream.Close()
	readConn.Close()

	ta.setState(STATE_COMMITTING)
	if ta.opts.DryRun {
		ta.rollback(tx)
		report.Status = TABLE_STATUS_DRY_RUN
		log.Infof("Dry run: would have updated %d records in %s, time taken: %.2f seconds",
			report.Updated, ta.spec.Name, time.Since(start).Seconds())
		return report, nil
	}
	err = tx.Commit()
	if err != nil {
		ta.failOrAbort(ctx, errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_COMMIT_TXN, err))
		return report, nil
	}
	report.Status = TABLE_STATUS_DONE
	log.Infof("Processed %d records in %s, time taken: %.2f seconds", report.Updated, ta.spec.Name, time.Since(start).Seconds())
	return report, nil
}

// fieldsToRewrite drops the primary key from the configured fields.
func (ta *TableAnonymizer) fieldsToRewrite(meta *srcdb.SchemaMetadata) *defs.TableSpec {
	pkField, found := lo.Find(ta.spec.Fields, func(f defs.Field) bool { return meta.IsPrimaryKey(f.Name) })
	if !found {
		return ta.spec
	}
	log.Warnf("table %s: primary key column %s is listed as a field, it will not be modified", ta.spec.Name, pkField.Name)
	return ta.spec.WithoutField(pkField.Name)
}

func (ta *TableAnonymizer) countRows(ctx context.Context, conn *sql.Conn) (int64, error) {
	query, args, err := sq.Select("COUNT(*)").
		From(ta.dialect.QuoteTable(ta.spec.Name)).
		PlaceholderFormat(ta.dialect.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return 0, err
	}
	var count int64
	err = conn.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("query %q: %w", query, err)
	}
	return count, nil
}

func (ta *TableAnonymizer) generateValues(enforcer *UniquenessEnforcer, spec *defs.TableSpec,
	meta *srcdb.SchemaMetadata) ([]fieldValue, error) {

	values := make([]fieldValue, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		v, err := enforcer.Next(f.Name, f.Generator, meta.IsUnique(f.Name))
		if err != nil {
			return nil, err
		}
		values = append(values, fieldValue{name: f.Name, value: v})
	}
	return values, nil
}

func (ta *TableAnonymizer) apply(ctx context.Context, tx *sql.Tx, pkColumn string, pkValue any, values []fieldValue) error {
	builder := sq.Update(ta.dialect.QuoteTable(ta.spec.Name)).PlaceholderFormat(ta.dialect.PlaceholderFormat())
	for _, v := range values {
		builder = builder.Set(ta.dialect.QuoteColumn(v.name), v.value)
	}
	query, args, err := builder.Where(sq.Expr(ta.dialect.QuoteColumn(pkColumn)+" = ?", pkValue)).ToSql()
	if err != nil {
		return errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_UPDATE, err)
	}

	useSavepoint := ta.dialect.NeedsStatementSavepoint()
	if useSavepoint {
		_, err = tx.ExecContext(ctx, "SAVEPOINT "+recordSavepoint)
		if err != nil {
			return errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_SAVEPOINT, err)
		}
	}
	_, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		if useSavepoint {
			_, spErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+recordSavepoint)
			if spErr != nil {
				return errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_SAVEPOINT, spErr)
			}
		}
		if ta.dialect.IsUniqueViolation(err) {
			return errs.NewUniqueViolationError(ta.spec.Name, pkValue, err)
		}
		return errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_UPDATE, err)
	}
	if useSavepoint {
		_, err = tx.ExecContext(ctx, "RELEASE SAVEPOINT "+recordSavepoint)
		if err != nil {
			return errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_SAVEPOINT, err)
		}
	}
	return nil
}

// restartTransaction discards every update of the table made so far and
// continues in a new transaction.
func (ta *TableAnonymizer) restartTransaction(ctx context.Context, conn *sql.Conn, tx *sql.Tx) (*sql.Tx, error) {
	err := tx.Rollback()
	if err != nil {
		return nil, errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_ROLLBACK_TXN, err)
	}
	log.Warnf("table %s: rolled back %d updated records", ta.spec.Name, ta.report.Updated)
	ta.report.Rollbacks++
	ta.report.Updated = 0

	newTx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.NewTableOperationError(ta.spec.Name, errs.TABLE_STEP_BEGIN_TXN, err)
	}
	return newTx, nil
}

func (ta *TableAnonymizer) rollback(tx *sql.Tx) {
	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Errorf("table %s: rollback: %v", ta.spec.Name, err)
	}
}

func (ta *TableAnonymizer) failOrAbort(ctx context.Context, err error) {
	if ctx.Err() != nil {
		log.Warnf("table %s aborted: %v", ta.spec.Name, err)
		ta.report.abort(ctx.Err())
		return
	}
	log.Errorf("table %s failed: %v", ta.spec.Name, err)
	ta.report.fail(err)
}

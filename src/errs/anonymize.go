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
package errs

import (
	"fmt"
	"strings"
)

const (
	// steps of a table task
	TABLE_STEP_CONNECT      = "connect"
	TABLE_STEP_INSPECT      = "inspect"
	TABLE_STEP_COUNT        = "count"
	TABLE_STEP_BEGIN_TXN    = "begin_txn"
	TABLE_STEP_OPEN_STREAM  = "open_stream"
	TABLE_STEP_GENERATE     = "generate"
	TABLE_STEP_UPDATE       = "update"
	TABLE_STEP_SAVEPOINT    = "savepoint"
	TABLE_STEP_ROLLBACK_TXN = "rollback_txn"
	TABLE_STEP_COMMIT_TXN   = "commit_txn"
)

type TableOperationError struct {
	tableName string
	step      string
	err       error
}

func (e TableOperationError) Step() string {
	return e.step
}

func (e TableOperationError) TableName() string {
	return e.tableName
}

func (e TableOperationError) Error() string {
	return fmt.Sprintf("anonymize table %s: step=%s: %s", e.tableName, e.step, e.err.Error())
}

func (e TableOperationError) Unwrap() error {
	return e.err
}

func NewTableOperationError(tableName, step string, err error) TableOperationError {
	return TableOperationError{
		tableName: tableName,
		step:      step,
		err:       err,
	}
}

// UnsupportedGeneratorError means the definitions reference a generator the
// registry cannot serve. It is a configuration error and ends the run.
type UnsupportedGeneratorError struct {
	generatorName string
	reason        string
	suggestions   []string
}

func (e UnsupportedGeneratorError) GeneratorName() string {
	return e.generatorName
}

func (e UnsupportedGeneratorError) Error() string {
	msg := fmt.Sprintf("unsupported generator %q: %s", e.generatorName, e.reason)
	if len(e.suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.suggestions, ", "))
	}
	return msg
}

func NewUnsupportedGeneratorError(generatorName, reason string, suggestions []string) UnsupportedGeneratorError {
	return UnsupportedGeneratorError{
		generatorName: generatorName,
		reason:        reason,
		suggestions:   suggestions,
	}
}

type GeneratorExhaustedError struct {
	tableName     string
	fieldName     string
	generatorName string
	attempts      int
}

func (e GeneratorExhaustedError) FieldName() string {
	return e.fieldName
}

func (e GeneratorExhaustedError) Attempts() int {
	return e.attempts
}

func (e GeneratorExhaustedError) Error() string {
	return fmt.Sprintf("generator %q exhausted for unique field %s.%s: no unused value after %d attempts",
		e.generatorName, e.tableName, e.fieldName, e.attempts)
}

func NewGeneratorExhaustedError(tableName, fieldName, generatorName string, attempts int) GeneratorExhaustedError {
	return GeneratorExhaustedError{
		tableName:     tableName,
		fieldName:     fieldName,
		generatorName: generatorName,
		attempts:      attempts,
	}
}

// UniqueViolationError is a unique constraint rejected by the database itself,
// e.g. because a row outside this run already holds the generated value.
type UniqueViolationError struct {
	tableName  string
	primaryKey any
	err        error
}

func (e UniqueViolationError) PrimaryKey() any {
	return e.primaryKey
}

func (e UniqueViolationError) Error() string {
	return fmt.Sprintf("duplicate key value in table %s for record %v: %s", e.tableName, e.primaryKey, e.err.Error())
}

func (e UniqueViolationError) Unwrap() error {
	return e.err
}

func NewUniqueViolationError(tableName string, primaryKey any, err error) UniqueViolationError {
	return UniqueViolationError{
		tableName:  tableName,
		primaryKey: primaryKey,
		err:        err,
	}
}

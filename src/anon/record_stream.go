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
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/dbmask/dbmask/src/srcdb"
)

type Record struct {
	PrimaryKey any
	// current values of the configured fields, by field name
	Values map[string]any
}

// RecordStream is a forward-only cursor over one table. Records are read
// one at a time from a single SELECT, nothing is buffered.
type RecordStream struct {
	tableName string
	fields    []string
	rows      *sql.Rows
	err       error
	closed    bool
}

func OpenRecordStream(ctx context.Context, q srcdb.Querier, dialect srcdb.Dialect,
	tableName, pkColumn string, fields []string) (*RecordStream, error) {

	columns := lo.Map(append([]string{pkColumn}, fields...), func(c string, _ int) string {
		return dialect.QuoteColumn(c)
	})
	query, args, err := sq.Select(columns...).
		From(dialect.QuoteTable(tableName)).
		PlaceholderFormat(dialect.PlaceholderFormat()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select for %s: %w", tableName, err)
	}
	log.Debugf("opening record stream for %s: %s", tableName, query)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	return &RecordStream{
		tableName: tableName,
		fields:    fields,
		rows:      rows,
	}, nil
}

// Next returns the next record. It returns false at the end of the table and
// also when the cursor fails; the failure is then available from Err.
func (s *RecordStream) Next() (*Record, bool) {
	if s.closed {
		return nil, false
	}
	if !s.rows.Next() {
		s.err = s.rows.Err()
		if s.err != nil {
			log.Errorf("record stream of %s ended with error: %v", s.tableName, s.err)
		}
		s.Close()
		return nil, false
	}
	dest := make([]any, len(s.fields)+1)
	ptrs := make([]any, len(dest))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	err := s.rows.Scan(ptrs...)
	if err != nil {
		s.err = fmt.Errorf("scan record of %s: %w", s.tableName, err)
		log.Errorf("record stream of %s ended with error: %v", s.tableName, s.err)
		s.Close()
		return nil, false
	}
	record := &Record{
		PrimaryKey: dest[0],
		Values:     make(map[string]any, len(s.fields)),
	}
	for i, f := range s.fields {
		record.Values[f] = dest[i+1]
	}
	return record, true
}

func (s *RecordStream) Err() error {
	return s.err
}

func (s *RecordStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rows.Close()
}

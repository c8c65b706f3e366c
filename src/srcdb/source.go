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
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	POSTGRESQL = "postgresql"
	MYSQL      = "mysql"
	SQLITE     = "sqlite"
)

var ValidDBTypes = []string{POSTGRESQL, MYSQL, SQLITE}

type Source struct {
	DBType   string `json:"db_type"`
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
	Uri      string `json:"uri"`

	dialect Dialect `json:"-"`
}

func (s *Source) Clone() *Source {
	newS := *s
	newS.dialect = nil
	return &newS
}

func (s *Source) Dialect() Dialect {
	if s.dialect == nil {
		s.dialect = newDialect(s)
	}
	return s.dialect
}

// ApplyDefaults fills in the port and driver for the db type when unset.
func (s *Source) ApplyDefaults() {
	if s.Port == 0 {
		switch s.DBType {
		case POSTGRESQL:
			s.Port = 5432
		case MYSQL:
			s.Port = 3306
		}
	}
	if s.Driver == "" {
		switch s.DBType {
		case POSTGRESQL:
			s.Driver = PGX_DRIVER
		case MYSQL:
			s.Driver = MYSQL_DRIVER
		case SQLITE:
			s.Driver = SQLITE_DRIVER
		}
	}
}

// Open creates the connection pool shared by all table tasks and checks that
// the database is reachable.
func (s *Source) Open(ctx context.Context, maxConns int) (*sql.DB, error) {
	d := s.Dialect()
	log.Infof("connecting to %s database with driver %q: %s", s.DBType, d.DriverName(), d.RedactedConnectionUri())
	db, err := sql.Open(d.DriverName(), d.ConnectionUri())
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", s.DBType, err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err = db.PingContext(pingCtx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s database %s: %w", s.DBType, d.RedactedConnectionUri(), err)
	}
	return db, nil
}

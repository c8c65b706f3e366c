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
	log "github.com/sirupsen/logrus"

	"github.com/dbmask/dbmask/src/errs"
)

const DEFAULT_MAX_UNIQUE_RETRIES = 500

// ValueGenerator produces one synthetic value for a generator name.
type ValueGenerator interface {
	Generate(generatorName string) (any, error)
}

type UniquenessEnforcer struct {
	tableName  string
	generator  ValueGenerator
	cache      *ValueCache
	maxRetries int
}

func NewUniquenessEnforcer(tableName string, generator ValueGenerator, maxRetries int) *UniquenessEnforcer {
	if maxRetries <= 0 {
		maxRetries = DEFAULT_MAX_UNIQUE_RETRIES
	}
	return &UniquenessEnforcer{
		tableName:  tableName,
		generator:  generator,
		cache:      NewValueCache(),
		maxRetries: maxRetries,
	}
}

// Next returns a value for fieldName. For unique fields the value has not
// been returned before for the same field of this table.
func (u *UniquenessEnforcer) Next(fieldName, generatorName string, isUnique bool) (any, error) {
	if !isUnique {
		return u.generator.Generate(generatorName)
	}
	for attempt := 1; attempt <= u.maxRetries; attempt++ {
		value, err := u.generator.Generate(generatorName)
		if err != nil {
			return nil, err
		}
		if u.cache.Add(fieldName, value) {
			return value, nil
		}
		log.Debugf("table %s field %s: generated value already used (attempt %d), regenerating",
			u.tableName, fieldName, attempt)
	}
	return nil, errs.NewGeneratorExhaustedError(u.tableName, fieldName, generatorName, u.maxRetries)
}

// Reserve marks an existing value of a unique field as taken, so that it is
// never generated for another record.
func (u *UniquenessEnforcer) Reserve(fieldName string, value any) {
	if value == nil {
		return
	}
	u.cache.Add(fieldName, value)
}

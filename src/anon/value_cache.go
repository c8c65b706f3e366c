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
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dbmask/dbmask/src/utils"
)

// ValueCache remembers the values placed into each unique field of one
// table. It is owned by a single table task and is not safe for concurrent
// use.
type ValueCache struct {
	issued map[string]mapset.Set[string]
}

func NewValueCache() *ValueCache {
	return &ValueCache{issued: make(map[string]mapset.Set[string])}
}

func (c *ValueCache) fieldSet(fieldName string) mapset.Set[string] {
	set, ok := c.issued[fieldName]
	if !ok {
		set = mapset.NewThreadUnsafeSet[string]()
		c.issued[fieldName] = set
	}
	return set
}

func (c *ValueCache) Contains(fieldName string, value any) bool {
	set, ok := c.issued[fieldName]
	return ok && set.Contains(utils.ValueKey(value))
}

// Add records value for fieldName and reports whether it was new.
func (c *ValueCache) Add(fieldName string, value any) bool {
	return c.fieldSet(fieldName).Add(utils.ValueKey(value))
}

func (c *ValueCache) Len(fieldName string) int {
	set, ok := c.issued[fieldName]
	if !ok {
		return 0
	}
	return set.Cardinality()
}

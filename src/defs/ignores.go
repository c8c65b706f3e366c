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
package defs

import (
	"fmt"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"

	"github.com/dbmask/dbmask/src/utils"
)

// IgnoreSet holds primary-key values that must never be modified. Values
// are kept in canonical text form (see utils.ValueKey).
type IgnoreSet struct {
	ids mapset.Set[string]
}

func NewIgnoreSet(ids ...any) *IgnoreSet {
	s := &IgnoreSet{ids: mapset.NewSet[string]()}
	for _, id := range ids {
		s.ids.Add(utils.ValueKey(id))
	}
	return s
}

func (s *IgnoreSet) Contains(pk any) bool {
	if s == nil {
		return false
	}
	return s.ids.Contains(utils.ValueKey(pk))
}

func (s *IgnoreSet) Len() int {
	if s == nil {
		return 0
	}
	return s.ids.Cardinality()
}

type ignoreFile struct {
	IgnoreIds      []any `yaml:"ignoreIds"`
	IgnoreIdsSnake []any `yaml:"ignore_ids"`
}

// LoadIgnoreSet reads the ignore list. A missing file yields an empty set
// unless the path was given explicitly by the user.
func LoadIgnoreSet(path string, explicit bool) (*IgnoreSet, error) {
	if !utils.FileOrFolderExists(path) {
		if explicit {
			return nil, fmt.Errorf("ignore file %q does not exist", path)
		}
		log.Infof("ignore file %q not found, no records will be exempted", path)
		return NewIgnoreSet(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ignore file %q: %w", path, err)
	}
	set, err := ParseIgnoreSet(data)
	if err != nil {
		return nil, fmt.Errorf("parse ignore file %q: %w", path, err)
	}
	log.Infof("loaded %d ignored ids from %q", set.Len(), path)
	return set, nil
}

func ParseIgnoreSet(data []byte) (*IgnoreSet, error) {
	var f ignoreFile
	err := yaml.Unmarshal(data, &f)
	if err != nil {
		return nil, err
	}
	ids := append(f.IgnoreIds, f.IgnoreIdsSnake...)
	for _, id := range ids {
		switch id.(type) {
		case yaml.MapSlice, map[string]any, map[any]any, []any:
			return nil, fmt.Errorf("ignored id %v is not a scalar", id)
		}
	}
	return NewIgnoreSet(ids...), nil
}

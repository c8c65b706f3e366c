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
package fakegen

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/dbmask/dbmask/src/errs"
)

// Generator names as they appear in definitions files written for the Faker
// library, mapped to the normalized gofakeit lookup name.
var aliases = map[string]string{
	"phonenumber":   "phone",
	"msisdn":        "phone",
	"safeemail":     "email",
	"freeemail":     "email",
	"companyemail":  "email",
	"ipv4":          "ipv4address",
	"ipv6":          "ipv6address",
	"streetaddress": "street",
	"postcode":      "zip",
	"zipcode":       "zip",
	"uuid4":         "uuid",
	"dateofbirth":   "date",
	"datetime":      "date",
	"text":          "paragraph",
	"catchphrase":   "buzzword",
}

var scalarOutputs = []string{
	"string", "bool", "time.Time",
	"int", "int8", "int16", "int32", "int64",
	"uint", "uint8", "uint16", "uint32", "uint64",
	"float", "float32", "float64",
}

type Config struct {
	Locales []string
	// Seed 0 means a random seed.
	Seed int64
}

// Registry resolves generator names to gofakeit functions. It is safe for
// concurrent use once created.
type Registry struct {
	faker   *gofakeit.Faker
	locales []language.Tag
}

func NewRegistry(cfg Config) (*Registry, error) {
	tags := make([]language.Tag, 0, len(cfg.Locales))
	for _, l := range cfg.Locales {
		tag, err := ParseLocale(l)
		if err != nil {
			return nil, err
		}
		base, _ := tag.Base()
		if base.String() != "en" {
			log.Warnf("locale %q: only english data sets are available, values will be generated in english", l)
		}
		tags = append(tags, tag)
	}
	if cfg.Seed != 0 {
		log.Infof("generator registry seeded with %d", cfg.Seed)
	}
	return &Registry{
		faker:   gofakeit.New(cfg.Seed),
		locales: tags,
	}, nil
}

// ParseLocale accepts both BCP 47 ("en-US") and POSIX style ("en_US") locales.
func ParseLocale(locale string) (language.Tag, error) {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return tag, nil
}

func (r *Registry) Locales() []language.Tag {
	return r.locales
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(name)
}

// resolve returns the lookup name and info for a generator name.
func resolve(name string) (string, *gofakeit.Info, error) {
	key := normalize(name)
	if target, ok := aliases[key]; ok {
		key = target
	}
	info := gofakeit.GetFuncLookup(key)
	if info == nil {
		return "", nil, errs.NewUnsupportedGeneratorError(name, "no such generator", suggest(key))
	}
	if !lo.Contains(scalarOutputs, info.Output) {
		return "", nil, errs.NewUnsupportedGeneratorError(name,
			fmt.Sprintf("output type %s cannot be stored in a column", info.Output), nil)
	}
	return key, info, nil
}

func suggest(key string) []string {
	if len(key) < 3 {
		return nil
	}
	candidates := lo.Filter(Names(), func(n string, _ int) bool {
		return strings.Contains(n, key) || strings.Contains(key, n)
	})
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	return candidates
}

// Validate checks that name resolves to a scalar generator that can be
// called without parameters.
func (r *Registry) Validate(name string) error {
	_, err := r.Generate(name)
	return err
}

// ValidateAll validates every name and returns all failures joined.
func (r *Registry) ValidateAll(names []string) error {
	var result []error
	for _, name := range lo.Uniq(names) {
		err := r.Validate(name)
		if err != nil {
			result = append(result, err)
		}
	}
	return errors.Join(result...)
}

func (r *Registry) Generate(name string) (any, error) {
	key, info, err := resolve(name)
	if err != nil {
		return nil, err
	}
	value, err := info.Generate(r.faker.Rand, nil, info)
	if err != nil {
		return nil, errs.NewUnsupportedGeneratorError(name, fmt.Sprintf("%s: %s", key, err), nil)
	}
	return toColumnValue(value), nil
}

// toColumnValue converts values the sql drivers cannot take as-is.
func toColumnValue(v any) any {
	switch val := v.(type) {
	case uint:
		return toColumnValue(uint64(val))
	case uint64:
		if val > math.MaxInt64 {
			return fmt.Sprint(val)
		}
		return int64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val.UTC()
	}
	return v
}

// Names returns the sorted lookup names of all generators usable in
// definitions files.
func Names() []string {
	var names []string
	for name, info := range gofakeit.FuncLookups {
		if lo.Contains(scalarOutputs, info.Output) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type GeneratorInfo struct {
	Name        string
	Category    string
	Description string
	Example     string
	Aliases     []string
}

func Describe() []GeneratorInfo {
	byTarget := make(map[string][]string)
	for alias, target := range aliases {
		byTarget[target] = append(byTarget[target], alias)
	}
	return lo.Map(Names(), func(name string, _ int) GeneratorInfo {
		info := gofakeit.GetFuncLookup(name)
		aliasList := byTarget[name]
		sort.Strings(aliasList)
		return GeneratorInfo{
			Name:        name,
			Category:    info.Category,
			Description: info.Description,
			Example:     info.Example,
			Aliases:     aliasList,
		}
	})
}

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
package sqlname

import (
	"fmt"
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

const (
	POSTGRESQL = "postgresql"
	MYSQL      = "mysql"
	SQLITE     = "sqlite"
)

var (
	pgPlainIdentifier     = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)
	mysqlPlainIdentifier  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
	sqlitePlainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	// Words that are reserved in all three dialects and commonly used as
	// table or column names. Anything in here is always quoted.
	reservedWords = mapset.NewThreadUnsafeSet(
		"all", "and", "as", "asc", "between", "case", "check", "column", "constraint", "create",
		"default", "delete", "desc", "distinct", "drop", "else", "end", "exists", "false", "foreign",
		"from", "grant", "group", "having", "in", "index", "insert", "into", "is", "join", "key",
		"like", "limit", "not", "null", "offset", "on", "or", "order", "primary", "references",
		"select", "set", "table", "then", "to", "true", "union", "unique", "update", "user",
		"using", "values", "when", "where", "with",
	)
)

// ObjectName is a possibly schema-qualified table name as written in the
// definitions file. Quoted parts keep their case; unquoted parts are taken
// literally as well, so names are case-sensitive the way they are written.
type ObjectName struct {
	dbType     string
	SchemaName string
	ObjectName string
}

func NewObjectName(dbType, name string) *ObjectName {
	parts := splitQualifiedName(name)
	on := &ObjectName{dbType: dbType}
	switch len(parts) {
	case 1:
		on.ObjectName = Unquote(parts[0])
	default:
		on.SchemaName = Unquote(strings.Join(parts[:len(parts)-1], "."))
		on.ObjectName = Unquote(parts[len(parts)-1])
	}
	return on
}

func (n *ObjectName) Unquoted() string {
	if n.SchemaName == "" {
		return n.ObjectName
	}
	return n.SchemaName + "." + n.ObjectName
}

func (n *ObjectName) MinQuoted() string {
	if n.SchemaName == "" {
		return MinQuote(n.dbType, n.ObjectName)
	}
	return MinQuote(n.dbType, n.SchemaName) + "." + MinQuote(n.dbType, n.ObjectName)
}

func (n *ObjectName) String() string {
	return n.MinQuoted()
}

// MinQuote quotes ident only when the dialect would otherwise fold or reject it.
func MinQuote(dbType, ident string) string {
	if reservedWords.Contains(strings.ToLower(ident)) {
		return Quote(dbType, ident)
	}
	var plain bool
	switch dbType {
	case POSTGRESQL:
		plain = pgPlainIdentifier.MatchString(ident)
	case MYSQL:
		plain = mysqlPlainIdentifier.MatchString(ident)
	case SQLITE:
		plain = sqlitePlainIdentifier.MatchString(ident)
	default:
		panic(fmt.Sprintf("invalid db type %q", dbType))
	}
	if plain {
		return ident
	}
	return Quote(dbType, ident)
}

func Quote(dbType, ident string) string {
	switch dbType {
	case MYSQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	case POSTGRESQL, SQLITE:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	default:
		panic(fmt.Sprintf("invalid db type %q", dbType))
	}
}

func Unquote(ident string) string {
	if len(ident) < 2 {
		return ident
	}
	first, last := ident[0], ident[len(ident)-1]
	switch {
	case first == '"' && last == '"':
		return strings.ReplaceAll(ident[1:len(ident)-1], `""`, `"`)
	case first == '`' && last == '`':
		return strings.ReplaceAll(ident[1:len(ident)-1], "``", "`")
	}
	return ident
}

func IsQuoted(ident string) bool {
	return Unquote(ident) != ident
}

// splitQualifiedName splits on dots that are not inside quotes.
func splitQualifiedName(name string) []string {
	var parts []string
	var cur strings.Builder
	var quote rune
	for _, r := range name {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case r == '"' || r == '`':
			quote = r
			cur.WriteRune(r)
		case r == '.':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

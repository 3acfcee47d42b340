package sql

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fabrica-orm/fabrica/dialect/sql/schema"
)

// Built-in table naming strategies, selected case-insensitively.
const (
	// NamingAlphaScheme derives aliases from the table group: letters for
	// the group's creation ordinal (A..Z, AA..) followed by the table's
	// ordinal within the group, with a _SUB suffix per subquery level.
	NamingAlphaScheme = "alpha-scheme"
	// NamingTScheme derives aliases T0, T1, ... counting references across
	// the statement and its ancestors.
	NamingTScheme = "t-scheme"
	// NamingTableName uses the physical table name as the alias.
	NamingTableName = "table-name"
)

// ExtensionPointTableNamer is the extension point queried for table naming
// strategies that are not built in.
const ExtensionPointTableNamer = "sql-table-namer"

// TableNamer derives the alias for a table about to be referenced by a
// statement. The reference is not yet registered when the namer runs.
type TableNamer interface {
	AliasForTable(s *Statement, t *schema.Table, group string) string
}

// ExtensionResolver locates plugin implementations for a named extension
// point.
type ExtensionResolver interface {
	Resolve(point, name string) (any, error)
}

// ExtensionResolverFunc adapts a function to the ExtensionResolver interface.
type ExtensionResolverFunc func(point, name string) (any, error)

// Resolve calls f(point, name).
func (f ExtensionResolverFunc) Resolve(point, name string) (any, error) {
	return f(point, name)
}

// The process-wide namer cache. Strategies are stateless, so one instance
// per name serves every statement; concurrent misses for the same name are
// collapsed to a single construction.
var (
	namersMu sync.RWMutex
	namers   = make(map[string]TableNamer)
	namersSF singleflight.Group
)

// RegisterTableNamer seeds the process-wide namer cache under the given
// name, replacing any previous entry. Lookup is case-insensitive.
func RegisterTableNamer(name string, n TableNamer) {
	namersMu.Lock()
	defer namersMu.Unlock()
	namers[strings.ToLower(name)] = n
}

// namerFor returns the namer for the given strategy name, constructing
// built-ins lazily and resolving unknown names through the resolver under
// ExtensionPointTableNamer.
func namerFor(name string, resolver ExtensionResolver) (TableNamer, error) {
	key := strings.ToLower(name)
	namersMu.RLock()
	n, ok := namers[key]
	namersMu.RUnlock()
	if ok {
		return n, nil
	}
	v, err, _ := namersSF.Do(key, func() (any, error) {
		namersMu.RLock()
		n, ok := namers[key]
		namersMu.RUnlock()
		if ok {
			return n, nil
		}
		n, err := buildNamer(key, resolver)
		if err != nil {
			return nil, err
		}
		namersMu.Lock()
		namers[key] = n
		namersMu.Unlock()
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(TableNamer), nil
}

func buildNamer(key string, resolver ExtensionResolver) (TableNamer, error) {
	switch key {
	case NamingAlphaScheme:
		return alphaNamer{}, nil
	case NamingTScheme:
		return tNamer{}, nil
	case NamingTableName:
		return tableNameNamer{}, nil
	}
	if resolver == nil {
		return nil, fmt.Errorf("dialect/sql: unknown table naming strategy %q", key)
	}
	v, err := resolver.Resolve(ExtensionPointTableNamer, key)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: resolve table naming strategy %q: %w", key, err)
	}
	n, ok := v.(TableNamer)
	if !ok {
		return nil, fmt.Errorf("dialect/sql: invalid type %T. expect sql.TableNamer", v)
	}
	return n, nil
}

// alphaNamer implements the alpha-scheme strategy.
type alphaNamer struct{}

func (alphaNamer) AliasForTable(s *Statement, t *schema.Table, group string) string {
	ordinal, members := s.groupStanding(group)
	alias := groupLetters(ordinal) + strconv.Itoa(members)
	for p := s.parent; p != nil; p = p.parent {
		alias += "_SUB"
	}
	return alias
}

// groupLetters converts a group ordinal to letters: 0..25 map to A..Z, then
// AA, AB and so on.
func groupLetters(n int) string {
	letters := make([]byte, 0, 2)
	for {
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n = n/26 - 1
		if n < 0 {
			return string(letters)
		}
	}
}

// tNamer implements the t-scheme strategy.
type tNamer struct{}

func (tNamer) AliasForTable(s *Statement, t *schema.Table, group string) string {
	n := 0
	for st := s; st != nil; st = st.parent {
		if st.primary != nil {
			n++
		}
		n += len(st.tables)
	}
	return "T" + strconv.Itoa(n)
}

// tableNameNamer implements the table-name strategy.
type tableNameNamer struct{}

func (tableNameNamer) AliasForTable(_ *Statement, t *schema.Table, _ string) string {
	return t.Name
}

// groupStanding reports the creation ordinal of the named group and its
// current member count. A group not yet registered gets the next ordinal and
// zero members, so an alias can be derived before the group exists.
func (s *Statement) groupStanding(group string) (ordinal, members int) {
	if idx := slices.Index(s.groupOrder, group); idx >= 0 {
		return idx, len(s.groups[group].refs)
	}
	return len(s.groupOrder), 0
}

var (
	_ TableNamer = alphaNamer{}
	_ TableNamer = tNamer{}
	_ TableNamer = tableNameNamer{}
)

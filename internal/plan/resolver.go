package plan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/vquery/internal/table"
)

// ErrSourceNotFound is returned by resolvers for unknown table names.
var ErrSourceNotFound = errors.New("source not found")

// SourceResolver maps a table name to a committed data unit.
type SourceResolver interface {
	Resolve(name string) (*table.Unit, error)
}

// MapResolver resolves names from an in-memory map.
type MapResolver map[string]*table.Unit

// Resolve implements SourceResolver.
func (m MapResolver) Resolve(name string) (*table.Unit, error) {
	u, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, name)
	}
	return u, nil
}

// Names returns the table names in sorted order.
func (m MapResolver) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolverFunc adapts a function to SourceResolver.
type ResolverFunc func(name string) (*table.Unit, error)

// Resolve implements SourceResolver.
func (f ResolverFunc) Resolve(name string) (*table.Unit, error) {
	return f(name)
}

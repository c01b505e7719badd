// Package fixture reads table fixtures from YAML and commits them as units.
//
// A fixture file lists named tables:
//
//	tables:
//	  - name: T
//	    columns:
//	      - {name: col0, type: int}
//	    rows:
//	      - [3]
//	      - [7]
//	      - [9]
package fixture

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/table"
)

// ErrInvalid is returned for a fixture that parses but cannot be committed.
var ErrInvalid = errors.New("invalid fixture")

// Table is one named table with its rows.
type Table struct {
	Name    string         `yaml:"name"`
	Columns []table.Column `yaml:"columns"`
	Rows    [][]any        `yaml:"rows"`
}

// File is the top-level fixture document.
type File struct {
	Tables []Table `yaml:"tables"`
}

// Schema returns the declared schema.
func (t Table) Schema() table.Schema {
	return table.Schema{Columns: t.Columns}
}

// Build converts the rows to IR values and commits them.
func (t Table) Build() (*table.Unit, error) {
	rows := make([]table.Row, len(t.Rows))
	for i, raw := range t.Rows {
		row := make(table.Row, len(raw))
		for j, v := range raw {
			iv, err := ir.FromGo(v)
			if err != nil {
				return nil, fmt.Errorf("%w: table %q row %d column %d: %v", ErrInvalid, t.Name, i, j, err)
			}
			row[j] = iv
		}
		rows[i] = row
	}

	u, err := table.Commit(table.NewPage(rows...), t.Schema())
	if err != nil {
		return nil, fmt.Errorf("%w: table %q: %w", ErrInvalid, t.Name, err)
	}
	return u, nil
}

// Units commits every table, keyed by name.
func (f *File) Units() (map[string]*table.Unit, error) {
	units := make(map[string]*table.Unit, len(f.Tables))
	for _, t := range f.Tables {
		u, err := t.Build()
		if err != nil {
			return nil, err
		}
		units[t.Name] = u
	}
	return units, nil
}

// LoadFile reads and parses a fixture file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes a fixture document. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names are present and unique.
func (f *File) Validate() error {
	if len(f.Tables) == 0 {
		return fmt.Errorf("%w: no tables", ErrInvalid)
	}
	seen := make(map[string]bool, len(f.Tables))
	for i, t := range f.Tables {
		if t.Name == "" {
			return fmt.Errorf("%w: tables[%d]: name is required", ErrInvalid, i)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate table %q", ErrInvalid, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

package table

import (
	"fmt"

	"github.com/roach88/vquery/internal/ir"
)

// Row is an ordered list of scalar values, one per schema column.
type Row []ir.IRValue

// Clone returns a copy of the row. Values are immutable scalars.
func (r Row) Clone() Row {
	return append(Row(nil), r...)
}

// Page is the row data of a unit.
type Page struct {
	Rows []Row
}

// NewPage builds a page from rows.
func NewPage(rows ...Row) Page {
	return Page{Rows: rows}
}

// Len returns the number of rows.
func (p Page) Len() int { return len(p.Rows) }

// Clone returns a deep copy of the page.
func (p Page) Clone() Page {
	rows := make([]Row, len(p.Rows))
	for i, r := range p.Rows {
		rows[i] = r.Clone()
	}
	return Page{Rows: rows}
}

// Canonical returns the page as an IR array of arrays.
func (p Page) Canonical() ir.IRArray {
	out := make(ir.IRArray, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = ir.IRArray(r)
	}
	return out
}

// EncodePage returns the canonical byte payload of a page.
// These are the bytes a commitment binds.
func EncodePage(p Page) ([]byte, error) {
	b, err := ir.MarshalCanonical(p.Canonical())
	if err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	return b, nil
}

// DecodePage parses a canonical page payload.
func DecodePage(data []byte) (Page, error) {
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return Page{}, fmt.Errorf("decode page: %w", err)
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return Page{}, fmt.Errorf("decode page: payload is %s, want array", ir.TypeName(v))
	}

	rows := make([]Row, len(arr))
	for i, elem := range arr {
		row, ok := elem.(ir.IRArray)
		if !ok {
			return Page{}, fmt.Errorf("decode page: row %d is %s, want array", i, ir.TypeName(elem))
		}
		rows[i] = Row(row)
	}
	return Page{Rows: rows}, nil
}

// CheckRows verifies every row has one value per column and the declared type.
func CheckRows(p Page, s Schema) error {
	for i, row := range p.Rows {
		if len(row) != len(s.Columns) {
			return fmt.Errorf("%w: row %d has %d values, schema has %d columns",
				ErrRowInvalid, i, len(row), len(s.Columns))
		}
		for j, v := range row {
			if got := ir.TypeName(v); got != string(s.Columns[j].Type) {
				return fmt.Errorf("%w: row %d column %q is %s, want %s",
					ErrRowInvalid, i, s.Columns[j].Name, got, s.Columns[j].Type)
			}
		}
	}
	return nil
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/table"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestUnit commits int rows with a text label column.
func createTestUnit(label string, vals ...int64) *table.Unit {
	rows := make([]table.Row, len(vals))
	for i, v := range vals {
		rows[i] = table.Row{ir.IRInt(v), ir.IRString(label)}
	}
	return table.MustCommit(table.NewPage(rows...),
		table.NewSchema("col0", table.ColumnInt, "label", table.ColumnText))
}

package testutil

import (
	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/table"
)

// Seed is the reference backend seed used by deterministic tests.
const Seed = "vquery-test"

// IntSchema is a single int column named col0.
var IntSchema = table.NewSchema("col0", table.ColumnInt)

// IntUnit commits a single-column unit holding vals, in order.
func IntUnit(vals ...int64) *table.Unit {
	rows := make([]table.Row, len(vals))
	for i, v := range vals {
		rows[i] = table.Row{ir.IRInt(v)}
	}
	return table.MustCommit(table.NewPage(rows...), IntSchema)
}

// Ints returns the col0 values of a single-column unit.
func Ints(u *table.Unit) []int64 {
	if u == nil {
		return nil
	}
	out := make([]int64, 0, u.Rows())
	for _, r := range u.Page.Rows {
		out = append(out, int64(r[0].(ir.IRInt)))
	}
	return out
}

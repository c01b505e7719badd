package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vquery/internal/config"
	"github.com/roach88/vquery/internal/testutil"
)

const filterPlan = `plan: {
	op: "filter"
	predicate: {op: ">", args: [{col: 0}, {lit: 5}]}
	input: {op: "scan", table: "T"}
}
`

const tablesFixture = `tables:
  - name: T
    columns:
      - {name: col0, type: int}
    rows: [[3], [7], [9]]
`

// testOptions returns root options with an in-test config: a seeded backend
// and a database under t.TempDir.
func testOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format: format,
		Config: &config.Config{
			DB:      filepath.Join(t.TempDir(), "vquery.db"),
			Workers: 2,
			Backend: config.BackendConfig{Seed: testutil.Seed},
			Keys:    config.KeysConfig{Cache: true},
			Log:     config.LogConfig{Level: "error"},
		},
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

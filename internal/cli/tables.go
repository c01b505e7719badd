package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// TablesOptions holds flags for the tables command.
type TablesOptions struct {
	*RootOptions
	Database string
}

// TableInfo describes one stored unit.
type TableInfo struct {
	Name       string `json:"name"`
	Rows       int    `json:"rows"`
	Schema     string `json:"schema"`
	Commitment string `json:"commitment"`
}

// TablesResult lists stored units.
type TablesResult struct {
	Tables []TableInfo `json:"tables"`
}

func (r TablesResult) String() string {
	if len(r.Tables) == 0 {
		return "No tables stored."
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tROWS\tSCHEMA\tCOMMITMENT")
	for _, t := range r.Tables {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", t.Name, t.Rows, t.Schema, shortDigest(t.Commitment))
	}
	w.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TablesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List stored tables",
		Long: `List every committed table in the store with its schema and commitment.

Example:
  vquery tables --db ./vquery.db
  vquery tables --db ./vquery.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runTables(opts *TablesOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg, err := opts.settings()
	if err != nil {
		return err
	}

	st, err := openStore(firstNonEmpty(opts.Database, cfg.DB))
	if err != nil {
		return err
	}
	defer closeStore(st, slog.Default())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	units, err := st.Units(ctx)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to list tables", err)
	}

	result := TablesResult{Tables: make([]TableInfo, 0, len(units))}
	for _, u := range units {
		result.Tables = append(result.Tables, TableInfo{
			Name:       u.Name,
			Rows:       u.Rows,
			Schema:     u.Schema.String(),
			Commitment: u.Commitment.String(),
		})
	}
	return out.Success(result)
}

// shortDigest truncates a hex digest for table output.
func shortDigest(d string) string {
	if len(d) <= 12 {
		return d
	}
	return d[:12]
}

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/vquery/internal/engine"
	"github.com/roach88/vquery/internal/fixture"
	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/plan"
	"github.com/roach88/vquery/internal/table"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	Tamper bool
}

// demoTable is the fixture the demo plan scans.
var demoTable = fixture.Table{
	Name:    "T",
	Columns: []table.Column{{Name: "col0", Type: table.ColumnInt}},
	Rows:    [][]any{{3}, {7}, {9}},
}

// demoPlan is Scan(T) then Filter(col0 > 5).
func demoPlan() *plan.Node {
	return plan.Filter(plan.Scan(demoTable.Name), plan.Bin(">", plan.Col(0), plan.Lit(5)))
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Prove and verify a filter over a generated table",
		Long: `Commit table T with col0 = [3, 7, 9], flatten Scan(T) -> Filter(col0 > 5),
run every phase and verify the root proof.

With --tamper the root output is replaced by all of T after execution and
before proving. Verification must then fail.

Exit codes:
  0 - Root proof verified
  1 - Root proof rejected
  2 - Command error

Example:
  vquery demo
  vquery demo --tamper --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Tamper, "tamper", false, "forge the root output before proving")

	return cmd
}

func runDemo(opts *DemoOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg, err := opts.settings()
	if err != nil {
		return err
	}
	logger := slog.Default()

	u, err := demoTable.Build()
	if err != nil {
		return out.Fail(ExitCommandError, "failed to build fixture", err)
	}
	a, err := flattenPlan(&loadedPlan{Root: demoPlan()}, plan.MapResolver{demoTable.Name: u}, logger)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to flatten plan", err)
	}

	var extra []engine.Option
	if opts.Tamper {
		extra = append(extra, engine.WithPhaseHook(forgeRoot(u)))
	}
	runner, err := newRunner(cfg, logger, extra...)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to create runner", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rep, err := runner.Run(ctx, a)
	if rep == nil {
		return out.Fail(ExitCommandError, "pipeline failed", err)
	}

	summary := summarize(rep, a.Root(), opts.Verbose)
	if err := out.Success(summary); err != nil {
		return err
	}
	if !rep.Verified {
		return WrapExitError(ExitFailure, "root verification failed", err)
	}
	return nil
}

// forgeRoot replaces the root output with forged once execution finished.
func forgeRoot(forged *table.Unit) engine.PhaseHook {
	return func(_ context.Context, phase engine.Phase, a *node.Arena) error {
		if phase != engine.PhaseExecute {
			return nil
		}
		slog.Warn("tampering with root output", "node", a.Root().Label, "rows", forged.Rows())
		return a.Root().OverrideOutput(node.Output{Unit: forged})
	}
}

// RunSummary is the printed outcome of a run.
type RunSummary struct {
	RunID      string              `json:"run_id"`
	Seq        int64               `json:"seq"`
	Root       string              `json:"root"`
	Nodes      int                 `json:"nodes"`
	Circuits   int                 `json:"circuits"`
	Verified   bool                `json:"verified"`
	Commitment string              `json:"commitment"`
	Rows       []ir.IRArray        `json:"rows"`
	Trace      []engine.TraceEvent `json:"trace,omitempty"`
}

func summarize(rep *engine.Report, root *node.Node, withTrace bool) RunSummary {
	s := RunSummary{
		RunID:      rep.RunID,
		Seq:        rep.Seq,
		Root:       root.Label,
		Nodes:      rep.Nodes,
		Circuits:   rep.Circuits,
		Verified:   rep.Verified,
		Commitment: rep.Commitment().String(),
		Rows:       outputRows(rep.Output),
	}
	if withTrace {
		s.Trace = rep.Trace
	}
	return s
}

func (s RunSummary) String() string {
	verdict := "VERIFIED"
	if !s.Verified {
		verdict = "REJECTED"
	}
	text := fmt.Sprintf("Run %s (seq %d): %s\n  root:       %s\n  nodes:      %d\n  circuits:   %d\n  commitment: %s\n  rows:       %s",
		s.RunID, s.Seq, verdict, s.Root, s.Nodes, s.Circuits, s.Commitment, formatRows(s.Rows))
	for _, ev := range s.Trace {
		text += fmt.Sprintf("\n  [%d] %-7s %-14s rows=%d %s", ev.Seq, ev.Phase, ev.Label, ev.Rows, ev.Stage)
	}
	return text
}

func outputRows(out node.Output) []ir.IRArray {
	if out.Scalar != nil {
		return []ir.IRArray{{out.Scalar.Value}}
	}
	rows := []ir.IRArray{}
	if out.Unit == nil {
		return rows
	}
	for _, r := range out.Unit.Page.Rows {
		rows = append(rows, ir.IRArray(r))
	}
	return rows
}

func formatRows(rows []ir.IRArray) string {
	arr := make(ir.IRArray, len(rows))
	for i, r := range rows {
		arr[i] = r
	}
	b, err := ir.MarshalCanonical(arr)
	if err != nil {
		return fmt.Sprintf("%v", rows)
	}
	return string(b)
}

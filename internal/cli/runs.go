package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/vquery/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// RunInfo summarizes a persisted run.
type RunInfo struct {
	ID             string `json:"id"`
	Seq            int64  `json:"seq"`
	Verified       bool   `json:"verified"`
	Nodes          int    `json:"nodes"`
	Backend        string `json:"backend"`
	PlanDigest     string `json:"plan_digest"`
	RootCommitment string `json:"root_commitment"`
}

// ProofInfo summarizes the persisted proof of one node.
type ProofInfo struct {
	Position         int    `json:"position"`
	Label            string `json:"label"`
	Kind             string `json:"kind"`
	ShapeDigest      string `json:"shape_digest"`
	OutputCommitment string `json:"output_commitment"`
}

// RunsResult lists runs, or one run with its proofs.
type RunsResult struct {
	Runs   []RunInfo   `json:"runs"`
	Proofs []ProofInfo `json:"proofs,omitempty"`
}

func (r RunsResult) String() string {
	if len(r.Runs) == 0 {
		return "No runs stored."
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tRUN\tVERIFIED\tNODES\tBACKEND\tROOT")
	for _, run := range r.Runs {
		fmt.Fprintf(w, "%d\t%s\t%t\t%d\t%s\t%s\n",
			run.Seq, run.ID, run.Verified, run.Nodes, run.Backend, shortDigest(run.RootCommitment))
	}
	if len(r.Proofs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "POS\tLABEL\tKIND\tSHAPE\tOUTPUT")
		for _, p := range r.Proofs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				p.Position, p.Label, p.Kind, shortDigest(p.ShapeDigest), shortDigest(p.OutputCommitment))
		}
	}
	w.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted runs and their proofs",
		Long: `List every persisted run in sequence order. With --run, show that run and
the proof recorded for each of its nodes.

Example:
  vquery runs --db ./vquery.db
  vquery runs --db ./vquery.db --run 01927c3e-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the proofs of one run")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
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

	if opts.RunID == "" {
		runs, err := st.Runs(ctx)
		if err != nil {
			return out.Fail(ExitCommandError, "failed to list runs", err)
		}
		result := RunsResult{Runs: make([]RunInfo, 0, len(runs))}
		for _, r := range runs {
			result.Runs = append(result.Runs, runInfo(r))
		}
		return out.Success(result)
	}

	run, err := st.Run(ctx, opts.RunID)
	if errors.Is(err, store.ErrNotFound) {
		return out.Fail(ExitCommandError, fmt.Sprintf("run %q not found", opts.RunID), err)
	}
	if err != nil {
		return out.Fail(ExitCommandError, "failed to read run", err)
	}
	proofs, err := st.Proofs(ctx, run.ID)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to read proofs", err)
	}

	result := RunsResult{Runs: []RunInfo{runInfo(run)}, Proofs: make([]ProofInfo, 0, len(proofs))}
	for _, p := range proofs {
		result.Proofs = append(result.Proofs, ProofInfo{
			Position:         p.Position,
			Label:            p.Label,
			Kind:             p.Kind,
			ShapeDigest:      p.ShapeDigest.String(),
			OutputCommitment: p.OutputCommitment.String(),
		})
	}
	return out.Success(result)
}

func runInfo(r store.RunRecord) RunInfo {
	return RunInfo{
		ID:             r.ID,
		Seq:            r.Seq,
		Verified:       r.Verified,
		Nodes:          r.Nodes,
		Backend:        r.Backend,
		PlanDigest:     r.PlanDigest.String(),
		RootCommitment: r.RootCommitment.String(),
	}
}

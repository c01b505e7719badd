package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/plan"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Plan     string
	Database string
	Fixture  string
}

// NodeInfo describes one flattened node.
type NodeInfo struct {
	Position int      `json:"position"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"`
	Inputs   []string `json:"inputs"`
	Schema   string   `json:"schema"`
}

// ValidationError locates a plan error.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Nodes []NodeInfo       `json:"nodes,omitempty"`
	Error *ValidationError `json:"error,omitempty"`
}

func (r ValidationResult) String() string {
	if !r.Valid {
		if r.Error.Line > 0 {
			return fmt.Sprintf("Invalid plan [%s] line %d: %s", r.Error.Code, r.Error.Line, r.Error.Message)
		}
		return fmt.Sprintf("Invalid plan [%s]: %s", r.Error.Code, r.Error.Message)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Plan valid: %d node(s)", len(r.Nodes))
	for _, n := range r.Nodes {
		fmt.Fprintf(&b, "\n  %d %s <- [%s] %s", n.Position, n.Label, strings.Join(n.Inputs, ", "), n.Schema)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Flatten a plan without running it",
		Long: `Compile a CUE plan and flatten it into its node sequence without executing
or proving anything. Scans resolve against the store (--db) or a fixture file
(--fixture).

Exit codes:
  0 - Plan is valid
  1 - Plan is invalid
  2 - Command error

Example:
  vquery validate --plan plans/join.cue --fixture tables.yaml
  vquery validate --plan plans/join.cue --db ./vquery.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Plan, "plan", "", "path to CUE plan file (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "resolve scans against this database")
	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "resolve scans against this fixture file")
	_ = cmd.MarkFlagRequired("plan")
	cmd.MarkFlagsMutuallyExclusive("db", "fixture")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg, err := opts.settings()
	if err != nil {
		return err
	}
	logger := slog.Default()

	var resolver plan.SourceResolver
	if opts.Fixture != "" {
		res, err := fixtureResolver(opts.Fixture)
		if err != nil {
			return out.Fail(ExitCommandError, "failed to load fixture", err)
		}
		resolver = res
	} else {
		st, err := openStore(firstNonEmpty(opts.Database, cfg.DB))
		if err != nil {
			return err
		}
		defer closeStore(st, logger)
		resolver = st
	}

	out.VerboseLog("Validating %s", opts.Plan)
	p, err := loadPlan(opts.Plan)
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return out.Fail(ExitCommandError, "failed to load plan", err)
	}
	if err == nil {
		var a *node.Arena
		if a, err = flattenPlan(p, resolver, logger); err == nil {
			return out.Success(ValidationResult{Valid: true, Nodes: describeNodes(a)})
		}
	}

	if err := out.Success(ValidationResult{Error: validationError(err)}); err != nil {
		return err
	}
	return WrapExitError(ExitFailure, "plan is invalid", err)
}

func validationError(err error) *ValidationError {
	ve := &ValidationError{Code: ErrorCode(err), Message: err.Error()}
	var ce *plan.CompileError
	if errors.As(err, &ce) {
		ve.Message = ce.Message
		if ce.Pos.IsValid() {
			ve.Line = ce.Pos.Line()
		}
	}
	return ve
}

func describeNodes(a *node.Arena) []NodeInfo {
	nodes := a.Nodes()
	infos := make([]NodeInfo, len(nodes))
	for i, n := range nodes {
		inputs := make([]string, len(n.Inputs))
		for j, in := range n.Inputs {
			inputs[j] = in.String()
		}
		infos[i] = NodeInfo{
			Position: n.Position,
			Label:    n.Label,
			Kind:     string(n.Kind()),
			Inputs:   inputs,
			Schema:   n.Schema.String(),
		}
	}
	return infos
}

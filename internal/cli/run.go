package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/vquery/internal/engine"
	"github.com/roach88/vquery/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Plan     string

	// RunIDs overrides the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Prove a plan over stored tables",
		Long: `Flatten a CUE plan against the tables in the store, run every phase and
verify the root proof. The run and every node proof are persisted, whether
or not the root verifies.

Settings come from --config, VQUERY_* environment variables and defaults:
workers, backend.seed, keys.cache, keys.cross_run and metrics.addr. When
metrics.addr is set, Prometheus metrics are served on /metrics for the
duration of the run.

Exit codes:
  0 - Root proof verified
  1 - Root proof rejected
  2 - Command error

Example:
  vquery run --db ./vquery.db --plan plans/filter.cue
  VQUERY_WORKERS=4 vquery run --db ./vquery.db --plan plans/join.cue --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "path to CUE plan file (required)")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func runPlan(opts *RunOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	cfg, err := opts.settings()
	if err != nil {
		return err
	}
	logger := slog.Default()

	p, err := loadPlan(opts.Plan)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to load plan", err)
	}

	dbPath := firstNonEmpty(opts.Database, cfg.DB)
	logger.Info("opening database", "path", dbPath)
	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	a, err := flattenPlan(p, st, logger)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to flatten plan", err)
	}
	logger.Info("plan flattened", "plan", p.Digest.Short(), "nodes", a.Len())

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, cancelling run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	clock, err := resumeClock(ctx, st)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to read last run", err)
	}
	extra := []engine.Option{engine.WithClock(clock)}
	if opts.RunIDs != nil {
		extra = append(extra, engine.WithRunIDs(opts.RunIDs))
	}
	runner, err := newRunner(cfg, logger, extra...)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to create runner", err)
	}

	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, logger)
		if err != nil {
			return out.Fail(ExitCommandError, "failed to start metrics endpoint", err)
		}
		defer stop()
	}

	rep, runErr := runner.Run(ctx, a)
	if rep == nil {
		return out.Fail(ExitCommandError, "pipeline failed", runErr)
	}

	run, proofs := store.RecordsFromRun(p.Digest, runner.Backend().Name(), rep, a)
	if err := st.WriteRun(ctx, run, proofs); err != nil {
		return out.Fail(ExitCommandError, "failed to persist run", err)
	}
	logger.Info("run persisted", "run", run.ID, "seq", run.Seq, "proofs", len(proofs))

	if err := out.Success(summarize(rep, a.Root(), opts.Verbose)); err != nil {
		return err
	}
	if !rep.Verified {
		return WrapExitError(ExitFailure, "root verification failed", runErr)
	}
	return nil
}

// serveMetrics serves the default Prometheus registry on addr until the
// returned stop function is called.
func serveMetrics(addr string, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

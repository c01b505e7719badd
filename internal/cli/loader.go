package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/vquery/internal/compiler"
	"github.com/roach88/vquery/internal/config"
	"github.com/roach88/vquery/internal/engine"
	"github.com/roach88/vquery/internal/fixture"
	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/plan"
	"github.com/roach88/vquery/internal/proof"
	"github.com/roach88/vquery/internal/store"
)

// loadedPlan is a compiled plan with the digest of its source, which
// identifies the plan in persisted runs.
type loadedPlan struct {
	Root   *plan.Node
	Digest ir.Digest
}

func loadPlan(path string) (*loadedPlan, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	root, err := plan.Compile(path, src)
	if err != nil {
		return nil, err
	}
	return &loadedPlan{Root: root, Digest: ir.HashWithDomain(ir.DomainPlan, src)}, nil
}

// fixtureResolver commits every table of a fixture file and resolves scans
// against them.
func fixtureResolver(path string) (plan.MapResolver, error) {
	f, err := fixture.LoadFile(path)
	if err != nil {
		return nil, err
	}
	units, err := f.Units()
	if err != nil {
		return nil, err
	}
	return plan.MapResolver(units), nil
}

// flattenPlan flattens a plan, logging the resulting node sequence at Debug.
func flattenPlan(p *loadedPlan, resolver plan.SourceResolver, logger *slog.Logger) (*node.Arena, error) {
	a, err := compiler.Flatten(p.Root, resolver)
	if err != nil {
		return nil, err
	}
	for _, n := range a.Nodes() {
		logger.Debug("node", "position", n.Position, "label", n.Label, "kind", n.Kind(), "schema", n.Schema.String())
	}
	return a, nil
}

func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "database path is empty: set --db or db in config")
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}

// backendFor returns the reference backend, seeded from config when a seed is
// set.
func backendFor(cfg *config.Config) (proof.Backend, error) {
	if cfg.Backend.Seed != "" {
		return proof.NewReferenceWithSeed(cfg.Backend.Seed), nil
	}
	return proof.NewReference()
}

// newRunner builds a runner from config. extra options are applied last.
func newRunner(cfg *config.Config, logger *slog.Logger, extra ...engine.Option) (*engine.Runner, error) {
	backend, err := backendFor(cfg)
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{
		engine.WithBackend(backend),
		engine.WithLogger(logger),
		engine.WithKeyCache(cfg.Keys.Cache),
	}
	if cfg.Keys.CrossRun {
		opts = append(opts, engine.WithCrossRunKeyReuse())
	}
	if cfg.Workers > 0 {
		opts = append(opts, engine.WithWorkers(cfg.Workers))
	}
	return engine.NewRunner(append(opts, extra...)...)
}

// resumeClock continues run numbering after the last persisted run.
func resumeClock(ctx context.Context, st *store.Store) (*engine.Clock, error) {
	last, err := st.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	return engine.NewClockAt(last), nil
}

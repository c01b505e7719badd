package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/node"
	"github.com/roach88/vquery/internal/proof"
)

// ErrEmptyPipeline is returned by Run for an arena with no nodes.
var ErrEmptyPipeline = errors.New("pipeline has no nodes")

// Runner drives an arena through Execute, KeyGen, Prove and Verify.
//
// Phases are separated by a barrier: no node starts a phase before every node
// finished the previous one. Within Execute and Prove a node starts only after
// the nodes it reads; KeyGen and Verify run every node at once. Independent
// nodes run in parallel on a bounded worker pool.
//
// A Runner may be shared. Concurrent runs must use distinct arenas.
type Runner struct {
	backend   proof.Backend
	workers   int
	cacheKeys bool
	crossRun  bool
	keys      *keyCache
	logger    *slog.Logger
	ids       RunIDGenerator
	clock     *Clock
	hook      PhaseHook
}

// PhaseHook runs inside Run after every node finished a phase and before the
// next phase starts. A non-nil error aborts the run.
type PhaseHook func(ctx context.Context, phase Phase, a *node.Arena) error

// Option configures a Runner.
type Option func(*Runner)

// WithBackend sets the proof backend. Default: a reference backend with a
// random seed.
func WithBackend(b proof.Backend) Option {
	return func(r *Runner) { r.backend = b }
}

// WithWorkers bounds the number of nodes processed at once.
// Default: GOMAXPROCS. Values below 1 are treated as 1.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = max(n, 1) }
}

// WithKeyCache toggles sharing keys between nodes of equal shape within a run.
// Default: enabled.
func WithKeyCache(enabled bool) Option {
	return func(r *Runner) { r.cacheKeys = enabled }
}

// WithCrossRunKeyReuse keeps the key cache between runs of this Runner.
// Key material then outlives the run that generated it.
func WithCrossRunKeyReuse() Option {
	return func(r *Runner) { r.crossRun = true }
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithRunIDs sets the run ID generator. Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(r *Runner) { r.ids = g }
}

// WithClock sets the run sequence clock. Default: a clock at 0.
func WithClock(c *Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithPhaseHook installs a hook called at every phase barrier of Run.
func WithPhaseHook(h PhaseHook) Option {
	return func(r *Runner) { r.hook = h }
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) (*Runner, error) {
	r := &Runner{
		workers:   runtime.GOMAXPROCS(0),
		cacheKeys: true,
		keys:      newKeyCache(),
		logger:    slog.Default(),
		ids:       UUIDv7Generator{},
		clock:     NewClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.backend == nil {
		b, err := proof.NewReference()
		if err != nil {
			return nil, err
		}
		r.backend = b
	}
	if r.crossRun {
		r.logger.Warn("cross-run key reuse enabled: key material outlives its run",
			"backend", r.backend.Name())
	}
	return r, nil
}

// Backend returns the proof backend.
func (r *Runner) Backend() proof.Backend { return r.backend }

// Report summarizes a run.
type Report struct {
	RunID string
	Seq   int64
	Nodes int

	// Root is the verdict for the last node.
	Root     Verdict
	Output   node.Output
	Verified bool

	// Circuits is the number of distinct circuits keyed during the run.
	Circuits  int
	Trace     []TraceEvent
	Durations map[Phase]time.Duration
}

// Commitment returns the commitment of the root output.
func (rep *Report) Commitment() ir.Digest { return rep.Output.Commitment() }

type runStateKey struct{}

// runState is the per-run context carried through the stage methods.
type runState struct {
	id    string
	keys  *keyCache
	trace *Trace
}

func stateFrom(ctx context.Context) *runState {
	s, _ := ctx.Value(runStateKey{}).(*runState)
	return s
}

func (r *Runner) runID(ctx context.Context) string {
	if s := stateFrom(ctx); s != nil {
		return s.id
	}
	return ""
}

func (r *Runner) cache(ctx context.Context) *keyCache {
	if s := stateFrom(ctx); s != nil {
		return s.keys
	}
	return r.keys
}

// Run executes, keys, and proves every node, then verifies the root.
//
// A rejected root proof returns the report with Verified false together with
// an error matching ErrVerificationFailed. Any other stage error aborts the
// run; the report is nil.
func (r *Runner) Run(ctx context.Context, a *node.Arena) (*Report, error) {
	if a == nil || a.Len() == 0 {
		return nil, ErrEmptyPipeline
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	state := &runState{id: r.ids.Generate(), keys: r.keys, trace: &Trace{}}
	if !r.crossRun {
		state.keys = newKeyCache()
	}
	ctx = context.WithValue(ctx, runStateKey{}, state)

	rep := &Report{
		RunID:     state.id,
		Seq:       r.clock.Next(),
		Nodes:     a.Len(),
		Durations: make(map[Phase]time.Duration, len(Phases)),
	}
	r.logger.Info("run starting", "run", state.id, "seq", rep.Seq, "nodes", a.Len(), "workers", r.workers)

	pool, err := r.newPool()
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	for _, phase := range []Phase{PhaseExecute, PhaseKeyGen, PhaseProve} {
		start := time.Now()
		if err := r.runPhase(ctx, pool, a, phase); err != nil {
			r.logger.Error("run aborted", "run", state.id, "phase", phase, "error", err)
			return nil, err
		}
		rep.Durations[phase] = r.observePhase(ctx, phase, a.Len(), start)
		if r.hook != nil {
			if err := r.hook(ctx, phase, a); err != nil {
				return nil, fmt.Errorf("after %s: %w", phase, err)
			}
		}
	}
	rep.Circuits = state.keys.len()

	start := time.Now()
	root := a.Root()
	verdict, verr := r.Verify(ctx, a, root.Position)
	if verr == nil {
		state.trace.record(PhaseVerify, root)
	}
	rep.Durations[PhaseVerify] = r.observePhase(ctx, PhaseVerify, 1, start)

	rep.Root = verdict
	rep.Output = root.Output()
	rep.Verified = verdict.OK
	rep.Trace = state.trace.Events()

	if verr != nil {
		if IsVerificationFailed(verr) {
			return rep, verr
		}
		return nil, verr
	}
	r.logger.Info("run verified", "run", state.id, "root", root.Label,
		"commitment", rep.Commitment().Short(), "circuits", rep.Circuits)
	return rep, nil
}

// RunPhase runs one phase over every node of a, honoring the same ordering
// and barrier rules as Run. Verify failures are reported as errors.
func (r *Runner) RunPhase(ctx context.Context, a *node.Arena, phase Phase) error {
	if err := a.Validate(); err != nil {
		return err
	}
	pool, err := r.newPool()
	if err != nil {
		return err
	}
	defer pool.Release()
	return r.runPhase(ctx, pool, a, phase)
}

// VerifyRoot verifies the last node of a.
func (r *Runner) VerifyRoot(ctx context.Context, a *node.Arena) (Verdict, error) {
	if a == nil || a.Len() == 0 {
		return Verdict{}, ErrEmptyPipeline
	}
	return r.Verify(ctx, a, a.Root().Position)
}

func (r *Runner) newPool() (*ants.Pool, error) {
	pool, err := ants.NewPool(r.workers, ants.WithPanicHandler(func(v any) {
		r.logger.Error("worker panic", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return pool, nil
}

func (r *Runner) observePhase(ctx context.Context, phase Phase, nodes int, start time.Time) time.Duration {
	d := time.Since(start)
	PhaseDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
	r.logger.Info("phase complete", "run", r.runID(ctx), "phase", phase, "nodes", nodes, "duration", d)
	return d
}

func (r *Runner) step(ctx context.Context, a *node.Arena, phase Phase, pos int) error {
	switch phase {
	case PhaseExecute:
		return r.Execute(ctx, a, pos)
	case PhaseKeyGen:
		return r.KeyGen(ctx, a, pos)
	case PhaseProve:
		return r.Prove(ctx, a, pos)
	case PhaseVerify:
		_, err := r.Verify(ctx, a, pos)
		return err
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}
}

// runPhase runs phase over a in waves. Every submitted task is awaited before
// runPhase returns, so no worker touches the arena after the barrier.
func (r *Runner) runPhase(ctx context.Context, pool *ants.Pool, a *node.Arena, phase Phase) error {
	waves := a.Waves()
	if !phase.ordered() {
		all := make([]int, a.Len())
		for i := range all {
			all[i] = i
		}
		waves = [][]int{all}
	}

	trace := &Trace{}
	if s := stateFrom(ctx); s != nil {
		trace = s.trace
	}

	for _, wave := range waves {
		g, gctx := errgroup.WithContext(ctx)
		for _, pos := range wave {
			g.Go(func() error {
				done := make(chan error, 1)
				task := func() {
					defer func() {
						if v := recover(); v != nil {
							done <- fmt.Errorf("%s node %d: panic: %v", phase, pos, v)
						}
					}()
					err := r.step(gctx, a, phase, pos)
					if err == nil {
						trace.record(phase, a.At(pos))
					}
					done <- err
				}
				if err := pool.Submit(task); err != nil {
					return fmt.Errorf("submit %s node %d: %w", phase, pos, err)
				}
				return <-done
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

package qdemo

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/algorithms"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
	"github.com/theapemachine/qdemo/plot"
	"github.com/theapemachine/qdemo/sim"
	"github.com/theapemachine/qdemo/store"
)

// Result is everything one demo run produced.
type Result struct {
	ID            uuid.UUID
	Demo          string
	Title         string
	Backend       string
	Shots         int
	Counts        backend.Counts
	Probabilities backend.Probabilities
	Report        algorithms.Report
	Histogram     string
	Diagram       string
	Duration      time.Duration
}

/*
Runner takes a demo from circuit to verdict: it builds and draws the circuit,
picks a backend for the demo's target, samples it, reads the histogram and
records the run. Remote demos go to the provider; without one they fall back
to the local simulator when the config allows it.
*/
type Runner struct {
	config   *Config
	pool     *Q
	local    backend.Backend
	provider backend.Provider
	store    *store.Store
	progress *BroadcastGroup
	logger   *log.Logger
}

type RunnerOption func(*Runner)

func WithProvider(p backend.Provider) RunnerOption {
	return func(r *Runner) {
		r.provider = p
	}
}

func WithStore(s *store.Store) RunnerOption {
	return func(r *Runner) {
		r.store = s
	}
}

func WithLocalBackend(b backend.Backend) RunnerOption {
	return func(r *Runner) {
		r.local = b
	}
}

func WithLogger(logger *log.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

func NewRunner(pool *Q, config *Config, opts ...RunnerOption) *Runner {
	if config == nil {
		config = NewConfig()
	}
	r := &Runner{
		config:   config,
		pool:     pool,
		progress: pool.CreateBroadcastGroup(ProgressGroup, 0),
		logger:   log.Default().WithPrefix("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.local == nil {
		r.local = sim.NewLocal(r.simOptions()...)
	}
	return r
}

// Progress subscribes to the runner's stage events.
func (r *Runner) Progress(buffer int, filters ...FilterFunc) chan Event {
	return r.progress.Subscribe(buffer, filters...)
}

func (r *Runner) simOptions(extra ...sim.Option) []sim.Option {
	var opts []sim.Option
	if r.config.Seed != 0 {
		opts = append(opts, sim.WithSeed(r.config.Seed))
	}
	return append(opts, extra...)
}

func (r *Runner) emit(demo string, stage Stage, backendName string, err error) {
	r.progress.Send(Event{Demo: demo, Stage: stage, Backend: backendName, Err: err})
}

func (r *Runner) shots(demo algorithms.Demo) int {
	if r.config.Shots > 0 {
		return r.config.Shots
	}
	return demo.Shots
}

// Run executes one demo synchronously.
func (r *Runner) Run(ctx context.Context, demo algorithms.Demo) (result Result, err error) {
	start := time.Now()
	var backendName string
	defer func() {
		r.pool.Metrics().RecordRun(demo.Name, backendName, time.Since(start), err)
		if err != nil {
			r.emit(demo.Name, StageFailed, backendName, err)
		}
	}()

	r.emit(demo.Name, StageBuild, "", nil)
	qc, err := demo.Build()
	if err != nil {
		return Result{}, errors.Wrapf(err, "build %s", demo.Name)
	}
	if err := qc.Validate(); err != nil {
		return Result{}, errors.Wrapf(err, "validate %s", demo.Name)
	}

	histogram, diagram := plot.Paths(r.config.OutputDir, demo.Name)
	if err := plot.Circuit(qc, diagram); err != nil {
		return Result{}, err
	}

	r.emit(demo.Name, StageSelect, "", nil)
	be, err := r.selectBackend(ctx, demo, qc)
	if err != nil {
		return Result{}, errors.Wrapf(err, "select backend for %s", demo.Name)
	}
	backendName = be.Name()

	shots := r.shots(demo)
	r.logger.Info("running demo", "demo", demo.Name, "backend", backendName, "shots", shots)
	r.emit(demo.Name, StageRun, backendName, nil)

	counts, err := be.Run(ctx, qc, shots)
	if err != nil {
		return Result{}, errors.Wrapf(err, "run %s on %s", demo.Name, backendName)
	}

	probs := counts.Probabilities()
	if err := probs.Validate(qc.NumClbits()); err != nil {
		return Result{}, errors.Wrapf(err, "%s on %s", demo.Name, backendName)
	}

	report, err := demo.Analyze(probs)
	if err != nil {
		return Result{}, errors.Wrapf(err, "analyze %s", demo.Name)
	}

	r.emit(demo.Name, StagePlot, backendName, nil)
	if err := plot.Histogram(probs, demo.Title, histogram); err != nil {
		return Result{}, err
	}

	run := &store.Run{
		Demo:     demo.Name,
		Backend:  backendName,
		Shots:    shots,
		Counts:   counts,
		Verdict:  report.Summary,
		Duration: time.Since(start),
	}
	if r.store != nil {
		if err := r.store.Record(ctx, run); err != nil {
			return Result{}, err
		}
	} else {
		run.ID = uuid.New()
	}

	r.emit(demo.Name, StageDone, backendName, nil)
	return Result{
		ID:            run.ID,
		Demo:          demo.Name,
		Title:         demo.Title,
		Backend:       backendName,
		Shots:         shots,
		Counts:        counts,
		Probabilities: probs,
		Report:        report,
		Histogram:     histogram,
		Diagram:       diagram,
		Duration:      run.Duration,
	}, nil
}

/*
selectBackend resolves a demo's target. Local demos, and every demo when the
config forces it, run on the in-process simulator. Remote demos take the
configured backend by name or the least busy one matching the target, and
fall back to the simulator only when no remote candidate exists.
*/
func (r *Runner) selectBackend(ctx context.Context, demo algorithms.Demo, qc *circuit.Circuit) (backend.Backend, error) {
	if r.config.ForceLocal || demo.Target == algorithms.Local {
		return r.localFor(demo), nil
	}

	if r.provider == nil {
		return r.fallback(demo, errors.Wrap(backend.ErrNoBackend, "no remote provider configured"))
	}

	backends, err := r.provider.Backends(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list backends")
	}

	if r.config.Backend != "" {
		for _, b := range backends {
			if b.Name() == r.config.Backend {
				return b, nil
			}
		}
		return nil, errors.Wrapf(backend.ErrNoBackend, "backend %q not found", r.config.Backend)
	}

	filter := demo.Target.Filter()
	filter.OperationalOnly = true
	filter.MinQubits = qc.NumQubits()

	best, err := backend.LeastBusy(ctx, backends, filter)
	if err != nil {
		if errors.Is(err, backend.ErrNoBackend) {
			return r.fallback(demo, err)
		}
		return nil, err
	}
	r.logger.Info("selected backend", "demo", demo.Name, "backend", best.Info.Name, "pending", best.Info.PendingJobs)
	return best.Backend, nil
}

func (r *Runner) fallback(demo algorithms.Demo, cause error) (backend.Backend, error) {
	if !r.config.Fallback {
		return nil, cause
	}
	r.logger.Warn("falling back to local simulator", "demo", demo.Name, "reason", cause)
	return r.localFor(demo), nil
}

// localFor adds the demo's readout error to the simulator when it has one.
func (r *Runner) localFor(demo algorithms.Demo) backend.Backend {
	if demo.ReadoutError <= 0 {
		return r.local
	}
	return sim.NewLocal(r.simOptions(
		sim.WithReadoutError(demo.ReadoutError),
		sim.WithName(sim.DefaultName+"_noisy"),
	)...)
}

/*
RunAll schedules every demo on the pool and waits for all of them. Remote
demos share a circuit breaker per target and retry transient runtime errors.
Results come back in the order of demos; failed demos are left out and their
errors joined.
*/
func (r *Runner) RunAll(ctx context.Context, demos []algorithms.Demo) ([]Result, error) {
	pending := make([]chan Value, len(demos))
	for i, demo := range demos {
		opts := []JobOption{
			WithTimeout(r.config.JobTimeout),
			WithRetry(r.config.Retries, &ExponentialBackoff{Initial: time.Second, Max: 30 * time.Second}),
			WithRetryFilter(Retryable),
		}
		if demo.Target != algorithms.Local && !r.config.ForceLocal {
			opts = append(opts, WithCircuitBreaker(demo.Target.String(), 3, time.Minute))
		}

		r.emit(demo.Name, StageQueued, "", nil)
		id := fmt.Sprintf("%s-%s", demo.Name, uuid.NewString())
		pending[i] = r.pool.Schedule(id, func(ctx context.Context) (any, error) {
			return r.Run(ctx, demo)
		}, opts...)
	}

	results := make([]Result, 0, len(demos))
	var errs []error
	for i, ch := range pending {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case v := <-ch:
			if v.Error != nil {
				errs = append(errs, errors.Wrapf(v.Error, "%s", demos[i].Name))
				continue
			}
			results = append(results, v.Value.(Result))
		}
	}
	return results, stderrors.Join(errs...)
}

package qdemo

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/theapemachine/errnie"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

/*
Q is the worker pool that runs demos. Jobs go onto a buffered queue, a
manager hands each one to an idle worker (starting another worker up to the
maximum when all are busy, otherwise waiting for one to free up), and results
land in a Space where callers await them by job ID.
*/
type Q struct {
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	workers    chan chan Job
	jobs       chan Job
	space      *Space
	metrics    *Metrics
	config     *Config
	logger     *log.Logger
	maxWorkers int

	workerMu   sync.Mutex
	workerList []*Worker

	regulatorMu sync.Mutex
	breakers    map[string]*CircuitBreaker
	regulators  []Regulator

	closeOnce sync.Once
}

// NewQ creates a new pool with minWorkers running and room for maxWorkers.
func NewQ(ctx context.Context, minWorkers, maxWorkers int, config *Config) *Q {
	if config == nil {
		config = NewConfig()
	}
	maxWorkers = max(maxWorkers, minWorkers, 1)

	ctx, cancel := context.WithCancel(ctx)
	logger := log.Default().WithPrefix("pool")
	q := &Q{
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(chan Job, maxWorkers*10),
		workers:    make(chan chan Job, maxWorkers),
		space:      newSpace(ctx, logger, time.Minute),
		metrics:    NewMetrics(),
		config:     config,
		logger:     logger,
		maxWorkers: maxWorkers,
		breakers:   make(map[string]*CircuitBreaker),
	}

	for i := 0; i < minWorkers; i++ {
		q.startWorker()
	}

	q.wg.Add(2)
	go func() {
		defer q.wg.Done()
		q.manage()
	}()
	go func() {
		defer q.wg.Done()
		q.collectMetrics()
	}()

	return q
}

func (q *Q) Metrics() *Metrics {
	return q.metrics
}

// Regulate registers a regulator to be fed metrics and renormalized.
func (q *Q) Regulate(r Regulator) {
	r.Observe(q.metrics)

	q.regulatorMu.Lock()
	defer q.regulatorMu.Unlock()
	q.regulators = append(q.regulators, r)
}

func (q *Q) manage() {
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.dispatch(job)
		}
	}
}

func (q *Q) dispatch(job Job) {
	select {
	case worker := <-q.workers:
		q.send(worker, job)
		return
	default:
	}

	q.grow()

	// At maxWorkers the job waits for the next free worker until the pool closes.
	warn := time.NewTimer(q.schedulingTimeout())
	defer warn.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case worker := <-q.workers:
			q.send(worker, job)
			return
		case <-warn.C:
			q.logger.Warn("all workers busy, job still queued", "job", job.ID, "waited", time.Since(job.StartTime).Round(time.Millisecond))
		}
	}
}

func (q *Q) send(worker chan Job, job Job) {
	select {
	case worker <- job:
	case <-q.ctx.Done():
	}
}

// grow starts another worker when every worker is busy and there is room.
func (q *Q) grow() {
	q.workerMu.Lock()
	n := len(q.workerList)
	q.workerMu.Unlock()

	if n < q.maxWorkers {
		q.startWorker()
	}
}

func (q *Q) collectMetrics() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.metrics.setQueueSize(len(q.jobs))

			q.regulatorMu.Lock()
			for _, r := range q.regulators {
				r.Renormalize()
			}
			q.regulatorMu.Unlock()
		}
	}
}

/*
Schedule queues fn under id and returns the channel its result arrives on.
Jobs behind an open circuit breaker fail immediately with ErrCircuitOpen.
*/
func (q *Q) Schedule(id string, fn func(ctx context.Context) (any, error), opts ...JobOption) chan Value {
	job := Job{
		ID:          id,
		Fn:          fn,
		RetryPolicy: defaultRetryPolicy(),
		StartTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(&job)
	}

	if breaker := q.getCircuitBreaker(job); breaker != nil && !breaker.Allow() {
		return failed(errors.Wrapf(ErrCircuitOpen, "%s", job.CircuitID))
	}

	if q.ctx.Err() != nil {
		return failed(ErrPoolClosed)
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.schedulingTimeout())
	defer cancel()

	select {
	case q.jobs <- job:
		return q.space.Await(id)
	case <-ctx.Done():
		q.metrics.schedulingFailure()
		return failed(errors.Wrap(ctx.Err(), "job scheduling timeout"))
	}
}

// Await returns the result channel for a job scheduled earlier.
func (q *Q) Await(id string) chan Value {
	return q.space.Await(id)
}

func (q *Q) CreateBroadcastGroup(id string, ttl time.Duration) *BroadcastGroup {
	return q.space.CreateBroadcastGroup(id, ttl)
}

func (q *Q) Subscribe(groupID string, buffer int) chan Event {
	return q.space.Subscribe(groupID, buffer)
}

func failed(err error) chan Value {
	ch := make(chan Value, 1)
	ch <- Value{Error: err, CreatedAt: time.Now()}
	close(ch)
	return ch
}

func (q *Q) startWorker() {
	worker := &Worker{
		pool: q,
		jobs: make(chan Job),
	}

	q.workerMu.Lock()
	q.workerList = append(q.workerList, worker)
	total := len(q.workerList)
	q.workerMu.Unlock()

	q.metrics.addWorker()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		worker.run(q.ctx)
	}()
	q.logger.Debug("started worker", "total", total)
}

// getCircuitBreaker returns the breaker for job, creating it on first use.
func (q *Q) getCircuitBreaker(job Job) *CircuitBreaker {
	if job.CircuitID == "" {
		return nil
	}

	q.regulatorMu.Lock()
	breaker, exists := q.breakers[job.CircuitID]
	q.regulatorMu.Unlock()

	if exists || job.CircuitConfig == nil {
		return breaker
	}

	breaker = NewCircuitBreaker(
		job.CircuitID,
		job.CircuitConfig.MaxFailures,
		job.CircuitConfig.ResetTimeout,
		job.CircuitConfig.HalfOpenMax,
	)

	q.regulatorMu.Lock()
	if existing, ok := q.breakers[job.CircuitID]; ok {
		q.regulatorMu.Unlock()
		return existing
	}
	q.breakers[job.CircuitID] = breaker
	q.regulatorMu.Unlock()

	q.Regulate(breaker)
	return breaker
}

func (q *Q) breaker(id string) *CircuitBreaker {
	q.regulatorMu.Lock()
	defer q.regulatorMu.Unlock()
	return q.breakers[id]
}

func (q *Q) schedulingTimeout() time.Duration {
	if q.config.SchedulingTimeout > 0 {
		return q.config.SchedulingTimeout
	}
	return 5 * time.Second
}

// Close stops the workers and fails anything still waiting with ErrPoolClosed.
func (q *Q) Close() {
	if q == nil {
		return
	}

	q.closeOnce.Do(func() {
		errnie.Info("closing pool")
		q.cancel()
		q.wg.Wait()
		q.space.Close()
	})
}

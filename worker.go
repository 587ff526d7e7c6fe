package qdemo

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Worker processes jobs
type Worker struct {
	pool *Q
	jobs chan Job
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case w.pool.workers <- w.jobs:
		}

		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			result, err := w.processJob(ctx, job)
			w.pool.space.Store(job.ID, result, err, job.TTL)
		}
	}
}

func (w *Worker) processJob(ctx context.Context, job Job) (any, error) {
	if err := w.checkCircuitBreaker(job.CircuitID); err != nil {
		w.pool.metrics.recordJobExecution(job.StartTime, false)
		return nil, err
	}

	if err := w.checkDependencies(ctx, job); err != nil {
		w.pool.metrics.recordJobExecution(job.StartTime, false)
		return nil, err
	}

	result, err := w.executeWithRetries(ctx, job)
	w.pool.metrics.recordJobExecution(job.StartTime, err == nil)
	if err != nil {
		return nil, err
	}

	if breaker := w.pool.breaker(job.CircuitID); breaker != nil {
		breaker.RecordSuccess()
	}
	return result, nil
}

func (w *Worker) executeWithRetries(ctx context.Context, job Job) (any, error) {
	policy := job.RetryPolicy
	if policy == nil {
		policy = &RetryPolicy{MaxAttempts: 1}
	}

	attempts := 0
	for job.Attempt = 0; job.Attempt < max(policy.MaxAttempts, 1); job.Attempt++ {
		if job.Attempt > 0 {
			delay := time.Duration(0)
			if policy.Strategy != nil {
				delay = policy.Strategy.NextDelay(job.Attempt)
			}
			w.pool.logger.Info("retrying job", "job", job.ID, "attempt", job.Attempt+1, "delay", delay)
			w.pool.metrics.retry()

			select {
			case <-ctx.Done():
				return nil, errors.Wrapf(ctx.Err(), "job %s", job.ID)
			case <-time.After(delay):
			}
		}

		result, err := w.attempt(ctx, job)
		attempts++
		if err == nil {
			return result, nil
		}

		job.LastError = err
		w.pool.logger.Warn("job attempt failed", "job", job.ID, "attempt", job.Attempt+1, "err", err)

		// Only failures the policy would retry say anything about the target.
		transient := policy.Filter == nil || policy.Filter(err)
		if breaker := w.pool.breaker(job.CircuitID); breaker != nil && transient {
			breaker.RecordFailure()
		}

		if ctx.Err() != nil || !transient {
			break
		}
	}
	return nil, errors.Wrapf(job.LastError, "job %s failed after %d attempt(s)", job.ID, attempts)
}

// attempt runs fn once, bounded by the job timeout when one is set.
func (w *Worker) attempt(ctx context.Context, job Job) (any, error) {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	return job.Fn(ctx)
}

func (w *Worker) checkCircuitBreaker(circuitID string) error {
	if breaker := w.pool.breaker(circuitID); breaker != nil && !breaker.Allow() {
		w.pool.logger.Warn("job not allowed by circuit breaker", "circuit", circuitID)
		return errors.Wrapf(ErrCircuitOpen, "%s", circuitID)
	}
	return nil
}

func (w *Worker) checkDependencies(ctx context.Context, job Job) error {
	for _, depID := range job.Dependencies {
		if err := w.checkSingleDependency(ctx, depID, job.DependencyRetryPolicy); err != nil {
			return err
		}
	}
	return nil
}

/*
checkSingleDependency waits for depID's result. A failed dependency is
re-read after a backoff up to the policy's attempts, which lets a dependency
that is itself being retried settle.
*/
func (w *Worker) checkSingleDependency(ctx context.Context, depID string, policy *RetryPolicy) error {
	maxAttempts := 1
	var strategy RetryStrategy = &ExponentialBackoff{Initial: time.Second}
	if policy != nil {
		maxAttempts = max(policy.MaxAttempts, 1)
		if policy.Strategy != nil {
			strategy = policy.Strategy
		}
	}

	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(strategy.NextDelay(attempt)):
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case result := <-w.pool.space.Await(depID):
			if result.Error == nil {
				return nil
			}
			last = result.Error
		}
	}
	return errors.Wrapf(last, "dependency %s failed", depID)
}

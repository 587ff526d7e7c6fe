package qdemo

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/runtime"
)

// RetryPolicy defines retry behavior
type RetryPolicy struct {
	MaxAttempts int
	Strategy    RetryStrategy
	Filter      func(error) bool
}

type RetryStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay on every attempt, capped at Max when set.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := eb.Initial * time.Duration(math.Pow(2, float64(attempt-1)))
	if eb.Max > 0 && delay > eb.Max {
		return eb.Max
	}
	return delay
}

// WithCircuitBreaker puts the job behind the breaker named id.
func WithCircuitBreaker(id string, maxFailures int, resetTimeout time.Duration) JobOption {
	return func(j *Job) {
		j.CircuitID = id
		j.CircuitConfig = &CircuitBreakerConfig{
			MaxFailures:  maxFailures,
			ResetTimeout: resetTimeout,
			HalfOpenMax:  1,
		}
	}
}

func WithRetry(attempts int, strategy RetryStrategy) JobOption {
	return func(j *Job) {
		var filter func(error) bool
		if j.RetryPolicy != nil {
			filter = j.RetryPolicy.Filter
		}
		j.RetryPolicy = &RetryPolicy{
			MaxAttempts: attempts,
			Strategy:    strategy,
			Filter:      filter,
		}
	}
}

// WithRetryFilter stops retrying as soon as filter rejects an error.
func WithRetryFilter(filter func(error) bool) JobOption {
	return func(j *Job) {
		if j.RetryPolicy == nil {
			j.RetryPolicy = defaultRetryPolicy()
		}
		j.RetryPolicy.Filter = filter
	}
}

func defaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 3,
		Strategy:    &ExponentialBackoff{Initial: time.Second},
	}
}

/*
Retryable accepts only runtime errors that the service marks as transient:
rate limiting and server-side failures. Everything else, including a job the
device rejected, is final.
*/
func Retryable(err error) bool {
	var apiErr *runtime.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

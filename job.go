package qdemo

import (
	"context"
	"time"
)

// Job represents work to be done
type Job struct {
	ID                    string
	Fn                    func(ctx context.Context) (any, error)
	RetryPolicy           *RetryPolicy
	CircuitID             string
	CircuitConfig         *CircuitBreakerConfig
	Dependencies          []string
	DependencyRetryPolicy *RetryPolicy
	TTL                   time.Duration
	Timeout               time.Duration
	Attempt               int
	LastError             error
	StartTime             time.Time
}

// JobOption is a function type for configuring jobs
type JobOption func(*Job)

type CircuitBreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
	HalfOpenMax  int
}

// WithTTL keeps the job's result in the space for ttl after it completes.
func WithTTL(ttl time.Duration) JobOption {
	return func(j *Job) {
		j.TTL = ttl
	}
}

// WithTimeout bounds a single attempt of the job.
func WithTimeout(timeout time.Duration) JobOption {
	return func(j *Job) {
		j.Timeout = timeout
	}
}

/*
WithDependencies holds the job until every listed job has stored a
successful result. A failed dependency fails the job without running it.
*/
func WithDependencies(ids []string, policy *RetryPolicy) JobOption {
	return func(j *Job) {
		j.Dependencies = ids
		j.DependencyRetryPolicy = policy
	}
}

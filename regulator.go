package qdemo

/*
Regulator defines an interface for types that regulate the flow of work
through the pool and out to remote backends. The pool feeds every regulator
its metrics on each collection tick and gives it a chance to recover.

Implementations in this package:
  - CircuitBreaker: stops jobs for a target after repeated failures
  - RateLimiter: paces requests to the runtime API
*/
type Regulator interface {
	// Observe hands the regulator the pool's metrics so it can report into them.
	Observe(metrics *Metrics)

	// Limit reports true while the regulated action should be held back.
	Limit() bool

	// Renormalize moves the regulator back towards normal operation when
	// enough time has passed.
	Renormalize()
}

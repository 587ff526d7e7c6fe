package qdemo

import (
	"sync"
	"time"
)

/*
RateLimiter is a token bucket. It paces calls to the IBM Quantum runtime so a
batch of demos polling several jobs at once stays under the service's request
limits, while still allowing a short burst when the bucket is full.
*/
type RateLimiter struct {
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	mu         sync.Mutex
	metrics    *Metrics
}

/*
NewRateLimiter creates a bucket of maxTokens that gains one token every
refillRate.

Example:

	limiter := NewRateLimiter(5, 200*time.Millisecond) // 5 req/s, burst of 5
*/
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Observe attaches the metrics that count throttled requests.
func (rl *RateLimiter) Observe(metrics *Metrics) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.metrics = metrics
}

// Limit takes a token if one is available and reports true when none is.
func (rl *RateLimiter) Limit() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens > 0 {
		rl.tokens--
		return false
	}
	if rl.metrics != nil {
		rl.metrics.rateLimited()
	}
	return true
}

func (rl *RateLimiter) Renormalize() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
}

// refill expects rl.mu to be held.
func (rl *RateLimiter) refill() {
	if rl.refillRate <= 0 {
		rl.tokens = rl.maxTokens
		return
	}

	periods := int(time.Since(rl.lastRefill) / rl.refillRate)
	if periods > 0 {
		rl.tokens = min(rl.maxTokens, rl.tokens+periods)
		// only whole periods move the clock, so partial progress is kept
		rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.refillRate)
	}
}

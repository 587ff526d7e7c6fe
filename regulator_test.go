package qdemo

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCircuitBreaker(t *testing.T) {
	Convey("Given a circuit breaker", t, func() {
		breaker := NewCircuitBreaker("real-device", 2, 50*time.Millisecond, 1)
		metrics := NewMetrics()

		Convey("It should implement Regulator", func() {
			var _ Regulator = breaker
			breaker.Observe(metrics)
			So(breaker.Limit(), ShouldBeFalse)
			So(breaker.State(), ShouldEqual, CircuitClosed)
		})

		Convey("It should open after max failures and report it", func() {
			breaker.Observe(metrics)
			breaker.RecordFailure()
			So(breaker.Allow(), ShouldBeTrue)
			breaker.RecordFailure()

			So(breaker.Allow(), ShouldBeFalse)
			So(breaker.State(), ShouldEqual, CircuitOpen)
			So(testutil.ToFloat64(metrics.breakerState.WithLabelValues("real-device")), ShouldEqual, float64(CircuitOpen))
		})

		Convey("It should forget failures after a success", func() {
			breaker.RecordFailure()
			breaker.RecordSuccess()
			breaker.RecordFailure()
			So(breaker.State(), ShouldEqual, CircuitClosed)
		})

		Convey("It should probe after the reset timeout", func() {
			breaker.RecordFailure()
			breaker.RecordFailure()
			time.Sleep(70 * time.Millisecond)

			Convey("and close when the probe succeeds", func() {
				breaker.Renormalize()
				So(breaker.State(), ShouldEqual, CircuitHalfOpen)
				So(breaker.Allow(), ShouldBeTrue)
				breaker.RecordSuccess()
				So(breaker.State(), ShouldEqual, CircuitClosed)
			})

			Convey("and reopen when the probe fails", func() {
				So(breaker.Allow(), ShouldBeTrue)
				breaker.RecordFailure()
				So(breaker.State(), ShouldEqual, CircuitOpen)
				So(breaker.Allow(), ShouldBeFalse)
			})
		})
	})

	Convey("Given the names of breaker states", t, func() {
		So(CircuitClosed.String(), ShouldEqual, "closed")
		So(CircuitOpen.String(), ShouldEqual, "open")
		So(CircuitHalfOpen.String(), ShouldEqual, "half-open")
	})
}

func TestRateLimiter(t *testing.T) {
	Convey("Given a rate limiter with 2 tokens", t, func() {
		limiter := NewRateLimiter(2, time.Hour)
		metrics := NewMetrics()
		limiter.Observe(metrics)

		Convey("It should allow a burst and then limit", func() {
			So(limiter.Limit(), ShouldBeFalse)
			So(limiter.Limit(), ShouldBeFalse)
			So(limiter.Limit(), ShouldBeTrue)
			So(limiter.Limit(), ShouldBeTrue)
		})

		Convey("It should count throttled requests", func() {
			for i := 0; i < 5; i++ {
				limiter.Limit()
			}
			So(metrics.Snapshot().RateLimitHits, ShouldEqual, 3)
			So(testutil.ToFloat64(metrics.rateLimitHits), ShouldEqual, 3)
		})
	})

	Convey("Given a rate limiter with a short refill period", t, func() {
		limiter := NewRateLimiter(1, 20*time.Millisecond)

		Convey("It should regain a token once a period has passed", func() {
			So(limiter.Limit(), ShouldBeFalse)
			So(limiter.Limit(), ShouldBeTrue)

			time.Sleep(30 * time.Millisecond)
			limiter.Renormalize()
			So(limiter.Limit(), ShouldBeFalse)
		})

		Convey("It should never exceed its capacity", func() {
			time.Sleep(100 * time.Millisecond)
			So(limiter.Limit(), ShouldBeFalse)
			So(limiter.Limit(), ShouldBeTrue)
		})
	})
}

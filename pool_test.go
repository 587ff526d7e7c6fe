package qdemo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/qdemo/runtime"
)

const testTimeout = 5 * time.Second

func await(ch chan Value) Value {
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		return Value{Error: errors.New("test timed out waiting for value")}
	}
}

func fastRetry(attempts int) JobOption {
	return WithRetry(attempts, &ExponentialBackoff{Initial: time.Millisecond})
}

func TestPool(t *testing.T) {
	Convey("Given a new pool", t, func(c C) {
		q := NewQ(context.Background(), 1, 3, NewConfig())

		Reset(func() {
			q.Close()
		})

		Convey("When scheduling a simple job", func(c C) {
			v := await(q.Schedule("simple", func(ctx context.Context) (any, error) {
				return "success", nil
			}))

			c.So(v.Error, ShouldBeNil)
			c.So(v.Value, ShouldEqual, "success")
			c.So(q.Metrics().Snapshot().Succeeded, ShouldEqual, 1)
		})

		Convey("When a job fails transiently", func(c C) {
			var attempts atomic.Int32
			v := await(q.Schedule("flaky", func(ctx context.Context) (any, error) {
				if attempts.Add(1) < 3 {
					return nil, errors.New("temporary error")
				}
				return "success after retry", nil
			}, fastRetry(3)))

			c.So(v.Error, ShouldBeNil)
			c.So(v.Value, ShouldEqual, "success after retry")
			c.So(attempts.Load(), ShouldEqual, 3)
			c.So(q.Metrics().Snapshot().Retries, ShouldEqual, 2)
		})

		Convey("When the retry filter rejects the error", func(c C) {
			var attempts atomic.Int32
			v := await(q.Schedule("final", func(ctx context.Context) (any, error) {
				attempts.Add(1)
				return nil, &runtime.APIError{Status: 401, Body: "bad token"}
			}, fastRetry(5), WithRetryFilter(Retryable)))

			c.So(v.Error, ShouldNotBeNil)
			c.So(v.Error.Error(), ShouldContainSubstring, "1 attempt(s)")
			c.So(attempts.Load(), ShouldEqual, 1)
		})

		Convey("When a target keeps failing", func(c C) {
			fail := func(ctx context.Context) (any, error) {
				return nil, errors.New("device offline")
			}
			breaker := WithCircuitBreaker("real-device", 2, time.Hour)

			v := await(q.Schedule("first", fail, fastRetry(2), breaker))
			c.So(v.Error, ShouldNotBeNil)
			c.So(q.breaker("real-device").State(), ShouldEqual, CircuitOpen)

			v = await(q.Schedule("second", fail, fastRetry(2), breaker))
			c.So(errors.Is(v.Error, ErrCircuitOpen), ShouldBeTrue)
		})

		Convey("When a job keeps failing on bad input", func(c C) {
			invalid := func(ctx context.Context) (any, error) {
				return nil, errors.New("invalid secret")
			}
			breaker := WithCircuitBreaker("real-device", 2, time.Hour)

			for _, id := range []string{"bad-1", "bad-2", "bad-3"} {
				v := await(q.Schedule(id, invalid, fastRetry(3), WithRetryFilter(Retryable), breaker))
				c.So(v.Error, ShouldNotBeNil)
				c.So(errors.Is(v.Error, ErrCircuitOpen), ShouldBeFalse)
			}
			c.So(q.breaker("real-device").State(), ShouldEqual, CircuitClosed)

			v := await(q.Schedule("good", func(ctx context.Context) (any, error) {
				return "ran", nil
			}, breaker))
			c.So(v.Value, ShouldEqual, "ran")
		})

		Convey("When a job depends on another", func(c C) {
			var order []string
			dep := q.Schedule("dep", func(ctx context.Context) (any, error) {
				time.Sleep(20 * time.Millisecond)
				order = append(order, "dep")
				return 1, nil
			})
			v := await(q.Schedule("child", func(ctx context.Context) (any, error) {
				order = append(order, "child")
				return 2, nil
			}, WithDependencies([]string{"dep"}, nil)))

			c.So(await(dep).Error, ShouldBeNil)
			c.So(v.Error, ShouldBeNil)
			c.So(order, ShouldResemble, []string{"dep", "child"})
		})

		Convey("When a dependency fails", func(c C) {
			await(q.Schedule("broken", func(ctx context.Context) (any, error) {
				return nil, errors.New("boom")
			}, fastRetry(1)))

			v := await(q.Schedule("orphan", func(ctx context.Context) (any, error) {
				return "never", nil
			}, WithDependencies([]string{"broken"}, nil)))

			c.So(v.Error, ShouldNotBeNil)
			c.So(v.Error.Error(), ShouldContainSubstring, "dependency broken failed")
		})

		Convey("When an attempt outlives its timeout", func(c C) {
			v := await(q.Schedule("slow", func(ctx context.Context) (any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}, fastRetry(1), WithTimeout(10*time.Millisecond)))

			c.So(errors.Is(v.Error, context.DeadlineExceeded), ShouldBeTrue)
		})

		Convey("When the pool is closed", func(c C) {
			q.Close()
			v := await(q.Schedule("late", func(ctx context.Context) (any, error) {
				return nil, nil
			}))

			c.So(errors.Is(v.Error, ErrPoolClosed), ShouldBeTrue)
		})
	})
}

func TestPoolGrowth(t *testing.T) {
	Convey("Given a pool with one worker and room for three", t, func(c C) {
		q := NewQ(context.Background(), 1, 3, NewConfig())
		defer q.Close()

		release := make(chan struct{})
		block := func(ctx context.Context) (any, error) {
			<-release
			return "done", nil
		}

		a := q.Schedule("a", block)
		b := q.Schedule("b", block)
		cc := q.Schedule("c", block)

		Convey("It should start workers for concurrent jobs", func(c C) {
			deadline := time.Now().Add(testTimeout)
			for q.Metrics().Snapshot().Workers < 3 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			c.So(q.Metrics().Snapshot().Workers, ShouldEqual, 3)

			close(release)
			for _, ch := range []chan Value{a, b, cc} {
				c.So(await(ch).Value, ShouldEqual, "done")
			}
		})
	})
}

func TestExponentialBackoff(t *testing.T) {
	Convey("Given an exponential backoff with a cap", t, func() {
		eb := &ExponentialBackoff{Initial: time.Second, Max: 5 * time.Second}

		Convey("It should double and then saturate", func() {
			So(eb.NextDelay(1), ShouldEqual, time.Second)
			So(eb.NextDelay(2), ShouldEqual, 2*time.Second)
			So(eb.NextDelay(3), ShouldEqual, 4*time.Second)
			So(eb.NextDelay(4), ShouldEqual, 5*time.Second)
		})
	})

	Convey("Given runtime errors", t, func() {
		Convey("Only rate limits and server errors are retryable", func() {
			So(Retryable(&runtime.APIError{Status: 429}), ShouldBeTrue)
			So(Retryable(&runtime.APIError{Status: 503}), ShouldBeTrue)
			So(Retryable(&runtime.APIError{Status: 400}), ShouldBeFalse)
			So(Retryable(runtime.ErrJobFailed), ShouldBeFalse)
			So(Retryable(errors.New("other")), ShouldBeFalse)
		})
	})
}

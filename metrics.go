package qdemo

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "qdemo"
	poolSubsystem    = "pool"
	runSubsystem     = "demo"
)

/*
Metrics holds the pool and demo run instruments on a private Prometheus
registry, so several pools in one process (tests, mostly) never collide.
The atomic mirrors back Snapshot, which regulators and the CLI read without
going through a Gather.
*/
type Metrics struct {
	registry *prometheus.Registry

	jobs               *prometheus.CounterVec
	jobDuration        prometheus.Histogram
	retries            prometheus.Counter
	schedulingFailures prometheus.Counter
	rateLimitHits      prometheus.Counter
	queueSize          prometheus.Gauge
	workers            prometheus.Gauge
	breakerState       *prometheus.GaugeVec
	runs               *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec

	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	throttled atomic.Int64
	workerN   atomic.Int64
	queued    atomic.Int64
}

// Snapshot is a point-in-time copy of the pool counters.
type Snapshot struct {
	Succeeded     int64
	Failed        int64
	Retries       int64
	RateLimitHits int64
	Workers       int64
	QueueSize     int64
}

// SuccessRate is 1 until the first job finishes.
func (s Snapshot) SuccessRate() float64 {
	total := s.Succeeded + s.Failed
	if total == 0 {
		return 1
	}
	return float64(s.Succeeded) / float64(total)
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: poolSubsystem,
			Name:      "jobs_total",
			Help:      "Jobs finished by the pool, by outcome",
		}, []string{"outcome"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: poolSubsystem,
			Name:      "job_duration_seconds",
			Help:      "Time from scheduling to completion of a job",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: poolSubsystem,
			Name:      "retries_total",
			Help:      "Job attempts beyond the first",
		}),
		schedulingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: poolSubsystem,
			Name:      "scheduling_failures_total",
			Help:      "Jobs that could not be handed to a worker in time",
		}),
		rateLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: poolSubsystem,
			Name:      "rate_limit_hits_total",
			Help:      "Runtime requests held back by the rate limiter",
		}),
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: poolSubsystem,
			Name:      "queue_size",
			Help:      "Jobs waiting for a worker",
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: poolSubsystem,
			Name:      "workers",
			Help:      "Workers started by the pool",
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: poolSubsystem,
			Name:      "circuit_breaker_state",
			Help:      "0 closed, 1 open, 2 half-open",
		}, []string{"circuit"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: runSubsystem,
			Name:      "runs_total",
			Help:      "Demo runs by demo, backend and outcome",
		}, []string{"demo", "backend", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: runSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a demo run including queueing on remote devices",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 10),
		}, []string{"demo"}),
	}

	m.registry.MustRegister(
		m.jobs, m.jobDuration, m.retries, m.schedulingFailures, m.rateLimitHits,
		m.queueSize, m.workers, m.breakerState, m.runs, m.runDuration,
	)
	return m
}

// Registry exposes the collectors for scraping or custom gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Succeeded:     m.succeeded.Load(),
		Failed:        m.failed.Load(),
		Retries:       m.retried.Load(),
		RateLimitHits: m.throttled.Load(),
		Workers:       m.workerN.Load(),
		QueueSize:     m.queued.Load(),
	}
}

/*
WriteTextfile writes the registry in the text exposition format, for the
node_exporter textfile collector. The file is replaced atomically.
*/
func (m *Metrics) WriteTextfile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.registry), "write metrics to %s", path)
}

// RecordRun counts one finished demo run.
func (m *Metrics) RecordRun(demo, backendName string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	if backendName == "" {
		backendName = "none"
	}
	m.runs.WithLabelValues(demo, backendName, outcome).Inc()
	m.runDuration.WithLabelValues(demo).Observe(d.Seconds())
}

func (m *Metrics) recordJobExecution(startTime time.Time, success bool) {
	m.jobDuration.Observe(time.Since(startTime).Seconds())
	if success {
		m.succeeded.Add(1)
		m.jobs.WithLabelValues("success").Inc()
		return
	}
	m.failed.Add(1)
	m.jobs.WithLabelValues("failure").Inc()
}

func (m *Metrics) retry() {
	m.retried.Add(1)
	m.retries.Inc()
}

func (m *Metrics) schedulingFailure() {
	m.schedulingFailures.Inc()
}

func (m *Metrics) rateLimited() {
	m.throttled.Add(1)
	m.rateLimitHits.Inc()
}

func (m *Metrics) setQueueSize(n int) {
	m.queued.Store(int64(n))
	m.queueSize.Set(float64(n))
}

func (m *Metrics) addWorker() {
	m.workers.Set(float64(m.workerN.Add(1)))
}

func (m *Metrics) setBreakerState(circuit string, state CircuitState) {
	m.breakerState.WithLabelValues(circuit).Set(float64(state))
}

// Package metric provides Prometheus metrics for trainmesh.
package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trainmesh"

// Join outcomes.
const (
	JoinOK        = "ok"
	JoinDuplicate = "duplicate"
	JoinFailed    = "failed"
)

// Registry holds all application metrics. A nil *Registry is valid and
// records nothing.
type Registry struct {
	registry *prometheus.Registry

	JoinTotal     *prometheus.CounterVec
	JoinDuration  prometheus.Histogram
	RequestsTotal *prometheus.CounterVec
	HandoffSteps  *prometheus.CounterVec
	BatchesTotal  *prometheus.CounterVec
	LoaderSpawns  *prometheus.CounterVec
}

// NewRegistry creates a registry with the trainmesh collectors plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		JoinTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_total",
			Help:      "Channel joins handled by the coordinator, by result.",
		}, []string{"result"}),
		JoinDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "join_duration_seconds",
			Help:      "Time from connect request to registered channel.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Rendezvous requests, by kind.",
		}, []string{"kind"}),
		HandoffSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoff_steps_total",
			Help:      "Completed loader handoff steps, by step.",
		}, []string{"step"}),
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches copied into the shared buffer, by mode.",
		}, []string{"mode"}),
		LoaderSpawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_spawns_total",
			Help:      "Loader processes started, by NUMA node.",
		}, []string{"numa"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.JoinTotal,
		r.JoinDuration,
		r.RequestsTotal,
		r.HandoffSteps,
		r.BatchesTotal,
		r.LoaderSpawns,
	)
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() { global = NewRegistry() })
	return global
}

// Handler returns an HTTP handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordJoin counts one join attempt and, when it succeeded, its duration.
func (r *Registry) RecordJoin(result string, seconds float64) {
	if r == nil {
		return
	}
	r.JoinTotal.WithLabelValues(result).Inc()
	if result == JoinOK {
		r.JoinDuration.Observe(seconds)
	}
}

// RecordRequest counts one rendezvous request.
func (r *Registry) RecordRequest(kind string) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(kind).Inc()
}

// RecordHandoffStep counts one completed handoff step.
func (r *Registry) RecordHandoffStep(step string) {
	if r == nil {
		return
	}
	r.HandoffSteps.WithLabelValues(step).Inc()
}

// RecordBatch counts one copied batch.
func (r *Registry) RecordBatch(mode string) {
	if r == nil {
		return
	}
	r.BatchesTotal.WithLabelValues(mode).Inc()
}

// RecordSpawn counts one loader spawn on a NUMA node.
func (r *Registry) RecordSpawn(numa string) {
	if r == nil {
		return
	}
	r.LoaderSpawns.WithLabelValues(numa).Inc()
}

// WatchWorkers exports the size of a worker registry as
// trainmesh_registered_workers.
func (r *Registry) WatchWorkers(src WorkerSource) error {
	if r == nil {
		return nil
	}
	return r.registry.Register(NewCollector(src))
}

// Package metric provides Prometheus metrics for trainmesh.
//
//   - prometheus.go: registry, recorders and the /metrics handler
//   - collector.go: scrape-time collector for the channel registry size
//
// Recorders are safe on a nil *Registry so components can run without
// metrics.
package metric

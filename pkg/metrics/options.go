package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultNamespace = "fplcoach"
	subsystem        = "engine"
)

// DefaultLatencyBuckets spans one millisecond to ten seconds. Every latency
// histogram records milliseconds.
var DefaultLatencyBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // read-only defaults

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace prefixes every metric name. Empty keeps "fplcoach".
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithLatencyBuckets sets the millisecond buckets shared by the request,
// lookup and worker latency histograms. Empty keeps DefaultLatencyBuckets.
func WithLatencyBuckets(ms []float64) Option {
	return func(m *Manager) {
		if len(ms) > 0 {
			m.latencyBuckets = append([]float64(nil), ms...)
		}
	}
}

// WithRegistry registers the collectors on r instead of the default registerer.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

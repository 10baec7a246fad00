// Package metrics exposes prometheus metrics for the config store
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
	ResultFound    = "found"
	ResultNotFound = "not_found"
)

// Metrics holds all Prometheus metrics. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	WritesTotal   *prometheus.CounterVec
	ReadsTotal    *prometheus.CounterVec
	WriteDuration prometheus.Histogram
	LockHandles   prometheus.Gauge
}

// New creates metrics and registers them with registerer.
// A nil registerer creates unregistered metrics.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		WritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confstore_writes_total",
				Help: "Total number of config writes by result",
			},
			[]string{"result"},
		),

		ReadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confstore_reads_total",
				Help: "Total number of config reads by result",
			},
			[]string{"result"},
		),

		WriteDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "confstore_write_duration_seconds",
				Help:    "Duration of config writes including time spent waiting for the resource lock",
				Buckets: prometheus.DefBuckets,
			},
		),

		LockHandles: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "confstore_lock_handles",
				Help: "Number of live per-resource lock handles",
			},
		),
	}
}

// ObserveWrite records the result and duration of a write
func (m *Metrics) ObserveWrite(result string, duration time.Duration) {
	if m == nil {
		return
	}

	m.WritesTotal.WithLabelValues(result).Inc()
	m.WriteDuration.Observe(duration.Seconds())
}

// ObserveRead records the result of a read
func (m *Metrics) ObserveRead(result string) {
	if m == nil {
		return
	}

	m.ReadsTotal.WithLabelValues(result).Inc()
}

// SetLockHandles records the number of live lock handles
func (m *Metrics) SetLockHandles(n int) {
	if m == nil {
		return
	}

	m.LockHandles.Set(float64(n))
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the Prometheus instruments of the catalog and the
// event bus
type Metrics struct {
	CatalogOps      *prometheus.CounterVec
	OpDuration      *prometheus.HistogramVec
	EventsPublished *prometheus.CounterVec
	EventsConsumed  *prometheus.CounterVec
	DLQEmitted      *prometheus.CounterVec
}

// NewMetrics creates and registers the catalog metrics on the given
// registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CatalogOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Name:      "operations_total",
			Help:      "Catalog operations by operation and result.",
		}, []string{"operation", "result"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "catalog",
			Name:      "operation_duration_seconds",
			Help:      "Catalog operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Events published by event type and result.",
		}, []string{"event_type", "result"}),
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "bus",
			Name:      "events_consumed_total",
			Help:      "Events consumed by event type and result.",
		}, []string{"event_type", "result"}),
		DLQEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "bus",
			Name:      "dead_letters_total",
			Help:      "Events written to dead-letter topics.",
		}, []string{"topic"}),
	}

	reg.MustRegister(m.CatalogOps, m.OpDuration, m.EventsPublished, m.EventsConsumed, m.DLQEmitted)
	return m
}

// NopMetrics creates metrics bound to a throwaway registry. Test helper.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

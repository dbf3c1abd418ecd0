// Package metrics records materialization passes as Prometheus metrics.
//
//	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
//	for org, err := range mapper.Stream[Org](src, mapper.WithMetrics(collector)) {
//	    ...
//	}
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the pass metrics, labelled by root entity type.
type Collector struct {
	rowsConsumed *prometheus.CounterVec   // rows pulled from the source
	rootsEmitted *prometheus.CounterVec   // completed root objects yielded
	rowErrors    *prometheus.CounterVec   // rows that failed to materialize
	passDuration *prometheus.HistogramVec // wall time of a pass
}

// NewCollector registers the collector's metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		rowsConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flatmapper_rows_total",
			Help: "Rows consumed by materialization passes.",
		}, []string{"entity"}),
		rootsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flatmapper_roots_total",
			Help: "Root objects emitted by materialization passes.",
		}, []string{"entity"}),
		rowErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flatmapper_row_errors_total",
			Help: "Rows that failed to materialize.",
		}, []string{"entity"}),
		passDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flatmapper_pass_duration_seconds",
			Help:    "Duration of materialization passes.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"entity"}),
	}
}

func (c *Collector) RowConsumed(entity string) {
	if c == nil {
		return
	}
	c.rowsConsumed.WithLabelValues(entity).Inc()
}

func (c *Collector) RootEmitted(entity string) {
	if c == nil {
		return
	}
	c.rootsEmitted.WithLabelValues(entity).Inc()
}

func (c *Collector) RowFailed(entity string) {
	if c == nil {
		return
	}
	c.rowErrors.WithLabelValues(entity).Inc()
}

func (c *Collector) ObservePass(entity string, d time.Duration) {
	if c == nil {
		return
	}
	c.passDuration.WithLabelValues(entity).Observe(d.Seconds())
}

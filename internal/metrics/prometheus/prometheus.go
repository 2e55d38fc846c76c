// Package prometheus provides a Prometheus-backed metrics.Recorder.
package prometheus

import (
	"github.com/giantswarm/fdtable/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// recorder is the Prometheus implementation of metrics.Recorder.
type recorder struct {
	allocations prometheus.Counter
	closes      prometheus.Counter
	growths     prometheus.Counter
	growRetries prometheus.Counter
	drains      prometheus.Counter
	capacity    prometheus.Histogram
	limitHits   *prometheus.CounterVec
	openFiles   prometheus.Gauge
}

// New registers the descriptor table collectors with reg and returns a
// Recorder that updates them. A nil reg yields the no-op Recorder.
//
// Registering twice with the same registry panics, as promauto does.
func New(reg prometheus.Registerer) metrics.Recorder {
	if reg == nil {
		return metrics.NewNoop()
	}

	factory := promauto.With(reg)

	return &recorder{
		allocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "fdtable_descriptors_allocated_total",
			Help: "Total number of descriptors allocated",
		}),
		closes: factory.NewCounter(prometheus.CounterOpts{
			Name: "fdtable_descriptors_closed_total",
			Help: "Total number of descriptors closed",
		}),
		growths: factory.NewCounter(prometheus.CounterOpts{
			Name: "fdtable_table_growths_total",
			Help: "Total number of descriptor array expansions",
		}),
		growRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "fdtable_table_grow_retries_total",
			Help: "Total number of expansions discarded after losing a race",
		}),
		drains: factory.NewCounter(prometheus.CounterOpts{
			Name: "fdtable_close_drains_total",
			Help: "Total number of closes that waited for concurrent users",
		}),
		capacity: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fdtable_table_capacity",
			Help:    "Descriptor array capacity after each expansion",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10),
		}),
		limitHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fdtable_limit_hits_total",
			Help: "Total number of allocations refused by a limit",
		}, []string{"limit"}),
		openFiles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fdtable_open_files",
			Help: "Current number of live file objects",
		}),
	}
}

func (r *recorder) DescriptorAllocated() {
	r.allocations.Inc()
}

func (r *recorder) DescriptorClosed() {
	r.closes.Inc()
}

func (r *recorder) TableGrown(_, newCap int) {
	r.growths.Inc()
	r.capacity.Observe(float64(newCap))
}

func (r *recorder) GrowRetried() {
	r.growRetries.Inc()
}

func (r *recorder) CloseDrained() {
	r.drains.Inc()
}

func (r *recorder) LimitHit(kind string) {
	r.limitHits.WithLabelValues(kind).Inc()
}

func (r *recorder) SetOpenFiles(n int) {
	r.openFiles.Set(float64(n))
}

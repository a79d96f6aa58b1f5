//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package monitoring wires a Prometheus registry by explicit reference:
// no package-level default registry, per the spec's "no implicit
// globals" design note.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every gauge/counter/histogram the pipeline emits.
// Constructed once and passed by pointer into each component.
type Metrics struct {
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	PartitionQueueDepth *prometheus.GaugeVec
	BulkWriteLatency    *prometheus.HistogramVec
	BulkWriteResults    *prometheus.CounterVec

	TaskStateTransitions *prometheus.CounterVec
	EnforcementSkipped   *prometheus.CounterVec

	MetricsConnections prometheus.Gauge
}

// New registers and returns a Metrics bundle against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twinupdate_cache_hits_total",
			Help: "Number of cache hits, by cache name.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twinupdate_cache_misses_total",
			Help: "Number of cache misses, by cache name.",
		}, []string{"cache"}),
		PartitionQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "twinupdate_partition_queue_depth",
			Help: "Number of queued write models per bulk-writer partition.",
		}, []string{"partition"}),
		BulkWriteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "twinupdate_bulk_write_latency_seconds",
			Help:    "Latency of bulk-write round-trips, by partition.",
			Buckets: prometheus.DefBuckets,
		}, []string{"partition"}),
		BulkWriteResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twinupdate_bulk_write_results_total",
			Help: "Classified bulk-write results, by outcome.",
		}, []string{"outcome"}),
		TaskStateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twinupdate_task_state_transitions_total",
			Help: "Twin update task state transitions, by from/to state.",
		}, []string{"from", "to"}),
		EnforcementSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twinupdate_enforcement_skipped_total",
			Help: "Twins skipped in one enforcement flow pass, by reason.",
		}, []string{"reason"}),
		MetricsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "twinupdate_metrics_connections",
			Help: "Number of currently open connections to the /metrics endpoint.",
		}),
	}

	reg.MustRegister(
		m.CacheHits, m.CacheMisses, m.PartitionQueueDepth,
		m.BulkWriteLatency, m.BulkWriteResults,
		m.TaskStateTransitions, m.EnforcementSkipped,
		m.MetricsConnections,
	)

	return m
}

// NewNoop returns a Metrics bundle registered against a fresh, unused
// registry — for tests and for callers that don't want a metrics
// endpoint.
func NewNoop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Package metrics wires the statistics engine's Prometheus collectors. The
// collectors are process-wide singletons, registered once and reused by
// every table's pipeline run.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	// SamplerBlocksFetched counts the row blocks the sampler actually issued,
	// labeled by path ("numeric_pk", "composite_pk", "fallback").
	SamplerBlocksFetched *prometheus.CounterVec

	// SamplerQueryDuration tracks wall-clock time of each block round-trip.
	SamplerQueryDuration *prometheus.HistogramVec

	// HistogramBuildDuration tracks time spent building one column's buckets.
	HistogramBuildDuration prometheus.Histogram

	// AdaptiveRounds counts SAMPLE/VALIDATE rounds run by the 2PHASE controller.
	AdaptiveRounds prometheus.Counter

	// LastNDVEstimate is the most recent NDV estimate produced for a given
	// (table, column, method) triple.
	LastNDVEstimate *prometheus.GaugeVec
)

// Register installs all collectors into prometheus's default registry. Safe
// to call from multiple goroutines/tables; only the first call has effect.
func Register() {
	registerOnce.Do(func() {
		SamplerBlocksFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "videx",
			Subsystem: "sampler",
			Name:      "blocks_fetched_total",
			Help:      "Number of row blocks fetched by the block-level sampler.",
		}, []string{"path"})

		SamplerQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "videx",
			Subsystem: "sampler",
			Name:      "query_duration_seconds",
			Help:      "Latency of a single sampler block round-trip.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"})

		HistogramBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "videx",
			Subsystem: "histogram",
			Name:      "build_duration_seconds",
			Help:      "Latency of building one column's equi-depth histogram.",
			Buckets:   prometheus.DefBuckets,
		})

		AdaptiveRounds = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "videx",
			Subsystem: "adaptive",
			Name:      "rounds_total",
			Help:      "Number of SAMPLE/VALIDATE rounds run by the 2PHASE controller.",
		})

		LastNDVEstimate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "videx",
			Subsystem: "ndv",
			Name:      "estimate",
			Help:      "Most recent NDV estimate for a (table, column, method).",
		}, []string{"table", "column", "method"})

		prometheus.MustRegister(
			SamplerBlocksFetched,
			SamplerQueryDuration,
			HistogramBuildDuration,
			AdaptiveRounds,
			LastNDVEstimate,
		)
	})
}

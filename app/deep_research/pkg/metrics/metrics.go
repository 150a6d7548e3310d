package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
)

var (
	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_research_runs_total",
			Help: "Total number of research runs by outcome",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deep_research_run_duration_seconds",
			Help:    "End-to-end research run duration in seconds",
			Buckets: []float64{1, 5, 10, 20, 40, 60, 90, 120},
		},
	)

	SourcesPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deep_research_sources_per_run",
			Help:    "Number of filtered sources handed to synthesis per run",
			Buckets: []float64{0, 2, 4, 8, 12, 16, 24},
		},
	)

	// Query metrics
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_research_queries_total",
			Help: "Total number of executed queries by status and error kind",
		},
		[]string{"status", "error_kind"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deep_research_query_duration_seconds",
			Help:    "Per-query wall time including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Degradation metrics
	PlannerFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deep_research_planner_fallbacks_total",
			Help: "Number of plans built without generated queries after a generator failure",
		},
	)

	SynthesisDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_research_synthesis_degraded_total",
			Help: "Number of degraded syntheses by reason",
		},
		[]string{"reason"},
	)
)

// 结果标签
const (
	OutcomeDone              = "done"
	OutcomeMissingFields     = "missing_fields"
	ReasonNoData             = "no_data"
	ReasonGenerationFailed   = "generation_failed"
	ReasonSectionsIncomplete = "sections_incomplete"
)

// RecordQuery 记录单条查询结果
func RecordQuery(r model.QueryResult) {
	kind := string(r.Err)
	if kind == "" {
		kind = "none"
	}
	QueriesTotal.WithLabelValues(r.Status.String(), kind).Inc()
	QueryDuration.Observe(r.Elapsed.Seconds())
}

// Package metrics exposes Prometheus collectors for the analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Source fetches
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genesis_fetches_total",
			Help: "Total number of source page fetches",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genesis_fetch_duration_seconds",
			Help:    "Source page fetch duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Search queries
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genesis_searches_total",
			Help: "Total number of search queries",
		},
		[]string{"provider", "outcome"},
	)

	EvidenceChars = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genesis_evidence_chars",
			Help:    "Characters of evidence gathered per entity",
			Buckets: []float64{0, 1000, 5000, 10000, 20000, 40000},
		},
	)

	// Reasoning calls
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genesis_llm_calls_total",
			Help: "Total number of reasoning provider calls",
		},
		[]string{"provider", "outcome"},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genesis_llm_duration_seconds",
			Help:    "Reasoning provider call duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genesis_llm_tokens_total",
			Help: "Tokens consumed by reasoning calls",
		},
		[]string{"provider"},
	)

	// Stages
	StagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genesis_stages_total",
			Help: "Total number of chain stages executed",
		},
		[]string{"stage", "outcome"},
	)

	// Cache
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genesis_cache_lookups_total",
			Help: "Analysis cache lookups",
		},
		[]string{"kind", "result"},
	)

	// Requests
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genesis_analyses_total",
			Help: "Completed analysis requests",
		},
		[]string{"operation", "status"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genesis_analysis_duration_seconds",
			Help:    "End-to-end analysis duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)
)

// RecordFetch records one page fetch
func RecordFetch(ok bool, d time.Duration) {
	FetchesTotal.WithLabelValues(outcome(ok)).Inc()
	FetchDuration.Observe(d.Seconds())
}

// RecordSearch records one search query
func RecordSearch(provider string, ok bool) {
	SearchesTotal.WithLabelValues(provider, outcome(ok)).Inc()
}

// RecordLLM records one reasoning call
func RecordLLM(provider string, ok bool, tokens int, d time.Duration) {
	LLMCalls.WithLabelValues(provider, outcome(ok)).Inc()
	LLMDuration.WithLabelValues(provider).Observe(d.Seconds())
	if tokens > 0 {
		LLMTokens.WithLabelValues(provider).Add(float64(tokens))
	}
}

// RecordStage records one chain stage
func RecordStage(stage string, ok bool) {
	StagesTotal.WithLabelValues(stage, outcome(ok)).Inc()
}

// RecordCache records a cache lookup for kind ("report", "entity", ...)
func RecordCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordAnalysis records a finished operation
func RecordAnalysis(operation, status string, d time.Duration) {
	AnalysesTotal.WithLabelValues(operation, status).Inc()
	AnalysisDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

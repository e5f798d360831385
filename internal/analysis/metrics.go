package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contractlens",
		Name:      "heuristic_fallback_total",
		Help:      "Pipeline stages that fell back from the model to the heuristic path.",
	}, []string{"stage"})

	clausesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contractlens",
		Name:      "clauses_analyzed_total",
		Help:      "Clauses analyzed, by compliance status.",
	}, []string{"status"})

	pipelineSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "contractlens",
		Name:      "pipeline_duration_seconds",
		Help:      "Wall time of one document analysis.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

const (
	stageSegment   = "segment"
	stageAnalyze   = "analyze"
	stageFees      = "fees"
	stageRateCard  = "rate_card"
	stagePayment   = "payment_terms"
	stageFinancial = "financial"
	stageDigest    = "digest"
)

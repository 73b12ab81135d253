// Package observability provides Prometheus metrics instrumentation for the
// enhancement pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// PIPELINE METRICS
// =============================================================================

var (
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardsengine_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"reason"}, // reason: completed_successfully, forced_acceptance, cancelled
	)

	pipelineDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "standardsengine_pipeline_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)

// =============================================================================
// STAGE METRICS
// =============================================================================

var (
	stageAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardsengine_stage_attempts_total",
			Help: "Total number of stage attempts",
		},
		[]string{"stage", "outcome"}, // outcome: advanced, retried, regressed, forced
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "standardsengine_stage_duration_seconds",
			Help:    "Stage attempt duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	stageQualityScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "standardsengine_stage_quality_score",
			Help:    "Quality scores reported by stage attempts",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"stage"},
	)
)

// =============================================================================
// LLM AND PARSE METRICS
// =============================================================================

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardsengine_llm_calls_total",
			Help: "Total number of LLM calls",
		},
		[]string{"stage", "status"}, // status: success, error
	)

	parseResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardsengine_parse_results_total",
			Help: "Stage output parses by the strategy that produced the result",
		},
		[]string{"stage", "method"},
	)

	knowledgeRetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standardsengine_knowledge_retrievals_total",
			Help: "Total number of mediated knowledge retrievals",
		},
		[]string{"stage", "status"}, // status: success, degraded
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordPipelineRun records the outcome of one full pipeline run.
func RecordPipelineRun(reason string, durationMS int) {
	pipelineRunsTotal.WithLabelValues(reason).Inc()
	pipelineDurationSeconds.Observe(float64(durationMS) / 1000.0)
}

// RecordStageAttempt records one stage attempt and its transition outcome.
func RecordStageAttempt(stage string, outcome string, durationMS int) {
	stageAttemptsTotal.WithLabelValues(stage, outcome).Inc()
	stageDurationSeconds.WithLabelValues(stage).Observe(float64(durationMS) / 1000.0)
}

// RecordQualityScore records the score a stage attempt reported.
func RecordQualityScore(stage string, score int) {
	stageQualityScore.WithLabelValues(stage).Observe(float64(score))
}

// RecordLLMCall records one LLM generation call.
func RecordLLMCall(stage string, status string) {
	llmCallsTotal.WithLabelValues(stage, status).Inc()
}

// RecordParseResult records which parser strategy produced a stage result.
func RecordParseResult(stage string, method string) {
	parseResultsTotal.WithLabelValues(stage, method).Inc()
}

// RecordKnowledgeRetrieval records one mediated knowledge retrieval.
func RecordKnowledgeRetrieval(stage string, status string) {
	knowledgeRetrievalsTotal.WithLabelValues(stage, status).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurocase_generation_calls_total",
		Help: "Generation calls by model and outcome",
	}, []string{"model", "outcome"})

	AIEditAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurocase_ai_edit_attempts_total",
		Help: "AI edit attempts by job and result",
	}, []string{"job", "result"})

	CaseTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurocase_case_turns_total",
		Help: "Case conversation turns by delivery mode",
	}, []string{"mode"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurocase_jobs_processed_total",
		Help: "Background jobs by type and final status",
	}, []string{"job_type", "status"})

	ReasoningAnalyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurocase_reasoning_analyses_total",
		Help: "Reasoning analyses by source",
	}, []string{"source"})
)

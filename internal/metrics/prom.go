package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"wellness-meal-planner/internal/shared"
)

var (
	// generationsTotal counts generations by source and error kind
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meal_plan_generations_total",
		Help: "Total meal plan generations by source and error kind",
	}, []string{"source", "error_kind"})

	// generationDuration tracks the remote call latency
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meal_plan_generation_duration_seconds",
		Help:    "Meal plan generation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 250ms to ~64s
	}, []string{"source"})

	// tokensTotal counts tokens by direction
	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meal_plan_tokens_total",
		Help: "Total tokens consumed by meal plan generation",
	}, []string{"direction"})

	// profileSubmissionsTotal counts preference submissions by result
	profileSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profile_submissions_total",
		Help: "Total preference submissions by result",
	}, []string{"result"})
)

// Observe updates the generation collectors.
func Observe(meta shared.GenerationMeta) {
	kind := meta.ErrorKind
	if kind == "" {
		kind = "none"
	}
	generationsTotal.WithLabelValues(meta.Source, kind).Inc()
	generationDuration.WithLabelValues(meta.Source).Observe(meta.Latency.Seconds())
	tokensTotal.WithLabelValues("prompt").Add(float64(meta.Usage.PromptTokens))
	tokensTotal.WithLabelValues("completion").Add(float64(meta.Usage.CompletionTokens))
}

// ObserveSubmission counts a preference submission; result is "ok",
// "in_flight" or "error".
func ObserveSubmission(result string) {
	profileSubmissionsTotal.WithLabelValues(result).Inc()
}

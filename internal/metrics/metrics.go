// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics provides Prometheus metrics for the content pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pipeline"

// Outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeTimeout  = "timeout"
	OutcomeRejected = "rejected"
	OutcomeNoop     = "noop"
)

// Draft request results
const (
	DraftStarted  = "started"
	DraftAttached = "attached"
	DraftInFlight = "in_flight"
	DraftStale    = "stale"
)

var (
	// GenerationTotal counts external generation calls.
	GenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_total",
			Help:      "Total number of text-generation calls",
		},
		[]string{"outcome"},
	)

	// GenerationDuration measures generation call latency.
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of text-generation calls in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	// GenerationTokens counts tokens consumed by generation.
	GenerationTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Tokens consumed by text generation",
		},
		[]string{"kind"},
	)

	// GenerationCost accumulates the estimated generation spend.
	GenerationCost = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_cost_usd_total",
			Help:      "Estimated text-generation cost in USD",
		},
	)

	// DraftRequestsTotal counts draft requests by how they were served.
	DraftRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_requests_total",
			Help:      "Draft requests by result",
		},
		[]string{"result"},
	)

	// PublishTotal counts publish attempts.
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of publish operations",
		},
		[]string{"outcome"},
	)

	// PublishDuration measures calls to the publishing endpoint.
	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Duration of publishing endpoint calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// StaleRecoveredTotal counts in_progress ideas returned to pending.
	StaleRecoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_recovered_total",
			Help:      "Ideas recovered from a stale in_progress state",
		},
	)

	// JobRunsTotal counts scheduled job runs.
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and status",
		},
		[]string{"job", "status"},
	)

	// JobDuration measures scheduled job runs.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled job runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

// RecordGeneration records one generation call.
func RecordGeneration(outcome string, seconds float64) {
	GenerationTotal.WithLabelValues(outcome).Inc()
	GenerationDuration.Observe(seconds)
}

// RecordGenerationUsage records tokens and cost of a successful call.
func RecordGenerationUsage(promptTokens, completionTokens int64, costUSD float64) {
	GenerationTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	GenerationTokens.WithLabelValues("completion").Add(float64(completionTokens))
	if costUSD > 0 {
		GenerationCost.Add(costUSD)
	}
}

// RecordDraftRequest records how a draft request was served.
func RecordDraftRequest(result string) {
	DraftRequestsTotal.WithLabelValues(result).Inc()
}

// RecordPublish records a publish operation. Pass a negative duration when
// the endpoint was not called.
func RecordPublish(outcome string, seconds float64) {
	PublishTotal.WithLabelValues(outcome).Inc()
	if seconds >= 0 {
		PublishDuration.Observe(seconds)
	}
}

// RecordStaleRecovered records ideas recovered by one sweep.
func RecordStaleRecovered(n int) {
	if n > 0 {
		StaleRecoveredTotal.Add(float64(n))
	}
}

// RecordJobRun records a scheduled job run.
func RecordJobRun(job, status string, seconds float64) {
	JobRunsTotal.WithLabelValues(job, status).Inc()
	JobDuration.WithLabelValues(job).Observe(seconds)
}

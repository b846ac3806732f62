// Package metrics exposes Prometheus collectors for the router's
// candidate selection, rate-limit accounting, upstream calls, and state
// store, registered against the prometheus.Registerer passed to New and served from
// internal/server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the router records against.
type Metrics struct {
	candidateSelections *prometheus.CounterVec
	candidateSkips      *prometheus.CounterVec
	rateLimitEvaluations *prometheus.CounterVec
	bucketUsageRatio    *prometheus.GaugeVec
	upstreamRequests    *prometheus.CounterVec
	upstreamDuration    *prometheus.HistogramVec
	retries             *prometheus.CounterVec
	fallbacks           *prometheus.CounterVec
	statePruneRuns      prometheus.Counter
	statePruneRemoved   *prometheus.CounterVec
}

// New creates and registers the router's collectors under namespace
// (typically "llm_router", per config.MetricsConfig.Namespace) against
// reg. Pass prometheus.DefaultRegisterer in production; tests should pass
// a fresh prometheus.NewRegistry() to avoid collisions across runs.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		candidateSelections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidate_selections_total",
				Help:      "Total number of candidates selected by the balancer.",
			},
			[]string{"route", "provider", "model", "strategy"},
		),
		candidateSkips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidate_skips_total",
				Help:      "Total number of candidates skipped by the balancer, by reason.",
			},
			[]string{"route", "provider", "model", "reason"},
		),
		rateLimitEvaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_evaluations_total",
				Help:      "Total number of rate-limit bucket evaluations, by result.",
			},
			[]string{"provider", "bucket", "result"},
		),
		bucketUsageRatio: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bucket_remaining_capacity_ratio",
				Help:      "Remaining capacity ratio of the last-evaluated rate-limit bucket.",
			},
			[]string{"provider", "bucket"},
		),
		upstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total number of upstream requests, by outcome category.",
			},
			[]string{"provider", "model", "category"},
		),
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Duration of upstream requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "model"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "origin_retries_total",
				Help:      "Total number of same-candidate origin retries.",
			},
			[]string{"provider", "model"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallbacks_total",
				Help:      "Total number of fallbacks to a different candidate.",
			},
			[]string{"route", "from_provider", "to_provider"},
		),
		statePruneRuns: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_prune_runs_total",
				Help:      "Total number of scheduled state prune sweeps.",
			},
		),
		statePruneRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_prune_removed_total",
				Help:      "Total number of expired state entries removed, by kind.",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) RecordSelection(route, provider, model, strategy string) {
	m.candidateSelections.WithLabelValues(route, provider, model, strategy).Inc()
}

func (m *Metrics) RecordSkip(route, provider, model, reason string) {
	m.candidateSkips.WithLabelValues(route, provider, model, reason).Inc()
}

func (m *Metrics) RecordRateLimitEvaluation(provider, bucket string, eligible bool) {
	result := "eligible"
	if !eligible {
		result = "exhausted"
	}
	m.rateLimitEvaluations.WithLabelValues(provider, bucket, result).Inc()
}

func (m *Metrics) SetBucketRemainingRatio(provider, bucket string, ratio float64) {
	m.bucketUsageRatio.WithLabelValues(provider, bucket).Set(ratio)
}

func (m *Metrics) RecordUpstreamRequest(provider, model, category string, durationSeconds float64) {
	m.upstreamRequests.WithLabelValues(provider, model, category).Inc()
	m.upstreamDuration.WithLabelValues(provider, model).Observe(durationSeconds)
}

func (m *Metrics) RecordRetry(provider, model string) {
	m.retries.WithLabelValues(provider, model).Inc()
}

func (m *Metrics) RecordFallback(route, fromProvider, toProvider string) {
	m.fallbacks.WithLabelValues(route, fromProvider, toProvider).Inc()
}

func (m *Metrics) RecordPruneRun(prunedBuckets, prunedCandidateStates int) {
	m.statePruneRuns.Inc()
	m.statePruneRemoved.WithLabelValues("bucket_usage").Add(float64(prunedBuckets))
	m.statePruneRemoved.WithLabelValues("candidate_state").Add(float64(prunedCandidateStates))
}

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/addonrail/internal/cache"
	"github.com/tomtom215/addonrail/internal/rank"
)

// Latency buckets sized around the 30ms ranking budget.
var rankBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.015, 0.02, 0.025, 0.03, 0.035, 0.05, 0.1, 0.25}

var (
	// Ranking
	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "addonrail_rank_duration_seconds",
			Help:    "End-to-end rank latency in seconds",
			Buckets: rankBuckets,
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "addonrail_stage_duration_seconds",
			Help:    "Pipeline stage latency in seconds",
			Buckets: rankBuckets,
		},
		[]string{"stage"},
	)

	RankRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addonrail_rank_requests_total",
			Help: "Total number of ranked rails by outcome",
		},
		[]string{"outcome"}, // "ok", "empty", "degraded"
	)

	DegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addonrail_degraded_total",
			Help: "Total number of degraded rails by level",
		},
		[]string{"level"},
	)

	CandidatePoolSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "addonrail_candidate_pool_size",
			Help:    "Eligible items after the filter chain",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 200, 500},
		},
	)

	RailLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "addonrail_rail_length",
			Help:    "Number of slots returned",
			Buckets: []float64{0, 1, 4, 8, 9, 10},
		},
	)

	HeadFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addonrail_head_fallbacks_total",
			Help: "Total number of head evaluations replaced by the neutral value",
		},
		[]string{"head"},
	)

	HeadBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "addonrail_head_breaker_state",
			Help: "Head circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"head"},
	)

	// Sessions and feedback
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "addonrail_sessions_active",
			Help: "Current number of live sessions",
		},
	)

	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "addonrail_sessions_expired_total",
			Help: "Total number of sessions removed after the idle timeout",
		},
	)

	FeedbackEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "addonrail_feedback_events_total",
			Help: "Total number of applied feedback events",
		},
	)

	FeedbackAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "addonrail_feedback_accepted_items_total",
			Help: "Total number of accepted items reported by feedback",
		},
	)

	TrajectoryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "addonrail_trajectory_cache_hits_total",
			Help: "Total number of trajectory vector cache hits",
		},
	)

	TrajectoryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "addonrail_trajectory_cache_misses_total",
			Help: "Total number of trajectory vector cache misses",
		},
	)

	// Artifacts
	ArtifactReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addonrail_artifact_reloads_total",
			Help: "Total number of artifact reload attempts",
		},
		[]string{"result"}, // "ok", "error"
	)

	CatalogVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "addonrail_catalog_version",
			Help: "Version of the published catalog snapshot",
		},
	)

	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addonrail_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "addonrail_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "addonrail_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)
)

// Observer records pipeline timings. It implements rank.Observer.
type Observer struct{}

var _ rank.Observer = Observer{}

// ObserveStage records one stage duration.
func (Observer) ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRank records the outcome of one rank call.
func (Observer) ObserveRank(resp *rank.Response, d time.Duration) {
	RankDuration.Observe(d.Seconds())
	switch {
	case resp.Degraded:
		RankRequests.WithLabelValues("degraded").Inc()
		DegradedTotal.WithLabelValues(string(resp.Metadata.DegradeLevel)).Inc()
	case resp.Empty:
		RankRequests.WithLabelValues("empty").Inc()
	default:
		RankRequests.WithLabelValues("ok").Inc()
	}
	CandidatePoolSize.Observe(float64(resp.Metadata.PoolSize))
	RailLength.Observe(float64(len(resp.Slots)))
	for _, h := range resp.Metadata.HeadFallbacks {
		HeadFallbacks.WithLabelValues(h).Inc()
	}
	CatalogVersion.Set(float64(resp.Metadata.CatalogVersion))
}

// ObserveFeedback records one applied feedback event.
func (Observer) ObserveFeedback(accepted int) {
	FeedbackEvents.Inc()
	FeedbackAccepted.Add(float64(accepted))
}

// BreakerStateChange is the scoring breaker hook.
func BreakerStateChange(head, _, to string) {
	HeadBreakerState.WithLabelValues(head).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordReload records an artifact reload attempt.
func RecordReload(err error) {
	if err != nil {
		ArtifactReloads.WithLabelValues("error").Inc()
		return
	}
	ArtifactReloads.WithLabelValues("ok").Inc()
}

// cacheTracker turns cumulative cache counters into counter increments.
type cacheTracker struct {
	mu     sync.Mutex
	hits   int64
	misses int64
}

var trajectoryCache cacheTracker

// UpdateTrajectoryCache publishes the change since the previous call.
func UpdateTrajectoryCache(s cache.Stats) {
	trajectoryCache.mu.Lock()
	defer trajectoryCache.mu.Unlock()
	if d := s.Hits - trajectoryCache.hits; d > 0 {
		TrajectoryCacheHits.Add(float64(d))
	}
	if d := s.Misses - trajectoryCache.misses; d > 0 {
		TrajectoryCacheMisses.Add(float64(d))
	}
	trajectoryCache.hits, trajectoryCache.misses = s.Hits, s.Misses
}

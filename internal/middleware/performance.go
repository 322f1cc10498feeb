// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tomtom215/addonrail/internal/logging"
)

// RequestMetrics is one observed request.
type RequestMetrics struct {
	Route      string
	Method     string
	Duration   time.Duration
	StatusCode int
	Timestamp  time.Time
}

// EndpointStats aggregates the window for one route.
type EndpointStats struct {
	Endpoint     string  `json:"endpoint"`
	RequestCount int64   `json:"request_count"`
	ErrorCount   int64   `json:"error_count"`
	AvgMS        float64 `json:"avg_ms"`
	P50MS        float64 `json:"p50_ms"`
	P95MS        float64 `json:"p95_ms"`
	P99MS        float64 `json:"p99_ms"`
	MaxMS        float64 `json:"max_ms"`
}

// PerformanceMonitor keeps a sliding window of recent requests.
type PerformanceMonitor struct {
	mu         sync.RWMutex
	metrics    []RequestMetrics
	next       int
	full       bool
	slowAfter  time.Duration
	maxMetrics int
}

// NewPerformanceMonitor keeps the last maxMetrics requests and warns about
// requests slower than slowAfter (0 disables the warning).
func NewPerformanceMonitor(maxMetrics int, slowAfter time.Duration) *PerformanceMonitor {
	if maxMetrics < 1 {
		maxMetrics = 1
	}
	return &PerformanceMonitor{
		metrics:    make([]RequestMetrics, maxMetrics),
		slowAfter:  slowAfter,
		maxMetrics: maxMetrics,
	}
}

// RecordRequest adds a request to the window, overwriting the oldest.
func (pm *PerformanceMonitor) RecordRequest(m *RequestMetrics) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.metrics[pm.next] = *m
	pm.next = (pm.next + 1) % pm.maxMetrics
	if pm.next == 0 {
		pm.full = true
	}
}

func (pm *PerformanceMonitor) window() []RequestMetrics {
	if pm.full {
		return pm.metrics
	}
	return pm.metrics[:pm.next]
}

// GetStats returns per-route statistics sorted by request count descending.
func (pm *PerformanceMonitor) GetStats() []EndpointStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	type acc struct {
		durations []time.Duration
		errors    int64
	}
	byEndpoint := make(map[string]*acc)
	for _, m := range pm.window() {
		key := m.Method + " " + m.Route
		a, ok := byEndpoint[key]
		if !ok {
			a = &acc{}
			byEndpoint[key] = a
		}
		a.durations = append(a.durations, m.Duration)
		if m.StatusCode >= http.StatusInternalServerError {
			a.errors++
		}
	}

	stats := make([]EndpointStats, 0, len(byEndpoint))
	for endpoint, a := range byEndpoint {
		sorted := a.durations
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum time.Duration
		for _, d := range sorted {
			sum += d
		}
		stats = append(stats, EndpointStats{
			Endpoint:     endpoint,
			RequestCount: int64(len(sorted)),
			ErrorCount:   a.errors,
			AvgMS:        ms(sum) / float64(len(sorted)),
			P50MS:        ms(percentile(sorted, 0.50)),
			P95MS:        ms(percentile(sorted, 0.95)),
			P99MS:        ms(percentile(sorted, 0.99)),
			MaxMS:        ms(sorted[len(sorted)-1]),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].RequestCount != stats[j].RequestCount {
			return stats[i].RequestCount > stats[j].RequestCount
		}
		return stats[i].Endpoint < stats[j].Endpoint
	})
	return stats
}

// Middleware records every request into the window.
func (pm *PerformanceMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		route := routePattern(r)
		pm.RecordRequest(&RequestMetrics{
			Route:      route,
			Method:     r.Method,
			Duration:   duration,
			StatusCode: statusOf(ww),
			Timestamp:  start,
		})

		if pm.slowAfter > 0 && duration > pm.slowAfter {
			logging.Ctx(r.Context()).Warn().
				Str("method", r.Method).
				Str("route", route).
				Dur("duration", duration).
				Msg("Slow request detected")
		}
	})
}

// percentile returns the p-th value of a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

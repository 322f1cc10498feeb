// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

/*
Package middleware provides chi-compatible HTTP middleware for AddonRail.

  - RequestID: propagates or generates X-Request-ID and stores it in the
    logging context so every log line of the request carries request_id
  - PrometheusMetrics: request counts, latency and in-flight gauge labelled by
    the chi route pattern (not the raw path, which would explode cardinality
    with session ids)
  - AccessLog: one zerolog line per request
  - PerformanceMonitor: a sliding window of recent request latencies with
    per-route percentiles, served on the admin stats endpoint

Middleware order in the router:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(monitor.Middleware)
	r.Use(middleware.AccessLog)
*/
package middleware

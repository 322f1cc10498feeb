// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

/*
Package metrics defines the Prometheus metrics of the ranking service.

Metrics are registered on the default registry through promauto and served
at /metrics by the API router.

Ranking:
  - addonrail_rank_duration_seconds: end-to-end rank latency (histogram)
  - addonrail_stage_duration_seconds: per-stage latency (histogram, label stage)
  - addonrail_rank_requests_total: ranked rails (counter, label outcome: ok, empty, degraded)
  - addonrail_degraded_total: degraded rails (counter, label level)
  - addonrail_candidate_pool_size: eligible pool after filtering (histogram)
  - addonrail_rail_length: returned rail length (histogram)
  - addonrail_head_fallbacks_total: heads that fell back to neutral (counter, label head)
  - addonrail_head_breaker_state: breaker state per head, 0 closed, 1 half-open, 2 open (gauge)

Sessions and feedback:
  - addonrail_sessions_active: live sessions (gauge)
  - addonrail_sessions_expired_total: sessions removed by the janitor (counter)
  - addonrail_feedback_events_total: applied feedback events (counter)
  - addonrail_feedback_accepted_items_total: accepted items in feedback (counter)
  - addonrail_trajectory_cache_hits_total / _misses_total: trajectory vector cache (counters)

Model artifacts:
  - addonrail_artifact_reloads_total: reload attempts (counter, label result)
  - addonrail_catalog_version: published catalog version (gauge)

HTTP:
  - addonrail_http_requests_total (counter, labels method, route, status)
  - addonrail_http_request_duration_seconds (histogram, labels method, route)
  - addonrail_http_requests_in_flight (gauge)

Observer adapts the ranking counters to rank.Observer; BreakerStateChange
is the scoring breaker hook.
*/
package metrics

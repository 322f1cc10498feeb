// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

/*
Package api serves the ranking engine over HTTP with a chi router.

Routes:

	POST   /api/v1/rank                        rank the add-on rail for a cart
	POST   /api/v1/sessions/{id}/feedback      report accepted rail items
	PUT    /api/v1/sessions/{id}/diet          set the session diet toggle
	DELETE /api/v1/sessions/{id}               end a session
	GET    /api/v1/health/live                 liveness
	GET    /api/v1/health/ready                readiness (catalog and features loaded)
	GET    /api/v1/admin/weights               current scoring weights      (admin JWT)
	PUT    /api/v1/admin/weights               replace scoring weights      (admin JWT)
	POST   /api/v1/admin/reload                reload catalog and artifacts (admin JWT)
	GET    /api/v1/admin/stats                 engine and component stats  (admin JWT)
	GET    /metrics                            Prometheus

Every JSON response uses the envelope

	{"success": bool, "data": ..., "error": {"code", "message", "details"}, "meta": {...}}

Validation failures are 400 VALIDATION_ERROR, a missing catalog snapshot is
503 SERVICE_UNAVAILABLE. Empty and degraded rails are successful responses.
*/
package api

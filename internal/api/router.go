// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/addonrail/internal/auth"
	"github.com/tomtom215/addonrail/internal/middleware"
)

// Router wires the handlers into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(DefaultChiMiddlewareConfig())
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	if router.handler.deps.Monitor != nil {
		r.Use(router.handler.deps.Monitor.Middleware)
	}
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // before routing so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Error(http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	// ========================
	// Health Endpoints
	// ========================
	// Not rate limited so probes never see 429.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(auth.SecurityHeaders)
		r.Get("/live", router.handler.Live)
		r.Get("/ready", router.handler.Ready)
	})

	// ========================
	// Ranking Endpoints
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(auth.SecurityHeaders)
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Post("/rank", router.handler.Rank)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", router.handler.EndSession)
			r.Post("/feedback", router.handler.Feedback)
			r.Put("/diet", router.handler.SetDiet)
		})

		// ========================
		// Admin Endpoints
		// ========================
		r.Route("/admin", func(r chi.Router) {
			if router.handler.deps.Auth == nil {
				r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
					NewResponseWriter(w, req).ServiceUnavailable(ErrAdminDisabled.Error())
				})
				return
			}
			r.Use(router.handler.deps.Auth.RequireRole(auth.RoleAdmin))
			r.Get("/weights", router.handler.GetWeights)
			r.Put("/weights", router.handler.PutWeights)
			r.Post("/reload", router.handler.Reload)
			r.Get("/stats", router.handler.Stats)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

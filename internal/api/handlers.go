// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/auth"
	"github.com/tomtom215/addonrail/internal/feedback"
	"github.com/tomtom215/addonrail/internal/logging"
	"github.com/tomtom215/addonrail/internal/metrics"
	"github.com/tomtom215/addonrail/internal/middleware"
	"github.com/tomtom215/addonrail/internal/pipeline"
	"github.com/tomtom215/addonrail/internal/rank"
)

// Ranker is the engine surface the handlers use. *rank.Engine satisfies it.
type Ranker interface {
	Rank(ctx context.Context, req rank.Request) (*rank.Response, error)
	ApplyFeedback(ctx context.Context, fb rank.Feedback) error
	SetDiet(ctx context.Context, sessionID string, mode rank.DietMode) error
	EndSession(ctx context.Context, sessionID string) error
	Stats() rank.Stats
}

// Reloader reloads catalog and artifacts. *pipeline.Pipeline satisfies it.
type Reloader interface {
	Reload(ctx context.Context) (pipeline.ReloadReport, error)
	LastReload() pipeline.ReloadReport
	Ready() error
}

// WeightStore holds the live scoring weights. *scoring.WeightStore satisfies it.
type WeightStore interface {
	Get() rank.WeightSet
	Set(ws rank.WeightSet) (int64, error)
	Version() int64
}

// FeedbackPublisher publishes feedback events. *feedback.Publisher satisfies it.
type FeedbackPublisher interface {
	Publish(ctx context.Context, e *feedback.Event) error
	BreakerState() string
}

// Deps are the collaborators of the handlers.
type Deps struct {
	Engine   Ranker
	Pipeline Reloader
	Weights  WeightStore

	// Publisher routes feedback through the broker. When nil, feedback is
	// applied to the engine synchronously.
	Publisher FeedbackPublisher

	// Auth guards the admin routes. When nil, admin routes answer 503.
	Auth *auth.JWTManager

	// Monitor supplies per-endpoint latency for the stats route. Optional.
	Monitor *middleware.PerformanceMonitor

	// Stats adds component stats (sessions, caches, consumer) to the stats
	// route. Optional.
	Stats func(ctx context.Context) map[string]any

	// Clock replaces time.Now for feedback timestamps. Optional.
	Clock func() time.Time
}

// Handler serves the HTTP API.
type Handler struct {
	deps   Deps
	logger zerolog.Logger
}

// NewHandler creates the handler set.
//
//nolint:gocritic // hugeParam: deps is copied once at startup
func NewHandler(deps Deps, logger zerolog.Logger) *Handler {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Handler{deps: deps, logger: logger.With().Str("component", "api").Logger()}
}

// Rank handles POST /api/v1/rank.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var body RankRequest
	if err := decodeAndValidate(r, w, &body); err != nil {
		respondError(rw, err)
		return
	}
	req := body.ToRank()
	if req.RequestID == "" {
		req.RequestID = logging.RequestIDFromContext(r.Context())
	}

	ctx := logging.ContextWithSessionID(r.Context(), req.SessionID)
	resp, err := h.deps.Engine.Rank(ctx, req)
	if err != nil {
		respondError(rw, err)
		return
	}
	rw.Success(resp)
}

// Feedback handles POST /api/v1/sessions/{id}/feedback.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sessionID := chi.URLParam(r, "id")
	if err := validateSessionID(sessionID); err != nil {
		respondError(rw, err)
		return
	}

	var body FeedbackRequest
	if err := decodeAndValidate(r, w, &body); err != nil {
		respondError(rw, err)
		return
	}
	at := h.deps.Clock()
	if body.OccurredAt != nil {
		at = *body.OccurredAt
	}
	event := feedback.NewEvent(sessionID, body.AcceptedItemIDs, at)
	ctx := logging.ContextWithSessionID(r.Context(), sessionID)

	if h.deps.Publisher != nil {
		if err := h.deps.Publisher.Publish(ctx, event); err != nil {
			respondError(rw, err)
			return
		}
		rw.Accepted(map[string]string{"event_id": event.EventID})
		return
	}

	if err := h.deps.Engine.ApplyFeedback(ctx, event.Feedback()); err != nil {
		respondError(rw, err)
		return
	}
	rw.Success(map[string]string{"event_id": event.EventID})
}

// SetDiet handles PUT /api/v1/sessions/{id}/diet.
func (h *Handler) SetDiet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sessionID := chi.URLParam(r, "id")
	if err := validateSessionID(sessionID); err != nil {
		respondError(rw, err)
		return
	}

	var body DietRequest
	if err := decodeAndValidate(r, w, &body); err != nil {
		respondError(rw, err)
		return
	}
	mode, err := rank.ParseDietMode(body.Mode)
	if err != nil {
		respondError(rw, rank.NewValidationError("mode", err.Error()))
		return
	}
	if err := h.deps.Engine.SetDiet(r.Context(), sessionID, mode); err != nil {
		respondError(rw, err)
		return
	}
	rw.Success(map[string]string{"session_id": sessionID, "diet": mode.String()})
}

// EndSession handles DELETE /api/v1/sessions/{id}.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sessionID := chi.URLParam(r, "id")
	if err := validateSessionID(sessionID); err != nil {
		respondError(rw, err)
		return
	}
	if err := h.deps.Engine.EndSession(r.Context(), sessionID); err != nil {
		respondError(rw, err)
		return
	}
	rw.NoContent()
}

// Live handles GET /api/v1/health/live.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// Ready handles GET /api/v1/health/ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.deps.Pipeline.Ready(); err != nil {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "not ready",
			map[string]string{"reason": err.Error()})
		return
	}
	last := h.deps.Pipeline.LastReload()
	rw.Success(map[string]any{
		"status":          "ready",
		"catalog_version": last.CatalogVersion,
		"last_reload":     last.At,
	})
}

type weightsResponse struct {
	Version int64          `json:"version"`
	Weights rank.WeightSet `json:"weights"`
}

// GetWeights handles GET /api/v1/admin/weights.
func (h *Handler) GetWeights(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(weightsResponse{
		Version: h.deps.Weights.Version(),
		Weights: h.deps.Weights.Get(),
	})
}

// PutWeights handles PUT /api/v1/admin/weights. The body replaces the whole
// weight set; it is validated before it is swapped in.
func (h *Handler) PutWeights(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var ws rank.WeightSet
	if err := decodeAndValidate(r, w, &ws); err != nil {
		respondError(rw, err)
		return
	}
	version, err := h.deps.Weights.Set(ws)
	if err != nil {
		respondError(rw, rank.NewValidationError("weights", err.Error()))
		return
	}

	h.logger.Info().Int64("version", version).Str("subject", subject(r)).Msg("Scoring weights replaced")
	rw.Success(weightsResponse{Version: version, Weights: h.deps.Weights.Get()})
}

// Reload handles POST /api/v1/admin/reload. A partial failure still returns
// the report with the errors listed.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	report, err := h.deps.Pipeline.Reload(r.Context())
	metrics.RecordReload(err)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			respondError(rw, err)
			return
		}
		h.logger.Warn().Err(err).Str("subject", subject(r)).Msg("Manual reload finished with errors")
		rw.Success(map[string]any{"report": report, "errors": err.Error()})
		return
	}
	h.logger.Info().Strs("changed", report.Changed).Str("subject", subject(r)).Msg("Manual reload")
	rw.Success(map[string]any{"report": report})
}

// Stats handles GET /api/v1/admin/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"engine":          h.deps.Engine.Stats(),
		"last_reload":     h.deps.Pipeline.LastReload(),
		"weights_version": h.deps.Weights.Version(),
	}
	if h.deps.Publisher != nil {
		out["feedback_breaker"] = h.deps.Publisher.BreakerState()
	}
	if h.deps.Monitor != nil {
		out["endpoints"] = h.deps.Monitor.GetStats()
	}
	if h.deps.Stats != nil {
		for k, v := range h.deps.Stats(r.Context()) {
			out[k] = v
		}
	}
	NewResponseWriter(w, r).Success(out)
}

func subject(r *http.Request) string {
	if c, ok := auth.ClaimsFromContext(r.Context()); ok {
		return c.Subject
	}
	return ""
}

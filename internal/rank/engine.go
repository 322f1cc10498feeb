// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	maxCartLines    = 100
	maxLineQuantity = 50
	maxIDLength     = 128
)

// Engine orchestrates the ranking stages for each cart turn.
// It is safe for concurrent use.
type Engine struct {
	config   *Config
	comp     Components
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time

	degradedLog rate.Sometimes

	requestCount  atomic.Int64
	degradedCount atomic.Int64
	emptyCount    atomic.Int64
	errorCount    atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used for request times and latency budgets.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Stats are cumulative engine counters.
type Stats struct {
	Requests int64 `json:"requests"`
	Degraded int64 `json:"degraded"`
	Empty    int64 `json:"empty"`
	Errors   int64 `json:"errors"`
}

// NewEngine creates a ranking engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, comp Components, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := comp.validate(); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}

	e := &Engine{
		config:      cfg,
		comp:        comp,
		observer:    comp.Observer,
		logger:      logger.With().Str("component", "rank").Logger(),
		now:         time.Now,
		degradedLog: rate.Sometimes{Interval: 10 * time.Second},
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// Stats returns the cumulative counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Requests: e.requestCount.Load(),
		Degraded: e.degradedCount.Load(),
		Empty:    e.emptyCount.Load(),
		Errors:   e.errorCount.Load(),
	}
}

// Rank computes the add-on rail for one cart turn and records the turn in
// the session. Only malformed input and a missing catalog are errors; every
// other failure degrades the result.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Rank(ctx context.Context, req Request) (*Response, error) {
	start := e.now()
	e.requestCount.Add(1)

	req = e.prepareRequest(req, start)
	if err := validateRequest(&req); err != nil {
		e.errorCount.Add(1)
		return nil, err
	}

	catalog := e.comp.Catalog.Current()
	if catalog == nil {
		e.errorCount.Add(1)
		return nil, ErrCatalogUnavailable
	}
	restaurant, ok := catalog.Restaurant(req.RestaurantID)
	if !ok {
		e.errorCount.Add(1)
		return nil, NewValidationError("restaurant_id", fmt.Sprintf("unknown restaurant %q", req.RestaurantID))
	}

	var resp *Response
	err := e.comp.Sessions.Do(ctx, req.SessionID, func(s *SessionState) error {
		r, err := e.rankLocked(ctx, req, s, catalog, restaurant, start)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		e.errorCount.Add(1)
		return nil, fmt.Errorf("rank session %s: %w", req.SessionID, err)
	}

	elapsed := e.now().Sub(start)
	resp.Metadata.LatencyMS = elapsed.Milliseconds()
	e.observer.ObserveRank(resp, elapsed)

	if e.config.Degradation.Enabled && elapsed > e.config.Degradation.Alarm {
		e.logger.Warn().
			Str("request_id", req.RequestID).
			Dur("elapsed", elapsed).
			Dur("alarm", e.config.Degradation.Alarm).
			Msg("rank latency above alarm threshold")
	}

	return resp, nil
}

// prepareRequest applies defaults and generates the request ID if needed.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req Request, start time.Time) Request {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Now.IsZero() {
		req.Now = start
	}
	return req
}

func validateRequest(req *Request) error {
	if req.SessionID == "" {
		return NewValidationError("session_id", "required")
	}
	if len(req.SessionID) > maxIDLength {
		return NewValidationError("session_id", "too long")
	}
	if req.RestaurantID == "" {
		return NewValidationError("restaurant_id", "required")
	}
	if len(req.Cart) > maxCartLines {
		return NewValidationError("cart", fmt.Sprintf("at most %d lines", maxCartLines))
	}
	if req.DietToggle < DietUnset || req.DietToggle > DietNonVeg {
		return NewValidationError("diet_toggle", "unknown mode")
	}

	prevSeq := -1
	for i, l := range req.Cart {
		field := fmt.Sprintf("cart[%d]", i)
		if l.ItemID == "" {
			return NewValidationError(field+".item_id", "required")
		}
		if l.Quantity < 1 || l.Quantity > maxLineQuantity {
			return NewValidationError(field+".quantity", fmt.Sprintf("must be between 1 and %d", maxLineQuantity))
		}
		if l.Seq <= prevSeq {
			return NewValidationError(field+".seq", "must be strictly increasing")
		}
		prevSeq = l.Seq
	}
	return nil
}

// rankLocked runs the pipeline while the session lock is held and applies the
// post-response session update.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) rankLocked(ctx context.Context, req Request, s *SessionState, catalog *Catalog, restaurant *Restaurant, start time.Time) (*Response, error) {
	if req.DietToggle != DietUnset {
		s.DietToggle = req.DietToggle
	}
	if req.UserID != "" {
		s.UserID = req.UserID
	}
	s.RestaurantID = req.RestaurantID
	s.SyncCart(req.Cart, req.Now)

	t := NewTurn(req, s.Snapshot(), catalog, restaurant, req.Now)
	if !s.LastAdditionAt.IsZero() {
		t.IdleTime = req.Now.Sub(s.LastAdditionAt)
	}
	t.Risk = AbandonmentRisk(s.ConsecutiveRejections, t.IdleTime, e.config.Risk)
	t.Diet = ResolveDiet(s.DietToggle, t.User, req.Now, t.CartItems())
	t.Peak = PeakModeAt(req.Now, e.config.Peak)

	logger := e.logger.With().
		Str("request_id", req.RequestID).
		Str("session_id", req.SessionID).
		Logger()
	for _, m := range t.Missing {
		logger.Debug().Err(m).Msg("referenced data unavailable")
	}

	resp, err := e.runPipeline(ctx, t, start, logger)
	if err != nil {
		return nil, err
	}

	s.RecordShown(resp.Slots)
	s.AbandonmentRisk = t.Risk
	return resp, nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) runPipeline(ctx context.Context, t *Turn, start time.Time, logger zerolog.Logger) (*Response, error) {
	resp := e.newResponse(t)

	stageStart := e.now()
	fr := e.comp.Filters.Apply(t)
	e.observer.ObserveStage("filter", e.now().Sub(stageStart))
	resp.Metadata.PoolSize = len(fr.Eligible)
	resp.Metadata.FilterRejections = fr.Rejected

	if len(fr.Eligible) == 0 {
		return e.emptyResponse(resp, "filter", logger), nil
	}

	stageStart = e.now()
	rr, err := e.comp.Retriever.Retrieve(ctx, t, fr.Eligible)
	e.observer.ObserveStage("retrieval", e.now().Sub(stageStart))
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}
	for _, m := range rr.Missing {
		logger.Debug().Err(m).Msg("candidate excluded")
	}
	if rr.NoCandidates || len(rr.Candidates) == 0 {
		return e.emptyResponse(resp, "retrieval", logger), nil
	}
	candidates := rr.Candidates
	resp.Metadata.Retrieved = len(candidates)
	resp.Metadata.PostRank.Input = len(candidates)

	if cut := e.checkBudget(ctx, start, e.config.Degradation.ScoringCutoff, "scoring"); cut != nil {
		for _, c := range candidates {
			c.Score = c.Similarity
			c.Breakdown = map[string]float64{"similarity": c.Similarity}
		}
		return e.degrade(resp, t, candidates, DegradeSimilarityOnly, cut, logger), nil
	}

	stageStart = e.now()
	traj, err := e.comp.Trajectory.Vector(ctx, t)
	e.observer.ObserveStage("trajectory", e.now().Sub(stageStart))
	if err != nil {
		logger.Warn().Err(err).Msg("trajectory unavailable, using zero vector")
	}

	stageStart = e.now()
	if err := e.comp.Features.Assemble(ctx, t, candidates, traj); err != nil {
		logger.Warn().Err(err).Msg("feature assembly incomplete")
	}
	e.observer.ObserveStage("features", e.now().Sub(stageStart))

	stageStart = e.now()
	report := e.comp.Scorer.Score(ctx, t, candidates)
	e.observer.ObserveStage("scoring", e.now().Sub(stageStart))
	resp.Metadata.HeadFallbacks = report.Fallbacks

	if cut := e.checkBudget(ctx, start, e.config.Degradation.PostRankCutoff, "post_rank"); cut != nil {
		return e.degrade(resp, t, candidates, DegradeSkipPostRank, cut, logger), nil
	}

	stageStart = e.now()
	processed, stats := e.comp.PostRanker.Process(t, candidates)
	e.observer.ObserveStage("post_rank", e.now().Sub(stageStart))

	stageStart = e.now()
	slots, override := e.comp.Positioner.Assemble(t, processed, false)
	e.observer.ObserveStage("position", e.now().Sub(stageStart))

	stats.Output = len(slots)
	if override {
		stats.D2DOverride = 1
	}
	resp.Slots = slots
	resp.Metadata.PostRank = stats
	return resp, nil
}

// checkBudget returns a LatencyBudgetError when the stage would start after
// its cutoff or the request context is already done.
func (e *Engine) checkBudget(ctx context.Context, start time.Time, cutoff time.Duration, stage string) *LatencyBudgetError {
	if !e.config.Degradation.Enabled {
		return nil
	}
	elapsed := e.now().Sub(start)
	if elapsed >= cutoff || ctx.Err() != nil {
		return &LatencyBudgetError{Stage: stage, Elapsed: elapsed, Cutoff: cutoff}
	}
	return nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) degrade(resp *Response, t *Turn, ranked []*Candidate, level DegradeLevel, cut *LatencyBudgetError, logger zerolog.Logger) *Response {
	e.degradedCount.Add(1)
	e.degradedLog.Do(func() {
		logger.Warn().
			Err(cut).
			Str("level", string(level)).
			Msg("latency budget exceeded, returning degraded rail")
	})

	slots, _ := e.comp.Positioner.Assemble(t, ranked, true)
	resp.Slots = slots
	resp.Degraded = true
	resp.Metadata.DegradeLevel = level
	resp.Metadata.PostRank.AfterCap = len(ranked)
	resp.Metadata.PostRank.Output = len(slots)
	return resp
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) emptyResponse(resp *Response, stage string, logger zerolog.Logger) *Response {
	e.emptyCount.Add(1)
	logger.Debug().Err(ErrEmptyPool).Str("stage", stage).Msg("no candidates")
	resp.Empty = true
	return resp
}

func (e *Engine) newResponse(t *Turn) *Response {
	return &Response{
		Slots: []RankedSlot{},
		Metadata: ResponseMetadata{
			RequestID:      t.Request.RequestID,
			SessionID:      t.Request.SessionID,
			CartVersion:    t.Version.String(),
			CatalogVersion: t.Catalog.Version,
			DegradeLevel:   DegradeNone,
			DietMode:       t.Diet.Mode.String(),
			DietSource:     string(t.Diet.Source),
			MealPeriod:     t.MealPeriod,
			PeakMode:       t.Peak.String(),
			Timestamp:      t.Now,
		},
	}
}

// ApplyFeedback applies an acceptance-feedback event to the session's fatigue
// and rejection counters.
//
//nolint:gocritic // hugeParam: fb passed by value for immutability
func (e *Engine) ApplyFeedback(ctx context.Context, fb Feedback) error {
	if fb.SessionID == "" {
		return NewValidationError("session_id", "required")
	}
	if fb.OccurredAt.IsZero() {
		fb.OccurredAt = e.now()
	}

	catalog := e.comp.Catalog.Current()
	categoryOf := func(itemID string) (Category, bool) {
		if catalog == nil {
			return "", false
		}
		it, ok := catalog.Item(itemID)
		if !ok {
			return "", false
		}
		return it.Category, true
	}

	err := e.comp.Sessions.Do(ctx, fb.SessionID, func(s *SessionState) error {
		s.ApplyFeedback(fb.AcceptedItemIDs, categoryOf, fb.OccurredAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply feedback to session %s: %w", fb.SessionID, err)
	}

	e.observer.ObserveFeedback(len(fb.AcceptedItemIDs))
	return nil
}

// SetDiet sets the session dietary toggle outside a ranking request.
func (e *Engine) SetDiet(ctx context.Context, sessionID string, mode DietMode) error {
	if sessionID == "" {
		return NewValidationError("session_id", "required")
	}
	now := e.now()
	return e.comp.Sessions.Do(ctx, sessionID, func(s *SessionState) error {
		s.DietToggle = mode
		s.UpdatedAt = now
		return nil
	})
}

// EndSession destroys the session and any per-session caches.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return NewValidationError("session_id", "required")
	}
	if ev, ok := e.comp.Trajectory.(SessionEvictor); ok {
		ev.EvictSession(sessionID)
	}
	if err := e.comp.Sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

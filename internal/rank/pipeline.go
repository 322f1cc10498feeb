// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

import (
	"context"
	"time"
)

// FilterResult is the output of the filter chain.
type FilterResult struct {
	// Eligible is the pool after all enabled stages.
	Eligible []*Item

	// Rejected counts rejections per stage name.
	Rejected map[string]int
}

// FilterChain prunes the restaurant menu to the eligible pool.
type FilterChain interface {
	Apply(t *Turn) FilterResult
}

// RetrievalResult is the output of candidate retrieval.
type RetrievalResult struct {
	// Candidates are sorted by descending similarity.
	Candidates []*Candidate

	// NoCandidates is set when the pool or the result is empty.
	NoCandidates bool

	// Missing lists pool items excluded for lack of an embedding.
	Missing []error
}

// Retriever selects candidates from the eligible pool.
type Retriever interface {
	Retrieve(ctx context.Context, t *Turn, pool []*Item) (RetrievalResult, error)
}

// TrajectoryProvider returns the trajectory vector for the turn's cart. On
// failure it returns a zero vector together with a ModelUnavailableError.
type TrajectoryProvider interface {
	Vector(ctx context.Context, t *Turn) ([]float64, error)
}

// SessionEvictor is implemented by components holding per-session caches.
type SessionEvictor interface {
	EvictSession(sessionID string)
}

// FeatureAssembler fills Candidate.Features.
type FeatureAssembler interface {
	Assemble(ctx context.Context, t *Turn, candidates []*Candidate, trajectory []float64) error
}

// ScoreReport summarizes one scoring pass.
type ScoreReport struct {
	// Fallbacks lists heads that fell back to their neutral value.
	Fallbacks []string

	// Weights are the weights used.
	Weights ScoreWeights
}

// Scorer evaluates the heads, sets Candidate.Score and sorts candidates in place.
type Scorer interface {
	Score(ctx context.Context, t *Turn, candidates []*Candidate) ScoreReport
}

// PostRanker applies the business rules to a scored, sorted list.
type PostRanker interface {
	Process(t *Turn, ranked []*Candidate) ([]*Candidate, PostRankStats)
}

// PositionAssembler turns an ordered list into the output rail. With
// degraded set it keeps the given order and skips the discount override.
// The boolean result reports a distance-to-discount override.
type PositionAssembler interface {
	Assemble(t *Turn, ranked []*Candidate, degraded bool) ([]RankedSlot, bool)
}

// CatalogProvider returns the current catalog snapshot, or nil.
type CatalogProvider interface {
	Current() *Catalog
}

// SessionStore owns session state. Do loads (or creates) the session, runs
// fn while holding the session's lock and persists the result when fn
// returns nil. Calls for different sessions never block each other.
type SessionStore interface {
	Do(ctx context.Context, sessionID string, fn func(s *SessionState) error) error
	Delete(ctx context.Context, sessionID string) error
}

// Observer receives pipeline measurements.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	ObserveRank(resp *Response, d time.Duration)
	ObserveFeedback(accepted int)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration) {}
func (nopObserver) ObserveRank(*Response, time.Duration) {}
func (nopObserver) ObserveFeedback(int) {}

// Components are the injected pipeline stages and collaborators.
type Components struct {
	Catalog    CatalogProvider
	Sessions   SessionStore
	Filters    FilterChain
	Retriever  Retriever
	Trajectory TrajectoryProvider
	Features   FeatureAssembler
	Scorer     Scorer
	PostRanker PostRanker
	Positioner PositionAssembler

	// Observer is optional.
	Observer Observer
}

func (c *Components) validate() error {
	switch {
	case c.Catalog == nil:
		return NewValidationError("components.catalog", "required")
	case c.Sessions == nil:
		return NewValidationError("components.sessions", "required")
	case c.Filters == nil:
		return NewValidationError("components.filters", "required")
	case c.Retriever == nil:
		return NewValidationError("components.retriever", "required")
	case c.Trajectory == nil:
		return NewValidationError("components.trajectory", "required")
	case c.Features == nil:
		return NewValidationError("components.features", "required")
	case c.Scorer == nil:
		return NewValidationError("components.scorer", "required")
	case c.PostRanker == nil:
		return NewValidationError("components.post_ranker", "required")
	case c.Positioner == nil:
		return NewValidationError("components.positioner", "required")
	}
	return nil
}

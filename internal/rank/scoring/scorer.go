// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package scoring combines five prediction heads into one business score.
//
// Each head (accept, aov, abandon, timing, anchor) is evaluated over all
// candidates in its own goroutine behind its own circuit breaker. A head
// that errors, times out, is open-circuited or returns a non-finite value
// falls back to the neutral value and is reported in ScoreReport.Fallbacks.
// Scoring itself never fails.
//
// The business score is
//
//	w1*accept + w2*aov_norm - w3*abandon + w4*timing + w5*anchor + bonuses
//
// with the weight set chosen by peak mode and held in a WeightStore that can
// be replaced at runtime.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Breakdown keys for bonus terms.
const (
	BonusLowPrep           = "bonus_low_prep"
	BonusPremiumComplement = "bonus_premium_complement"
	BonusImpulse           = "bonus_impulse"
	BonusSoftVeg           = "bonus_soft_veg"
)

// bonusKeys fixes the order bonus terms are added in.
var bonusKeys = []string{BonusLowPrep, BonusPremiumComplement, BonusImpulse, BonusSoftVeg}

// errNonFinite marks a head output that is NaN or infinite.
var errNonFinite = errors.New("non-finite head output")

// StateHook is called when a head breaker changes state.
type StateHook func(head, from, to string)

// Option configures a Scorer.
type Option func(*Scorer)

// WithStateHook registers a breaker state-change hook.
func WithStateHook(h StateHook) Option {
	return func(s *Scorer) {
		s.stateHook = h
	}
}

type headSet struct {
	heads   map[string]Head
	version int
}

// Scorer implements rank.Scorer.
type Scorer struct {
	cfg       rank.ScoringConfig
	weights   *WeightStore
	heads     atomic.Pointer[headSet]
	breakers  map[string]*gobreaker.CircuitBreaker[[]float64]
	stateHook StateHook
	logger    zerolog.Logger

	fallbackCount atomic.Int64
}

var _ rank.Scorer = (*Scorer)(nil)

// NewScorer creates a scorer over the given heads. Heads missing from the
// map fall back to neutral until SetHeads installs them.
//
//nolint:gocritic // hugeParam: cfg and logger passed by value for immutability
func NewScorer(cfg rank.ScoringConfig, weights *WeightStore, heads map[string]Head, logger zerolog.Logger, opts ...Option) *Scorer {
	if weights == nil {
		weights = NewWeightStore(cfg.Weights)
	}
	s := &Scorer{
		cfg:      cfg,
		weights:  weights,
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]float64], len(rank.HeadNames)),
		logger:   logger.With().Str("component", "scoring").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, name := range rank.HeadNames {
		s.breakers[name] = gobreaker.NewCircuitBreaker[[]float64](gobreaker.Settings{
			Name:        name,
			MaxRequests: cfg.Breaker.MaxRequests,
			Timeout:     cfg.Breaker.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.Breaker.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				s.logger.Warn().
					Str("head", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("head circuit breaker state changed")
				if s.stateHook != nil {
					s.stateHook(name, from.String(), to.String())
				}
			},
		})
	}

	s.SetHeads(heads, 0)
	return s
}

// SetHeads atomically replaces the heads.
func (s *Scorer) SetHeads(heads map[string]Head, version int) {
	cp := make(map[string]Head, len(heads))
	for k, v := range heads {
		cp[k] = v
	}
	s.heads.Store(&headSet{heads: cp, version: version})
}

// HeadsVersion returns the version passed to the last SetHeads.
func (s *Scorer) HeadsVersion() int {
	return s.heads.Load().version
}

// Weights returns the weight store.
func (s *Scorer) Weights() *WeightStore {
	return s.weights
}

// BreakerStates returns the breaker state per head.
func (s *Scorer) BreakerStates() map[string]string {
	out := make(map[string]string, len(s.breakers))
	for name, cb := range s.breakers {
		out[name] = cb.State().String()
	}
	return out
}

// Fallbacks returns the cumulative number of head fallbacks.
func (s *Scorer) Fallbacks() int64 {
	return s.fallbackCount.Load()
}

// Score evaluates the heads, computes the business score and sorts the
// candidates by score, then similarity, then item id.
func (s *Scorer) Score(ctx context.Context, t *rank.Turn, candidates []*rank.Candidate) rank.ScoreReport {
	weights := s.weights.Get().For(t.Peak)
	report := rank.ScoreReport{Weights: weights}
	if len(candidates) == 0 {
		return report
	}

	set := s.heads.Load()
	outputs := make(map[string][]float64, len(rank.HeadNames))
	var (
		mu        sync.Mutex
		fallbacks []string
	)

	var g errgroup.Group
	g.SetLimit(len(rank.HeadNames))
	for _, name := range rank.HeadNames {
		g.Go(func() error {
			vals, err := s.evalHead(ctx, name, set.heads[name], candidates)
			mu.Lock()
			defer mu.Unlock()
			outputs[name] = vals
			if err != nil {
				fallbacks = append(fallbacks, name)
				s.logger.Debug().Err(err).Str("head", name).Msg("head fell back to neutral")
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // head goroutines never return errors

	sort.Strings(fallbacks)
	report.Fallbacks = fallbacks
	s.fallbackCount.Add(int64(len(fallbacks)))

	explainers := make(map[string]Explainer, len(set.heads))
	for name, h := range set.heads {
		if ex, ok := h.(Explainer); ok && !contains(fallbacks, name) {
			explainers[name] = ex
		}
	}

	for i, c := range candidates {
		for _, name := range rank.HeadNames {
			c.Heads.Set(name, outputs[name][i])
		}
		s.combine(t, c, weights)
		c.Contributions = contributions(c.Features, explainers, weights, s.cfg.AOVNormalizer)
	}

	softTiebreak := t.Diet.SoftVeg && s.cfg.SoftVeg.Mode == rank.SoftVegTiebreak
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if softTiebreak {
			av, bv := a.Item.IsVegetarian(), b.Item.IsVegetarian()
			if av != bv {
				return av
			}
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.Item.ID < b.Item.ID
	})

	return report
}

// evalHead runs one head over every candidate behind its breaker. On any
// failure it returns neutral values together with the cause.
func (s *Scorer) evalHead(ctx context.Context, name string, head Head, candidates []*rank.Candidate) ([]float64, error) {
	neutral := s.neutral(name)
	fill := func() []float64 {
		out := make([]float64, len(candidates))
		for i := range out {
			out[i] = neutral
		}
		return out
	}

	if head == nil {
		return fill(), &rank.ModelUnavailableError{Model: name, Err: errors.New("head not loaded")}
	}

	cb := s.breakers[name]
	vals, err := cb.Execute(func() ([]float64, error) {
		hctx, cancel := context.WithTimeout(ctx, s.headTimeout())
		defer cancel()

		out := make([]float64, len(candidates))
		for i, c := range candidates {
			if err := hctx.Err(); err != nil {
				return nil, err
			}
			v, err := head.Predict(hctx, c.Features)
			if err != nil {
				return nil, err
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("candidate %s: %w", c.Item.ID, errNonFinite)
			}
			out[i] = v
		}
		return out, nil
	})
	if err != nil {
		return fill(), &rank.ModelUnavailableError{Model: name, Err: err}
	}
	return vals, nil
}

func (s *Scorer) headTimeout() time.Duration {
	if s.cfg.HeadTimeout > 0 {
		return s.cfg.HeadTimeout
	}
	return 10 * time.Millisecond
}

// neutral returns the fallback output of a head in its raw scale.
func (s *Scorer) neutral(name string) float64 {
	if name == rank.HeadAOV {
		return s.cfg.NeutralValue * s.cfg.AOVNormalizer
	}
	return s.cfg.NeutralValue
}

// combine computes the business score and its breakdown.
//
//nolint:gocritic // hugeParam: w passed by value for immutability
func (s *Scorer) combine(t *rank.Turn, c *rank.Candidate, w rank.ScoreWeights) {
	aovNorm := rank.Clamp01(c.Heads.AOV / s.cfg.AOVNormalizer)

	bd := map[string]float64{
		rank.HeadAccept:  w.Accept * c.Heads.Accept,
		rank.HeadAOV:     w.AOV * aovNorm,
		rank.HeadAbandon: -w.Abandon * c.Heads.Abandon,
		rank.HeadTiming:  w.Timing * c.Heads.Timing,
		rank.HeadAnchor:  w.Anchor * c.Heads.Anchor,
	}

	b := s.cfg.Bonuses
	it := c.Item
	switch t.Peak {
	case rank.PeakLunch:
		if it.PrepTimeMins > 0 && it.PrepTimeMins <= b.LowPrepMins {
			bd[BonusLowPrep] = b.LowPrep
		}
	case rank.PeakDinner:
		if it.Category.Role() == rank.RoleComplement && it.Price >= b.PremiumPrice {
			bd[BonusPremiumComplement] = b.PremiumComplement
		}
	case rank.PeakLateNight:
		if it.Price <= b.ImpulsePrice {
			bd[BonusImpulse] = b.Impulse
		}
	}

	if t.Diet.SoftVeg && s.cfg.SoftVeg.Mode == rank.SoftVegBoost && it.IsVegetarian() {
		bd[BonusSoftVeg] = s.cfg.SoftVeg.Boost
	}

	// Summed in a fixed order so equal inputs give bit-identical scores.
	var score float64
	for _, name := range rank.HeadNames {
		score += bd[name]
	}
	for _, key := range bonusKeys {
		score += bd[key]
	}
	c.Score = score
	c.Breakdown = bd
}

// contributions attributes the score to features: each head's per-feature
// terms scaled by the head's signed weight. AOV terms are in rupees and are
// divided by the normalizer.
//
//nolint:gocritic // hugeParam: w passed by value for immutability
func contributions(f rank.Features, explainers map[string]Explainer, w rank.ScoreWeights, normalizer float64) map[string]float64 {
	signed := map[string]float64{
		rank.HeadAccept:  w.Accept,
		rank.HeadAOV:     w.AOV / normalizer,
		rank.HeadAbandon: -w.Abandon,
		rank.HeadTiming:  w.Timing,
		rank.HeadAnchor:  w.Anchor,
	}

	out := make(map[string]float64)
	for name, ex := range explainers {
		sw := signed[name]
		if sw == 0 {
			continue
		}
		for feat, v := range ex.Contributions(f) {
			out[feat] += sw * v
		}
	}
	return out
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

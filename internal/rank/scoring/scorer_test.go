// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package scoring

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/rank"
	"github.com/tomtom215/addonrail/internal/rank/features"
	"github.com/tomtom215/addonrail/internal/rank/storage"
	"github.com/tomtom215/addonrail/internal/testinfra"
)

// constHead returns a fixed value, or an error when err is set.
type constHead struct {
	name  string
	value float64
	err   error
	calls atomic.Int64
}

func (h *constHead) Name() string { return h.name }

func (h *constHead) Predict(_ context.Context, _ rank.Features) (float64, error) {
	h.calls.Add(1)
	if h.err != nil {
		return 0, h.err
	}
	return h.value, nil
}

// featureHead returns one feature value.
type featureHead struct {
	name    string
	feature string
}

func (h *featureHead) Name() string { return h.name }

func (h *featureHead) Predict(_ context.Context, f rank.Features) (float64, error) {
	return f[h.feature], nil
}

// slowHead blocks until the context is done.
type slowHead struct{ name string }

func (h *slowHead) Name() string { return h.name }

func (h *slowHead) Predict(ctx context.Context, _ rank.Features) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func constHeads(v float64) map[string]Head {
	out := make(map[string]Head, len(rank.HeadNames))
	for _, n := range rank.HeadNames {
		val := v
		if n == rank.HeadAOV {
			val = v * 200
		}
		out[n] = &constHead{name: n, value: val}
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testConfig() rank.ScoringConfig {
	return rank.DefaultConfig().Scoring
}

func TestScore_Formula(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	heads := map[string]Head{
		rank.HeadAccept:  &constHead{name: rank.HeadAccept, value: 0.8},
		rank.HeadAOV:     &constHead{name: rank.HeadAOV, value: 100},
		rank.HeadAbandon: &constHead{name: rank.HeadAbandon, value: 0.2},
		rank.HeadTiming:  &constHead{name: rank.HeadTiming, value: 0.6},
		rank.HeadAnchor:  &constHead{name: rank.HeadAnchor, value: 0.4},
	}
	s := NewScorer(cfg, nil, heads, zerolog.Nop())

	cat := testinfra.Catalog()
	// 17:00 has no peak mode so the default weights apply.
	turn := testinfra.NewTurn(cat, []string{"I001"}, testinfra.WithNow(time.Date(2026, 3, 4, 17, 0, 0, 0, time.UTC)))
	cands := testinfra.Candidates(testinfra.MustItems(cat, "I040")...)

	report := s.Score(context.Background(), turn, cands)
	if len(report.Fallbacks) != 0 {
		t.Fatalf("Fallbacks = %v, want none", report.Fallbacks)
	}

	w := cfg.Weights.Default
	want := w.Accept*0.8 + w.AOV*0.5 - w.Abandon*0.2 + w.Timing*0.6 + w.Anchor*0.4
	if !approx(cands[0].Score, want) {
		t.Errorf("Score = %f, want %f", cands[0].Score, want)
	}
	if report.Weights != w {
		t.Errorf("report weights = %+v, want default %+v", report.Weights, w)
	}
	if !approx(cands[0].Breakdown[rank.HeadAbandon], -w.Abandon*0.2) {
		t.Errorf("abandon term = %f, want negative weighted value", cands[0].Breakdown[rank.HeadAbandon])
	}
	if cands[0].Heads.AOV != 100 {
		t.Errorf("Heads.AOV = %f, want raw 100", cands[0].Heads.AOV)
	}
}

func TestScore_AOVNormalizationClamps(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	heads := constHeads(0)
	heads[rank.HeadAOV] = &constHead{name: rank.HeadAOV, value: 900}
	s := NewScorer(cfg, nil, heads, zerolog.Nop())

	cat := testinfra.Catalog()
	turn := testinfra.NewTurn(cat, []string{"I001"}, testinfra.WithNow(time.Date(2026, 3, 4, 17, 0, 0, 0, time.UTC)))
	cands := testinfra.Candidates(testinfra.MustItems(cat, "I040")...)
	s.Score(context.Background(), turn, cands)

	if got, want := cands[0].Breakdown[rank.HeadAOV], cfg.Weights.Default.AOV; !approx(got, want) {
		t.Errorf("aov term = %f, want %f (clamped to 1)", got, want)
	}
}

func TestScore_FailingHeadFallsBack(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	heads := constHeads(0.9)
	heads[rank.HeadAccept] = &constHead{name: rank.HeadAccept, err: errors.New("model crashed")}
	s := NewScorer(cfg, nil, heads, zerolog.Nop())

	cat := testinfra.Catalog()
	turn := testinfra.NewTurn(cat, []string{"I001"})
	cands := testinfra.Candidates(testinfra.MustItems(cat, "I040", "I020")...)

	report := s.Score(context.Background(), turn, cands)
	if len(report.Fallbacks) != 1 || report.Fallbacks[0] != rank.HeadAccept {
		t.Fatalf("Fallbacks = %v, want [accept]", report.Fallbacks)
	}
	for _, c := range cands {
		if c.Heads.Accept != cfg.NeutralValue {
			t.Errorf("%s accept = %f, want neutral %f", c.Item.ID, c.Heads.Accept, cfg.NeutralValue)
		}
		if c.Heads.Timing != 0.9 {
			t.Errorf("%s timing = %f, want 0.9 from healthy head", c.Item.ID, c.Heads.Timing)
		}
	}
	if s.Fallbacks() != 1 {
		t.Errorf("Fallbacks() = %d, want 1", s.Fallbacks())
	}
}

func TestScore_NonFiniteOutputFallsBack(t *testing.T) {
	t.Parallel()

	heads := constHeads(0.5)
	heads[rank.HeadTiming] = &constHead{name: rank.HeadTiming, value: math.NaN()}
	s := NewScorer(testConfig(), nil, heads, zerolog.Nop())

	cat := testinfra.Catalog()
	cands := testinfra.Candidates(testinfra.MustItems(cat, "I040")...)
	report := s.Score(context.Background(), testinfra.NewTurn(cat, []string{"I001"}), cands)

	if len(report.Fallbacks) != 1 || report.Fallbacks[0] != rank.HeadTiming {
		t.Fatalf("Fallbacks = %v, want [timing]", report.Fallbacks)
	}
	if math.IsNaN(cands[0].Score) {
		t.Error("Score is NaN")
	}
}

func TestScore_MissingHeadFallsBack(t *testing.T) {
	t.Parallel()

	heads := constHeads(0.5)
	delete(heads, rank.HeadAnchor)
	s := NewScorer(testConfig(), nil, heads, zerolog.Nop())

	cat := testinfra.Catalog()
	cands := testinfra.Candidates(testinfra.MustItems(cat, "I040")...)
	report := s.Score(context.Background(), testinfra.NewTurn(cat, nil), cands)

	if len(report.Fallbacks) != 1 || report.Fallbacks[0] != rank.HeadAnchor {
		t.Errorf("Fallbacks = %v, want [anchor]", report.Fallbacks)
	}
}

func TestScore_SlowHeadTimesOut(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.HeadTimeout = 5 * time.Millisecond
	heads := constHeads(0.5)
	heads[rank.HeadAbandon] = &slowHead{name: rank.HeadAbandon}
	s := NewScorer(cfg, nil, heads, zerolog.Nop())

	cat := testinfra.Catalog()
	cands := testinfra.Candidates(testinfra.MustItems(cat, "I040")...)
	report := s.Score(context.Background(), testinfra.NewTurn(cat, nil), cands)

	if len(report.Fallbacks) != 1 || report.Fallbacks[0] != rank.HeadAbandon {
		t.Errorf("Fallbacks = %v, want [abandon]", report.Fallbacks)
	}
	if cands[0].Heads.Abandon != cfg.NeutralValue {
		t.Errorf("abandon = %f, want neutral", cands[0].Heads.Abandon)
	}
}

func TestScore_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	failing := &constHead{name: rank.HeadAccept, err: errors.New("boom")}
	heads := constHeads(0.5)
	heads[rank.HeadAccept] = failing

	var transitions atomic.Int64
	s := NewScorer(cfg, nil, heads, zerolog.Nop(), WithStateHook(func(head, _, to string) {
		if head == rank.HeadAccept && to == "open" {
			transitions.Add(1)
		}
	}))

	cat := testinfra.Catalog()
	turn := testinfra.NewTurn(cat, nil)
	for i := 0; i < int(cfg.Breaker.FailureThreshold); i++ {
		s.Score(context.Background(), turn, testinfra.Candidates(testinfra.MustItems(cat, "I040")...))
	}
	if got := s.BreakerStates()[rank.HeadAccept]; got != "open" {
		t.Fatalf("breaker state = %s, want open", got)
	}
	if transitions.Load() != 1 {
		t.Errorf("state hook saw %d open transitions, want 1", transitions.Load())
	}

	calls := failing.calls.Load()
	report := s.Score(context.Background(), turn, testinfra.Candidates(testinfra.MustItems(cat, "I040")...))
	if failing.calls.Load() != calls {
		t.Error("open breaker still invoked the head")
	}
	if len(report.Fallbacks) != 1 || report.Fallbacks[0] != rank.HeadAccept {
		t.Errorf("Fallbacks = %v, want [accept]", report.Fallbacks)
	}
	if got := s.BreakerStates()[rank.HeadTiming]; got != "closed" {
		t.Errorf("healthy breaker state = %s, want closed", got)
	}
}

func TestScore_PeakBonuses(t *testing.T) {
	t.Parallel()

	cat := testinfra.Catalog()
	cfg := testConfig()
	s := NewScorer(cfg, nil, constHeads(0.5), zerolog.Nop())

	lunch := time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC)
	dinner := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 4, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		now   time.Time
		item  string
		bonus string
		want  bool
	}{
		{"lunch low prep", lunch, "I020", BonusLowPrep, true},
		{"lunch slow prep", lunch, "I001", BonusLowPrep, false},
		{"dinner premium complement", dinner, "I011", BonusPremiumComplement, true},
		{"dinner cheap complement", dinner, "I010", BonusPremiumComplement, false},
		{"dinner premium side", dinner, "I035", BonusPremiumComplement, false},
		{"late night impulse", late, "I051", BonusImpulse, true},
		{"late night expensive", late, "I053", BonusImpulse, false},
		{"no bonus outside its peak", lunch, "I051", BonusImpulse, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			turn := testinfra.NewTurn(cat, []string{"I001"}, testinfra.WithNow(tt.now))
			cands := testinfra.Candidates(testinfra.MustItems(cat, tt.item)...)
			s.Score(context.Background(), turn, cands)

			_, got := cands[0].Breakdown[tt.bonus]
			if got != tt.want {
				t.Errorf("bonus %s present = %v, want %v (breakdown %v)", tt.bonus, got, tt.want, cands[0].Breakdown)
			}
		})
	}
}

func TestScore_SoftVegTiebreak(t *testing.T) {
	t.Parallel()

	cat := testinfra.Catalog()
	s := NewScorer(testConfig(), nil, constHeads(0.5), zerolog.Nop())

	// All-veg cart, no toggle, no veg day for U00001 on Wednesday.
	turn := testinfra.NewTurn(cat, []string{"I001"})
	if !turn.Diet.SoftVeg {
		t.Fatal("fixture turn is not soft veg")
	}
	// Chicken tikka is retrieved first but ties on score.
	cands := testinfra.Candidates(testinfra.MustItems(cat, "I036", "I035")...)
	s.Score(context.Background(), turn, cands)

	if cands[0].Item.ID != "I035" {
		t.Errorf("first = %s, want veg I035 on a score tie", cands[0].Item.ID)
	}
}

func TestScore_SoftVegBoost(t *testing.T) {
	t.Parallel()

	cat := testinfra.Catalog()
	cfg := testConfig()
	cfg.SoftVeg.Mode = rank.SoftVegBoost
	s := NewScorer(cfg, nil, constHeads(0.5), zerolog.Nop())

	turn := testinfra.NewTurn(cat, []string{"I001"})
	cands := testinfra.Candidates(testinfra.MustItems(cat, "I036", "I035")...)
	s.Score(context.Background(), turn, cands)

	if cands[0].Item.ID != "I035" {
		t.Fatalf("first = %s, want boosted I035", cands[0].Item.ID)
	}
	if !approx(cands[0].Score-cands[1].Score, cfg.SoftVeg.Boost) {
		t.Errorf("score gap = %f, want boost %f", cands[0].Score-cands[1].Score, cfg.SoftVeg.Boost)
	}
}

func TestCombine_BitIdenticalAcrossCalls(t *testing.T) {
	t.Parallel()

	cat := testinfra.Catalog()
	cfg := testConfig()
	cfg.SoftVeg.Mode = rank.SoftVegBoost
	s := NewScorer(cfg, nil, constHeads(0.5), zerolog.Nop())

	late := time.Date(2026, 3, 4, 23, 30, 0, 0, time.UTC)
	turn := testinfra.NewTurn(cat, []string{"I001"}, testinfra.WithNow(late))
	weights := s.Weights().Get().For(turn.Peak)
	rng := rand.New(rand.NewPCG(7, 11))

	for _, id := range []string{"I051", "I020", "I035"} {
		for range 500 {
			c := testinfra.Candidates(testinfra.MustItems(cat, id)...)[0]
			c.Heads = rank.HeadScores{
				Accept:  rng.Float64(),
				AOV:     rng.Float64() * 400,
				Abandon: rng.Float64(),
				Timing:  rng.Float64(),
				Anchor:  rng.Float64(),
			}
			s.combine(turn, c, weights)
			want := math.Float64bits(c.Score)

			var ordered float64
			for _, name := range rank.HeadNames {
				ordered += c.Breakdown[name]
			}
			for _, key := range bonusKeys {
				ordered += c.Breakdown[key]
			}
			if math.Float64bits(ordered) != want {
				t.Fatalf("%s: score %v != ordered breakdown sum %v", id, c.Score, ordered)
			}

			for range 30 {
				s.combine(turn, c, weights)
				if got := math.Float64bits(c.Score); got != want {
					t.Fatalf("%s: score bits changed between calls: %x != %x", id, got, want)
				}
			}
		}
	}
}

func TestScore_DeterministicOrder(t *testing.T) {
	t.Parallel()

	cat := testinfra.Catalog()
	s := NewScorer(testConfig(), nil, constHeads(0.5), zerolog.Nop())
	turn := testinfra.NewTurn(cat, []string{"I002"})

	items := testinfra.MustItems(cat, "I044", "I041", "I042")
	cands := testinfra.Candidates(items...)
	// Equal similarity for the last two falls through to item id.
	cands[2].Similarity = cands[1].Similarity
	s.Score(context.Background(), turn, cands)

	want := []string{"I044", "I041", "I042"}
	for i, id := range want {
		if cands[i].Item.ID != id {
			t.Errorf("position %d = %s, want %s", i, cands[i].Item.ID, id)
		}
	}
}

func TestScore_WeightSwapTakesEffect(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	store := NewWeightStore(cfg.Weights)
	heads := map[string]Head{
		rank.HeadAccept:  &featureHead{name: rank.HeadAccept, feature: features.ItemMargin},
		rank.HeadAOV:     &featureHead{name: rank.HeadAOV, feature: features.ItemPrice},
		rank.HeadAbandon: &constHead{name: rank.HeadAbandon, value: 0},
		rank.HeadTiming:  &constHead{name: rank.HeadTiming, value: 0},
		rank.HeadAnchor:  &constHead{name: rank.HeadAnchor, value: 0},
	}
	s := NewScorer(cfg, store, heads, zerolog.Nop())

	cat := testinfra.Catalog()
	turn := testinfra.NewTurn(cat, []string{"I001"}, testinfra.WithNow(time.Date(2026, 3, 4, 17, 0, 0, 0, time.UTC)))
	build := func() []*rank.Candidate {
		// Lassi: high margin, low price. Biryani: lower margin, high price.
		cands := testinfra.Candidates(testinfra.MustItems(cat, "I040", "I011")...)
		for _, c := range cands {
			c.Features[features.ItemMargin] = c.Item.MarginPct / 100
			c.Features[features.ItemPrice] = c.Item.Price
		}
		return cands
	}

	acceptOnly := rank.ScoreWeights{Accept: 1}
	if _, err := store.Set(rank.WeightSet{Default: acceptOnly, Lunch: acceptOnly, Dinner: acceptOnly, LateNight: acceptOnly}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	cands := build()
	s.Score(context.Background(), turn, cands)
	if cands[0].Item.ID != "I040" {
		t.Fatalf("accept-only first = %s, want I040", cands[0].Item.ID)
	}

	aovOnly := rank.ScoreWeights{AOV: 1}
	if _, err := store.Set(rank.WeightSet{Default: aovOnly, Lunch: aovOnly, Dinner: aovOnly, LateNight: aovOnly}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	cands = build()
	s.Score(context.Background(), turn, cands)
	if cands[0].Item.ID != "I011" {
		t.Errorf("aov-only first = %s, want I011", cands[0].Item.ID)
	}
	if store.Version() != 2 {
		t.Errorf("Version() = %d, want 2", store.Version())
	}
}

func TestWeightStore_RejectsInvalid(t *testing.T) {
	t.Parallel()

	store := NewWeightStore(rank.DefaultConfig().Scoring.Weights)
	bad := rank.DefaultConfig().Scoring.Weights
	bad.Dinner.AOV = -1
	if _, err := store.Set(bad); err == nil {
		t.Fatal("Set() accepted a negative weight")
	}
	if store.Get().Dinner.AOV != rank.DefaultConfig().Scoring.Weights.Dinner.AOV {
		t.Error("invalid weights were installed")
	}
	if store.Version() != 0 {
		t.Errorf("Version() = %d, want 0", store.Version())
	}
}

func TestScore_ContributionsFromLinearHeads(t *testing.T) {
	t.Parallel()

	heads, err := BuildHeads(DefaultHeadStates())
	if err != nil {
		t.Fatalf("BuildHeads() error = %v", err)
	}
	s := NewScorer(testConfig(), nil, heads, zerolog.Nop())

	cat := testinfra.Catalog()
	turn := testinfra.NewTurn(cat, []string{"I001"})
	cands := testinfra.Candidates(testinfra.MustItems(cat, "I040")...)
	cands[0].Features[features.PairingScore] = 0.9
	cands[0].Features[features.FillsGap] = 1

	s.Score(context.Background(), turn, cands)

	if cands[0].Contributions[features.PairingScore] <= 0 {
		t.Errorf("pairing contribution = %f, want positive", cands[0].Contributions[features.PairingScore])
	}
	if _, ok := cands[0].Contributions[features.ItemPopularity]; ok {
		t.Error("zero-valued feature has a contribution")
	}
}

func TestLinearHead(t *testing.T) {
	t.Parallel()

	h, err := NewLinearHead(storage.HeadState{
		Name:    "accept",
		Link:    storage.LinkLogistic,
		Bias:    0,
		Weights: map[string]float64{"a": 1, "b": -1},
	})
	if err != nil {
		t.Fatalf("NewLinearHead() error = %v", err)
	}
	v, _ := h.Predict(context.Background(), rank.Features{"a": 2, "b": 2})
	if !approx(v, 0.5) {
		t.Errorf("Predict() = %f, want 0.5", v)
	}

	id, err := NewLinearHead(storage.HeadState{Name: "aov", Link: storage.LinkIdentity, Bias: 10, Weights: map[string]float64{"p": 2}})
	if err != nil {
		t.Fatalf("NewLinearHead() error = %v", err)
	}
	if v, _ := id.Predict(context.Background(), rank.Features{"p": 5}); v != 20 {
		t.Errorf("identity Predict() = %f, want 20", v)
	}

	if _, err := NewLinearHead(storage.HeadState{Name: "x", Link: storage.LinkIdentity, Weights: map[string]float64{"p": math.Inf(1)}}); err == nil {
		t.Error("NewLinearHead() accepted an infinite weight")
	}
}

func TestScore_SetHeadsSwaps(t *testing.T) {
	t.Parallel()

	s := NewScorer(testConfig(), nil, nil, zerolog.Nop())
	cat := testinfra.Catalog()
	turn := testinfra.NewTurn(cat, nil)

	report := s.Score(context.Background(), turn, testinfra.Candidates(testinfra.MustItems(cat, "I040")...))
	if len(report.Fallbacks) != len(rank.HeadNames) {
		t.Fatalf("Fallbacks = %v, want all heads", report.Fallbacks)
	}

	s.SetHeads(constHeads(0.5), 3)
	report = s.Score(context.Background(), turn, testinfra.Candidates(testinfra.MustItems(cat, "I040")...))
	if len(report.Fallbacks) != 0 {
		t.Errorf("Fallbacks after SetHeads = %v, want none", report.Fallbacks)
	}
	if s.HeadsVersion() != 3 {
		t.Errorf("HeadsVersion() = %d, want 3", s.HeadsVersion())
	}
}

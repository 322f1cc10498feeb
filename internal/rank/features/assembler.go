// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package features fuses static, dynamic and trajectory signals into one
// flat feature record per candidate.
//
// Static features come from an immutable Snapshot held by a StaticStore and
// refreshed out-of-band (optionally overlaid from Redis). Dynamic features
// are computed fresh for every turn from the cart, the session and the
// request time. Trajectory features copy the encoder output. Any missing
// static value falls back to NeutralDefaults.
package features

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Assembler implements rank.FeatureAssembler.
type Assembler struct {
	cfg    rank.FeatureConfig
	static *StaticStore
	logger zerolog.Logger
}

var _ rank.FeatureAssembler = (*Assembler)(nil)

// NewAssembler creates a feature assembler.
//
//nolint:gocritic // hugeParam: cfg and logger passed by value for immutability
func NewAssembler(cfg rank.FeatureConfig, static *StaticStore, logger zerolog.Logger) *Assembler {
	return &Assembler{
		cfg:    cfg,
		static: static,
		logger: logger.With().Str("component", "features").Logger(),
	}
}

// Assemble fills Features for every candidate. It only fails when the
// context is done or no static snapshot is loaded; in the latter case the
// features are still filled with neutral defaults.
func (a *Assembler) Assemble(ctx context.Context, t *rank.Turn, candidates []*rank.Candidate, trajectory []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var snap *Snapshot
	if a.static != nil {
		snap = a.static.Current()
	}

	shared := a.turnFeatures(t, snap)
	gaps := gapCategories(t)
	gap, hasGap := rank.NextThreshold(t.Restaurant, t.CartValue)
	first := t.FirstItem()
	trajNorm := norm64(trajectory)

	misses := 0
	for _, c := range candidates {
		if c.Features == nil {
			c.Features = make(rank.Features, len(shared)+32+len(trajectory))
		}
		f := c.Features
		for k, v := range shared {
			f[k] = v
		}

		it := c.Item
		static, ok := rank.Features(nil), false
		if snap != nil {
			static, ok = snap.Item(it.ID)
		}
		if !ok {
			misses++
			static = itemFeatures(it)
			for _, name := range []string{ItemPopularity, ItemBestseller, ItemAddonRate} {
				static[name] = Neutral(name)
			}
		}
		for k, v := range static {
			f[k] = v
		}
		f[ItemMealPopularity] = static.Get(MealPopularity(t.MealPeriod), static.Get(ItemPopularity, Neutral(ItemPopularity)))

		f[CandidateCategory(it.Category)] = 1
		f[FillsGap] = boolFeature(gaps[it.Category])
		f[PairingScore] = CartPairingScore(t, it.Category)
		f[PriceAnchorRatio] = Neutral(PriceAnchorRatio)
		if first != nil && first.Price > 0 {
			f[PriceAnchorRatio] = it.Price / first.Price
		}
		f[SeasonalWeight] = a.seasonalWeight(it.Category, t)
		f[Similarity] = c.Similarity

		if hasGap {
			c.Overshoot = gap.Overshoot(it.Price)
			c.ClosesGap = it.Price >= gap.Gap
			f[D2DClosesGap] = boolFeature(c.ClosesGap)
			f[D2DOvershoot] = c.Overshoot
		}

		for i, v := range trajectory {
			f[Trajectory(i)] = v
		}
		f[TrajAffinity] = cosine(trajectory, trajNorm, it.Embedding)
	}

	if misses > 0 {
		a.logger.Debug().
			Str("request_id", t.Request.RequestID).
			Int("misses", misses).
			Msg("static item features missing, using neutral defaults")
	}
	if snap == nil {
		return &rank.DataUnavailableError{Kind: "static_feature", Key: "snapshot"}
	}
	return nil
}

// turnFeatures computes the features shared by every candidate of the turn.
func (a *Assembler) turnFeatures(t *rank.Turn, snap *Snapshot) rank.Features {
	f := make(rank.Features, 48)

	user, ok := rank.Features(nil), false
	if snap != nil && t.User != nil {
		user, ok = snap.User(t.User.ID)
	}
	if !ok {
		for _, name := range []string{UserRecency, UserFrequency, UserMonetary, UserAOV, UserOrderCount} {
			f[name] = Neutral(name)
		}
	}
	for k, v := range user {
		f[k] = v
	}

	rest, ok := rank.Features(nil), false
	if snap != nil && t.Restaurant != nil {
		rest, ok = snap.Restaurant(t.Restaurant.ID)
	}
	if !ok {
		f[RestPrepTime] = Neutral(RestPrepTime)
		f[RestPriceTier] = Neutral(RestPriceTier)
	}
	for k, v := range rest {
		f[k] = v
	}

	cats := t.EffectiveCategories()
	for c := range cats {
		f[EffectiveCategory(c)] = 1
	}
	f[CartStage] = float64(CartStageOf(cats))
	f[CartValue] = t.CartValue
	f[CartSize] = float64(t.TotalQuantity())
	nonEmpty := len(t.Lines) > 0
	f[GapBeverage] = boolFeature(nonEmpty && !cats[rank.CategoryBeverage])
	f[GapDessert] = boolFeature(nonEmpty && !cats[rank.CategoryDessert])
	f[GapBread] = boolFeature(nonEmpty && !cats[rank.CategoryBread])

	f[SecsSinceAdd] = t.IdleTime.Seconds()
	f[ConsecutiveRejections] = float64(t.Session.ConsecutiveRejections)
	f[AbandonmentRisk] = t.Risk

	if gap, ok := rank.NextThreshold(t.Restaurant, t.CartValue); ok {
		f[D2DGap] = gap.Gap
		f[D2DProximity] = gap.Proximity
	}

	f[PeakLunch] = boolFeature(t.Peak == rank.PeakLunch)
	f[PeakDinner] = boolFeature(t.Peak == rank.PeakDinner)
	f[PeakLateNight] = boolFeature(t.Peak == rank.PeakLateNight)

	f[VegDay] = boolFeature(t.User != nil && t.User.IsVegDay(t.Now.Weekday()))
	f[SoftVegPref] = boolFeature(t.Diet.SoftVeg)
	return f
}

// CartStageOf returns 0 with no main, 1 with a main, 2 with a main and a carb,
// and 3 when a side, beverage or dessert is also present.
func CartStageOf(cats map[rank.Category]bool) int {
	if !cats[rank.CategoryMain] {
		return 0
	}
	if !cats[rank.CategoryRice] && !cats[rank.CategoryBread] {
		return 1
	}
	if cats[rank.CategorySide] || cats[rank.CategoryBeverage] || cats[rank.CategoryDessert] {
		return 3
	}
	return 2
}

// gapCategories returns the categories missing from a non-empty cart that a
// candidate can fill.
func gapCategories(t *rank.Turn) map[rank.Category]bool {
	gaps := make(map[rank.Category]bool, 3)
	if len(t.Lines) == 0 {
		return gaps
	}
	cats := t.EffectiveCategories()
	for _, c := range []rank.Category{rank.CategoryBeverage, rank.CategoryDessert, rank.CategoryBread} {
		if !cats[c] {
			gaps[c] = true
		}
	}
	return gaps
}

func (a *Assembler) seasonalWeight(c rank.Category, t *rank.Turn) float64 {
	month := int(t.Now.Month())
	switch {
	case c == rank.CategoryBeverage && containsInt(a.cfg.SummerMonths, month):
		return a.cfg.SummerBeverageWeight
	case c == rank.CategoryDessert && containsInt(a.cfg.WinterMonths, month):
		return a.cfg.WinterDessertWeight
	default:
		return 1
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func norm64(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

// cosine returns the cosine similarity of a trajectory and an embedding, or
// 0 when the dimensions differ or either vector is zero.
func cosine(traj []float64, trajNorm float64, emb []float32) float64 {
	if len(traj) == 0 || len(traj) != len(emb) || trajNorm == 0 {
		return 0
	}
	var dot, en float64
	for i, x := range emb {
		dot += traj[i] * float64(x)
		en += float64(x) * float64(x)
	}
	if en == 0 {
		return 0
	}
	return dot / (trajNorm * math.Sqrt(en))
}

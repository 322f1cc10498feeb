// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package filters

import (
	"math"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Availability rejects out-of-stock items, items under the margin floor and
// items whose active promotion was priced against a stale catalog price.
type Availability struct {
	MinMarginPct float64
}

// Name returns the stage name.
func (s *Availability) Name() string { return StageAvailability }

// Prepare returns the availability predicate.
func (s *Availability) Prepare(_ *rank.Turn, _ []*rank.Item) func(*rank.Item) bool {
	return func(it *rank.Item) bool {
		if !it.Available {
			return false
		}
		if it.MarginPct < s.MinMarginPct {
			return false
		}
		if p := it.Promotion; p != nil && p.Active && math.Abs(p.BasePrice-it.Price) > 0.005 {
			return false
		}
		return true
	}
}

// Dietary enforces the turn's resolved diet decision. It has nothing to
// enforce unless the decision is a hard veg or vegan filter.
type Dietary struct{}

// Name returns the stage name.
func (s *Dietary) Name() string { return StageDietary }

// Prepare returns the diet predicate, or nil when no hard filter applies.
func (s *Dietary) Prepare(t *rank.Turn, _ []*rank.Item) func(*rank.Item) bool {
	if !t.Diet.HardFilter() {
		return nil
	}
	diet := t.Diet
	return diet.Allows
}

// Cuisine keeps items of the cart's plurality cuisine and, for combo carts,
// drops items whose role the combo already covers.
type Cuisine struct{}

// Name returns the stage name.
func (s *Cuisine) Name() string { return StageCuisine }

// Prepare resolves the target cuisine against the incoming pool.
func (s *Cuisine) Prepare(t *rank.Turn, pool []*rank.Item) func(*rank.Item) bool {
	target := PluralityCuisine(t)
	// No pooled item shares the cart's cuisine, so the per-item check would
	// reject everything. Anchor on the restaurant's primary cuisine instead.
	if !poolHasCuisine(pool, target) {
		target = t.Restaurant.PrimaryCuisine
	}

	coveredSubs := make(map[string]bool)
	coveredStaples := make(map[rank.Category]bool)
	for _, l := range t.ComboLines() {
		coveredStaples[rank.CategoryCombo] = true
		for _, sub := range l.Item.ComboComponents {
			coveredSubs[sub] = true
			if cat, ok := t.Catalog.CategoryOf(sub); ok && cat.IsStaple() {
				coveredStaples[cat] = true
			}
		}
	}

	return func(it *rank.Item) bool {
		if target != "" && !it.HasCuisine(target) {
			return false
		}
		if len(coveredStaples) == 0 {
			return true
		}
		if coveredSubs[it.Subcategory] {
			return false
		}
		if it.Category.IsStaple() && coveredStaples[it.Category] {
			return false
		}
		return true
	}
}

// PluralityCuisine returns the most frequent primary cuisine across cart
// lines, breaking ties by the earliest-added line. An empty cart yields the
// restaurant's primary cuisine.
func PluralityCuisine(t *rank.Turn) string {
	if len(t.Lines) == 0 {
		return t.Restaurant.PrimaryCuisine
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, l := range t.Lines {
		c := l.Item.PrimaryCuisine()
		if c == "" {
			continue
		}
		counts[c]++
		if _, ok := firstSeen[c]; !ok {
			firstSeen[c] = i
		}
	}
	if len(counts) == 0 {
		return t.Restaurant.PrimaryCuisine
	}

	best, bestCount, bestFirst := "", -1, math.MaxInt
	for c, n := range counts {
		if n > bestCount || (n == bestCount && firstSeen[c] < bestFirst) {
			best, bestCount, bestFirst = c, n, firstSeen[c]
		}
	}
	return best
}

func poolHasCuisine(pool []*rank.Item, cuisine string) bool {
	for _, it := range pool {
		if it.HasCuisine(cuisine) {
			return true
		}
	}
	return false
}

// Saturation rejects items whose subcategory or category already reached
// its cart quantity cap. Every matching explicit cap applies; the default
// cap only covers subcategories with none. Caps scale up for group orders.
type Saturation struct {
	Config rank.SaturationConfig
}

// Name returns the stage name.
func (s *Saturation) Name() string { return StageSaturation }

// Prepare counts cart quantities once per turn.
func (s *Saturation) Prepare(t *rank.Turn, _ []*rank.Item) func(*rank.Item) bool {
	if len(t.Lines) == 0 {
		return nil
	}
	subQty := t.SubcategoryQuantities()
	catQty := t.CategoryQuantities()
	total := t.TotalQuantity()

	return func(it *rank.Item) bool {
		explicit := false
		if limit, ok := s.Config.Caps[it.Subcategory]; ok {
			explicit = true
			if subQty[it.Subcategory] >= s.ScaledCap(limit, total) {
				return false
			}
		}
		if limit, ok := s.Config.Caps[string(it.Category)]; ok {
			explicit = true
			if catQty[it.Category] >= s.ScaledCap(limit, total) {
				return false
			}
		}
		if explicit {
			return true
		}
		return subQty[it.Subcategory] < s.ScaledCap(s.Config.DefaultCap, total)
	}
}

// ScaledCap returns the cap for a cart of the given total quantity. Above the
// group-order threshold the cap grows proportionally and never shrinks.
func (s *Saturation) ScaledCap(base, total int) int {
	threshold := s.Config.GroupOrderThreshold
	if threshold <= 0 || total <= threshold {
		return base
	}
	scaled := int(math.Ceil(float64(base) * s.Config.GroupScaleFactor * float64(total) / float64(threshold)))
	if scaled < base {
		return base
	}
	return scaled
}

// Fatigue rejects cart duplicates and categories ignored too often.
type Fatigue struct {
	Threshold int
}

// Name returns the stage name.
func (s *Fatigue) Name() string { return StageFatigue }

// Prepare returns the dedup and fatigue predicate.
func (s *Fatigue) Prepare(t *rank.Turn, _ []*rank.Item) func(*rank.Item) bool {
	return func(it *rank.Item) bool {
		if t.InCart(it.ID) {
			return false
		}
		return t.Session.IgnoreCount(it.Category) < s.Threshold
	}
}

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package postrank

import (
	"math"
	"sort"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Rule names, also used as keys of PostRankStats.Dropped.
const (
	RuleDiversity   = "diversity"
	RuleCategoryMix = "category_mix"
	RulePriceShock  = "price_shock"
	RuleMarginCap   = "margin_cap"
	RuleTimeOfDay   = "time_of_day"
)

// minBackfill is the rail length price shock backfills to.
const minBackfill = 8

// Rule is one post-ranking stage. Apply returns the new list and the number
// of candidates it removed from (or pushed out of) the output window.
type Rule interface {
	Name() string
	Apply(t *rank.Turn, list []*rank.Candidate, width int) ([]*rank.Candidate, int)
}

// Diversity caps the number of items per subcategory.
type Diversity struct {
	maxPer int
}

// Name returns the rule identifier.
func (d *Diversity) Name() string { return RuleDiversity }

// Apply keeps the first maxPer items of every subcategory.
func (d *Diversity) Apply(_ *rank.Turn, list []*rank.Candidate, _ int) ([]*rank.Candidate, int) {
	counts := make(map[string]int)
	out := list[:0:0]
	dropped := 0
	for _, c := range list {
		key := subcategoryKey(c.Item)
		if counts[key] >= d.maxPer {
			dropped++
			continue
		}
		counts[key]++
		out = append(out, c)
	}
	return out, dropped
}

func subcategoryKey(it *rank.Item) string {
	if it.Subcategory != "" {
		return it.Subcategory
	}
	return string(it.Category)
}

// CategoryMix makes every role that has candidates visible in the output
// window. A missing role's best candidate replaces the lowest-scored item of
// a role that holds more than one slot.
type CategoryMix struct{}

// Name returns the rule identifier.
func (CategoryMix) Name() string { return RuleCategoryMix }

// Apply promotes missing roles into the window.
func (CategoryMix) Apply(_ *rank.Turn, list []*rank.Candidate, width int) ([]*rank.Candidate, int) {
	if len(list) <= width {
		return list, 0
	}

	out := make([]*rank.Candidate, len(list))
	copy(out, list)
	swapped := 0

	for _, role := range rank.MixRoles {
		window := out[:width]
		counts := roleCounts(window)
		if counts[role] > 0 {
			continue
		}

		promote := -1
		for i := width; i < len(out); i++ {
			if out[i].Item.Category.Role() == role {
				promote = i
				break
			}
		}
		if promote < 0 {
			continue
		}

		victim := -1
		for i := width - 1; i >= 0; i-- {
			if counts[window[i].Item.Category.Role()] > 1 {
				victim = i
				break
			}
		}
		if victim < 0 {
			break
		}

		promoted := out[promote]
		demoted := out[victim]
		// Close the gap in the window, append the promoted item at its end
		// and put the demoted item first in the tail.
		rest := make([]*rank.Candidate, 0, len(out))
		rest = append(rest, out[:victim]...)
		rest = append(rest, out[victim+1:width]...)
		rest = append(rest, promoted, demoted)
		for i := width; i < len(out); i++ {
			if i != promote {
				rest = append(rest, out[i])
			}
		}
		out = rest
		swapped++
	}
	return out, swapped
}

func roleCounts(list []*rank.Candidate) map[rank.Role]int {
	counts := make(map[rank.Role]int, len(rank.MixRoles))
	for _, c := range list {
		counts[c.Item.Category.Role()]++
	}
	return counts
}

// PriceShock drops items priced more than pct above or below the cart's
// average item price. When that leaves fewer than minBackfill items, the
// dropped items closest to the band come back.
type PriceShock struct {
	pct float64
}

// Name returns the rule identifier.
func (p *PriceShock) Name() string { return RulePriceShock }

// Apply filters by price band. An empty cart has no reference price.
func (p *PriceShock) Apply(t *rank.Turn, list []*rank.Candidate, _ int) ([]*rank.Candidate, int) {
	avg := t.AvgItemPrice()
	if avg <= 0 {
		return list, 0
	}
	lo, hi := avg*(1-p.pct), avg*(1+p.pct)

	keep := make([]bool, len(list))
	var outside []int
	for i, c := range list {
		if c.Item.Price >= lo && c.Item.Price <= hi {
			keep[i] = true
			continue
		}
		outside = append(outside, i)
	}

	need := min(minBackfill, len(list)) - (len(list) - len(outside))
	if need > 0 {
		sort.SliceStable(outside, func(a, b int) bool {
			return bandDistance(list[outside[a]].Item.Price, lo, hi) < bandDistance(list[outside[b]].Item.Price, lo, hi)
		})
		for _, i := range outside[:need] {
			keep[i] = true
		}
	}

	out := list[:0:0]
	for i, c := range list {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out, len(list) - len(out)
}

// bandDistance is the relative distance of price from [lo, hi].
func bandDistance(price, lo, hi float64) float64 {
	switch {
	case price < lo:
		return (lo - price) / lo
	case price > hi:
		return (price - hi) / hi
	default:
		return 0
	}
}

// MarginCap limits ultra-high-margin items to a share of the output window.
type MarginCap struct {
	threshold float64
	share     float64
}

// Name returns the rule identifier.
func (m *MarginCap) Name() string { return RuleMarginCap }

// Apply drops ultra-high-margin items beyond the allowance, lowest-scored
// first. The allowance is computed against the rail length the list will be
// truncated to.
func (m *MarginCap) Apply(_ *rank.Turn, list []*rank.Candidate, width int) ([]*rank.Candidate, int) {
	total := 0
	out := list
	for {
		n := min(width, len(out))
		allowed := m.allowance(n)

		ultra := 0
		last := -1
		for i := 0; i < n; i++ {
			if m.isUltra(out[i]) {
				ultra++
				last = i
			}
		}
		if ultra <= allowed {
			return out, total
		}

		next := make([]*rank.Candidate, 0, len(out)-1)
		next = append(next, out[:last]...)
		next = append(next, out[last+1:]...)
		out = next
		total++
	}
}

func (m *MarginCap) allowance(n int) int {
	return int(math.Floor(m.share*float64(n) + 1e-9))
}

func (m *MarginCap) isUltra(c *rank.Candidate) bool {
	return c.Item.MarginPct >= m.threshold
}

// TimeOfDay drops items restricted to other meal periods.
type TimeOfDay struct{}

// Name returns the rule identifier.
func (TimeOfDay) Name() string { return RuleTimeOfDay }

// Apply keeps items allowed in the turn's meal period.
func (TimeOfDay) Apply(t *rank.Turn, list []*rank.Candidate, _ int) ([]*rank.Candidate, int) {
	out := list[:0:0]
	for _, c := range list {
		if c.Item.AllowedIn(t.MealPeriod) {
			out = append(out, c)
		}
	}
	return out, len(list) - len(out)
}

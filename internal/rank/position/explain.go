// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package position

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tomtom215/addonrail/internal/rank"
	"github.com/tomtom215/addonrail/internal/rank/features"
)

// Fallback explanation when no contribution stands out.
const defaultExplanation = "Recommended for your order"

// TopContribution returns the feature with the largest absolute contribution.
// Ties resolve to the lexically smaller name. ok is false when there are none.
func TopContribution(c *rank.Candidate) (name string, value float64, ok bool) {
	keys := make([]string, 0, len(c.Contributions))
	for k := range c.Contributions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := c.Contributions[k]
		if v == 0 || math.IsNaN(v) {
			continue
		}
		if !ok || math.Abs(v) > math.Abs(value) {
			name, value, ok = k, v, true
		}
	}
	return name, value, ok
}

// Explain returns the one-line explanation for a position-1 candidate.
func Explain(t *rank.Turn, c *rank.Candidate) string {
	name, _, ok := TopContribution(c)
	if !ok {
		if c.Features[features.FillsGap] > 0 {
			return gapMessage(c.Item)
		}
		return defaultExplanation
	}

	switch {
	case name == features.FillsGap || name == features.GapBeverage ||
		name == features.GapDessert || name == features.GapBread ||
		name == features.CartStage:
		return gapMessage(c.Item)
	case name == features.PairingScore:
		if first := t.FirstItem(); first != nil {
			return fmt.Sprintf("Pairs well with your %s", first.Name)
		}
		return "Pairs well with your order"
	case name == features.ItemBestseller:
		return "A bestseller here"
	case name == features.ItemPopularity || strings.HasPrefix(name, features.ItemMealPopularity):
		return fmt.Sprintf("Popular for %s", mealLabel(t.MealPeriod))
	case name == features.ItemAddonRate:
		return "Often added to orders like yours"
	case strings.HasPrefix(name, "d2d_"):
		if g, ok := rank.NextThreshold(t.Restaurant, t.CartValue); ok {
			return fmt.Sprintf("Just ₹%s more for %s", formatRupees(g.Gap), g.Threshold.Label())
		}
		return defaultExplanation
	case name == features.SeasonalWeight:
		return "Perfect for the season"
	case name == features.TrajAffinity || name == features.Similarity ||
		strings.HasPrefix(name, "traj_"):
		return "Based on what's in your cart"
	case name == features.PriceAnchorRatio || name == features.ItemPrice:
		return "Great value with your order"
	case name == features.ItemPrepTime:
		return "Ready quickly"
	default:
		return defaultExplanation
	}
}

// NudgeExplanation is the message for a forced distance-to-discount item.
func NudgeExplanation(it *rank.Item, gap rank.DiscountGap) string {
	return fmt.Sprintf("Add %s to unlock %s!", it.Name, gap.Threshold.Label())
}

func gapMessage(it *rank.Item) string {
	switch it.Category {
	case rank.CategoryBeverage:
		return "Complete your meal with a drink!"
	case rank.CategoryDessert:
		return "Finish with something sweet!"
	case rank.CategoryBread:
		return "Add bread to go with your curry!"
	case rank.CategoryRice:
		return "Add rice to complete your meal!"
	default:
		return "Complete your meal!"
	}
}

func mealLabel(p rank.MealPeriod) string {
	switch p {
	case rank.MealLateNight:
		return "late night"
	case "":
		return "this time of day"
	default:
		return string(p)
	}
}

func formatRupees(v float64) string {
	return fmt.Sprintf("%.0f", math.Ceil(v))
}

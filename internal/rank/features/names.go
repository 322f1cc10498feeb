// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package features

import (
	"strconv"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Static item features.
const (
	ItemPopularity     = "item_popularity"
	ItemMealPopularity = "item_meal_popularity"
	ItemBestseller     = "item_bestseller"
	ItemAddonRate      = "item_addon_rate"
	ItemMargin         = "item_margin"
	ItemPrice          = "item_price"
	ItemPrepTime       = "item_prep_time"
	ItemIsVeg          = "item_is_veg"
)

// Static user features.
const (
	UserRecency    = "user_rfm_recency"
	UserFrequency  = "user_rfm_frequency"
	UserMonetary   = "user_rfm_monetary"
	UserAOV        = "user_aov"
	UserOrderCount = "user_order_count"
	userSegPrefix  = "user_seg_"
)

// Static restaurant features.
const (
	RestPrepTime  = "rest_prep_time"
	RestPriceTier = "rest_price_tier"
)

// Dynamic features.
const (
	CartStage             = "cart_stage"
	CartValue             = "cart_value"
	CartSize              = "cart_size"
	GapBeverage           = "gap_beverage"
	GapDessert            = "gap_dessert"
	GapBread              = "gap_bread"
	FillsGap              = "fills_gap"
	PairingScore          = "pairing_score"
	PriceAnchorRatio      = "price_anchor_ratio"
	SecsSinceAdd          = "secs_since_add"
	ConsecutiveRejections = "consecutive_rejections"
	AbandonmentRisk       = "abandonment_risk"
	D2DGap                = "d2d_gap"
	D2DProximity          = "d2d_proximity"
	D2DClosesGap          = "d2d_closes_gap"
	D2DOvershoot          = "d2d_overshoot"
	PeakLunch             = "peak_lunch"
	PeakDinner            = "peak_dinner"
	PeakLateNight         = "peak_late_night"
	SeasonalWeight        = "seasonal_weight"
	VegDay                = "veg_day"
	SoftVegPref           = "soft_veg_pref"
	Similarity            = "similarity"
	TrajAffinity          = "traj_affinity"

	effCatPrefix  = "eff_cat_"
	candCatPrefix = "cand_cat_"
	trajPrefix    = "traj_"
	mealPopPrefix = "item_meal_popularity_"
)

// UserSegment returns the one-hot feature name for a user segment.
func UserSegment(segment string) string {
	return userSegPrefix + segment
}

// EffectiveCategory returns the feature name flagging a cart category.
func EffectiveCategory(c rank.Category) string {
	return effCatPrefix + string(c)
}

// CandidateCategory returns the one-hot feature name of a candidate category.
func CandidateCategory(c rank.Category) string {
	return candCatPrefix + string(c)
}

// Trajectory returns the feature name of trajectory component i.
func Trajectory(i int) string {
	return trajPrefix + strconv.Itoa(i)
}

// MealPopularity returns the static feature name of an item's popularity in
// a meal period.
func MealPopularity(p rank.MealPeriod) string {
	return mealPopPrefix + string(p)
}

// NeutralDefaults are used when a static lookup misses.
var NeutralDefaults = map[string]float64{
	ItemPopularity:     0.5,
	ItemMealPopularity: 0.5,
	ItemBestseller:     0,
	ItemAddonRate:      0.2,
	ItemMargin:         30,
	ItemPrepTime:       15,
	UserRecency:        30,
	UserFrequency:      1,
	UserMonetary:       0,
	UserAOV:            300,
	UserOrderCount:     0,
	RestPrepTime:       25,
	RestPriceTier:      1,
	PriceAnchorRatio:   1,
}

// Neutral returns the neutral default of a feature, or 0.
func Neutral(name string) float64 {
	return NeutralDefaults[name]
}

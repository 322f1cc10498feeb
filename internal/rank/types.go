// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package rank

import (
	"time"
)

// Category is the menu role of an item.
type Category string

// Menu categories.
const (
	CategoryMain      Category = "main"
	CategoryBread     Category = "bread"
	CategoryRice      Category = "rice"
	CategorySide      Category = "side"
	CategoryBeverage  Category = "beverage"
	CategoryDessert   Category = "dessert"
	CategoryAppetizer Category = "appetizer"
	CategorySoup      Category = "soup"
	CategoryCombo     Category = "combo"
)

// IsCarb reports whether the category is a carbohydrate staple (rice or bread).
func (c Category) IsCarb() bool {
	return c == CategoryRice || c == CategoryBread
}

// IsStaple reports whether the category fills a staple role that a combo
// or thali already provides.
func (c Category) IsStaple() bool {
	switch c {
	case CategoryMain, CategoryRice, CategoryBread, CategoryCombo:
		return true
	default:
		return false
	}
}

// Role groups categories for category-mix balancing.
type Role string

// Category-mix roles.
const (
	RoleComplement Role = "complement"
	RoleSide       Role = "side"
	RoleDrink      Role = "drink"
	RoleDessert    Role = "dessert"
	RoleOther      Role = "other"
)

// Role returns the category-mix role of the category.
func (c Category) Role() Role {
	switch c {
	case CategoryMain, CategoryBread, CategoryRice, CategorySoup:
		return RoleComplement
	case CategorySide, CategoryAppetizer:
		return RoleSide
	case CategoryBeverage:
		return RoleDrink
	case CategoryDessert:
		return RoleDessert
	default:
		return RoleOther
	}
}

// MixRoles lists the roles the category-mix rule tries to cover, in priority order.
var MixRoles = []Role{RoleComplement, RoleSide, RoleDrink, RoleDessert}

// DietClass is the dietary classification of an item.
type DietClass string

// Item diet classes.
const (
	DietClassVeg    DietClass = "veg"
	DietClassVegan  DietClass = "vegan"
	DietClassNonVeg DietClass = "non-veg"
)

// Animal-derived content tags carried by items.
const (
	TagDairy = "dairy"
	TagEgg   = "egg"
	TagMeat  = "meat"
	TagHoney = "honey"
)

// MealPeriod is the coarse time-of-day bucket used for popularity and
// time-of-day exclusion.
type MealPeriod string

// Meal periods.
const (
	MealBreakfast MealPeriod = "breakfast"
	MealLunch     MealPeriod = "lunch"
	MealDinner    MealPeriod = "dinner"
	MealLateNight MealPeriod = "late_night"
)

// MealPeriodAt returns the meal period for the given local time.
// Breakfast is 07:00-11:00, lunch 11:00-15:00, dinner 19:00-23:00 and
// everything else is late night.
func MealPeriodAt(t time.Time) MealPeriod {
	h := t.Hour()
	switch {
	case h >= 7 && h < 11:
		return MealBreakfast
	case h >= 11 && h < 15:
		return MealLunch
	case h >= 19 && h < 23:
		return MealDinner
	default:
		return MealLateNight
	}
}

// Promotion is an active or expired price promotion on an item.
type Promotion struct {
	// BasePrice is the catalog price the promotion was computed against.
	BasePrice float64 `json:"base_price"`

	// PromoPrice is the discounted price.
	PromoPrice float64 `json:"promo_price"`

	// Active is true while the promotion applies.
	Active bool `json:"active"`
}

// Item is a menu item. Items are immutable within a catalog snapshot.
type Item struct {
	// ID is the catalog identifier (e.g. "I00042").
	ID string `json:"item_id"`

	// RestaurantID is the owning restaurant.
	RestaurantID string `json:"restaurant_id"`

	// Name is the display name.
	Name string `json:"name"`

	// Cuisines are the cuisine tags of the item.
	Cuisines []string `json:"cuisines"`

	// Category is the menu role.
	Category Category `json:"category"`

	// Subcategory is the finer dish type (e.g. "naan", "lassi", "thali").
	Subcategory string `json:"subcategory"`

	// Price is the current catalog price in rupees.
	Price float64 `json:"price"`

	// MarginPct is the contribution margin percentage.
	MarginPct float64 `json:"margin_pct"`

	// Diet is the dietary classification.
	Diet DietClass `json:"diet"`

	// Contains lists animal-derived content tags (dairy, egg, meat, honey).
	Contains []string `json:"contains,omitempty"`

	// Available is false when the item is out of stock.
	Available bool `json:"available"`

	// Promotion is the current promotion, if any.
	Promotion *Promotion `json:"promotion,omitempty"`

	// IsCombo marks combo and thali items.
	IsCombo bool `json:"is_combo"`

	// ComboComponents lists the subcategories a combo contains.
	ComboComponents []string `json:"combo_components,omitempty"`

	// Embedding is the precomputed item embedding.
	Embedding []float32 `json:"-"`

	// Popularity is the overall popularity score in [0, 1].
	Popularity float64 `json:"popularity"`

	// PopularityByMeal holds popularity per meal period.
	PopularityByMeal map[MealPeriod]float64 `json:"popularity_by_meal,omitempty"`

	// Bestseller marks restaurant bestsellers.
	Bestseller bool `json:"bestseller"`

	// AddonSuccessRate is the historical add-on acceptance rate at the restaurant.
	AddonSuccessRate float64 `json:"addon_success_rate"`

	// PrepTimeMins is the preparation time in minutes.
	PrepTimeMins int `json:"prep_time_mins"`

	// MealPeriods restricts the item to the listed periods. Empty means all day.
	MealPeriods []MealPeriod `json:"meal_periods,omitempty"`
}

// HasTag reports whether the item carries the given content tag.
func (it *Item) HasTag(tag string) bool {
	for _, t := range it.Contains {
		if t == tag {
			return true
		}
	}
	return false
}

// HasCuisine reports whether the item is tagged with the given cuisine.
func (it *Item) HasCuisine(cuisine string) bool {
	for _, c := range it.Cuisines {
		if c == cuisine {
			return true
		}
	}
	return false
}

// PrimaryCuisine returns the first cuisine tag, or "" if untagged.
func (it *Item) PrimaryCuisine() string {
	if len(it.Cuisines) == 0 {
		return ""
	}
	return it.Cuisines[0]
}

// AllowedIn reports whether the item may be offered during the meal period.
func (it *Item) AllowedIn(period MealPeriod) bool {
	if len(it.MealPeriods) == 0 {
		return true
	}
	for _, p := range it.MealPeriods {
		if p == period {
			return true
		}
	}
	return false
}

// PopularityFor returns the meal-period popularity, falling back to overall popularity.
func (it *Item) PopularityFor(period MealPeriod) float64 {
	if p, ok := it.PopularityByMeal[period]; ok {
		return p
	}
	return it.Popularity
}

// IsVegetarian reports whether the item is acceptable in veg mode.
func (it *Item) IsVegetarian() bool {
	return it.Diet != DietClassNonVeg && !it.HasTag(TagMeat) && !it.HasTag(TagEgg)
}

// IsVegan reports whether the item is acceptable in vegan mode. Only items
// classified vegan qualify, and content tags can still exclude them.
func (it *Item) IsVegan() bool {
	return it.Diet == DietClassVegan && it.IsVegetarian() && !it.HasTag(TagDairy) && !it.HasTag(TagHoney)
}

// CartLine is one line of the cart. Sequence order is meaningful.
type CartLine struct {
	// ItemID references a catalog item.
	ItemID string `json:"item_id" validate:"required"`

	// Quantity is the number of units (at least 1).
	Quantity int `json:"quantity" validate:"min=1,max=50"`

	// Seq is the order in which the line was added (strictly increasing).
	Seq int `json:"seq" validate:"min=0"`
}

// ThresholdKind identifies a reward threshold type.
type ThresholdKind string

// Reward threshold kinds.
const (
	ThresholdPercentage   ThresholdKind = "percentage"
	ThresholdFreeItem     ThresholdKind = "free_item"
	ThresholdFreeDelivery ThresholdKind = "free_delivery"
)

// DiscountThreshold is a cart-value threshold that unlocks a reward.
type DiscountThreshold struct {
	// Kind is the reward type.
	Kind ThresholdKind `json:"type"`

	// MinOrder is the cart value that unlocks the reward.
	MinOrder float64 `json:"min_order"`

	// DiscountPct is the discount for percentage thresholds.
	DiscountPct float64 `json:"discount_pct,omitempty"`

	// FreeItem names the reward for free-item thresholds.
	FreeItem string `json:"free_item,omitempty"`
}

// Label returns a short human-readable reward description.
func (d DiscountThreshold) Label() string {
	switch d.Kind {
	case ThresholdPercentage:
		return formatPercent(d.DiscountPct) + " off"
	case ThresholdFreeItem:
		if d.FreeItem != "" {
			return d.FreeItem
		}
		return "a free item"
	case ThresholdFreeDelivery:
		return "free delivery"
	default:
		return "a reward"
	}
}

// Restaurant holds restaurant-level attributes.
type Restaurant struct {
	// ID is the restaurant identifier (e.g. "R0001").
	ID string `json:"restaurant_id"`

	// Name is the display name.
	Name string `json:"name"`

	// PrimaryCuisine is the declared cuisine.
	PrimaryCuisine string `json:"primary_cuisine"`

	// PriceTier is one of budget, mid, premium.
	PriceTier string `json:"price_tier"`

	// AvgPrepTime is the average preparation time in minutes.
	AvgPrepTime int `json:"avg_prep_time"`

	// FreeDeliveryMin is the cart value for free delivery. Zero means always free.
	FreeDeliveryMin float64 `json:"free_delivery_min"`

	// Discounts are the percentage and free-item thresholds.
	Discounts []DiscountThreshold `json:"discount_thresholds,omitempty"`
}

// Thresholds returns every reward threshold, including free delivery.
func (r *Restaurant) Thresholds() []DiscountThreshold {
	out := make([]DiscountThreshold, 0, len(r.Discounts)+1)
	if r.FreeDeliveryMin > 0 {
		out = append(out, DiscountThreshold{Kind: ThresholdFreeDelivery, MinOrder: r.FreeDeliveryMin})
	}
	out = append(out, r.Discounts...)
	return out
}

// RFM holds recency, frequency and monetary aggregates.
type RFM struct {
	Recency   int     `json:"recency"`
	Frequency int     `json:"frequency"`
	Monetary  float64 `json:"monetary"`
}

// UserProfile is read-only within a request.
type UserProfile struct {
	// ID is the user identifier.
	ID string `json:"user_id"`

	// Segment is one of Budget, Premium, Health, Family, Occasional.
	Segment string `json:"segment"`

	// City is the home city.
	City string `json:"city"`

	// DietaryPreference is the declared preference (informational).
	DietaryPreference string `json:"dietary_preference"`

	// VegDays are the weekdays the user declared as vegetarian.
	VegDays []time.Weekday `json:"veg_days,omitempty"`

	// RFM holds the RFM aggregates.
	RFM RFM `json:"rfm"`

	// OrderCount is the lifetime order count across restaurants.
	OrderCount int `json:"order_count"`

	// AvgOrderValue is the average order value across restaurants.
	AvgOrderValue float64 `json:"avg_order_value"`

	// FavouriteCuisines lists preferred cuisines.
	FavouriteCuisines []string `json:"favourite_cuisines,omitempty"`
}

// IsVegDay reports whether the given weekday is a declared veg day.
func (u *UserProfile) IsVegDay(day time.Weekday) bool {
	for _, d := range u.VegDays {
		if d == day {
			return true
		}
	}
	return false
}

// Features is a flat feature record keyed by feature name.
type Features map[string]float64

// Get returns the named feature or def when absent.
func (f Features) Get(name string, def float64) float64 {
	if v, ok := f[name]; ok {
		return v
	}
	return def
}

// Head names.
const (
	HeadAccept  = "accept"
	HeadAOV     = "aov"
	HeadAbandon = "abandon"
	HeadTiming  = "timing"
	HeadAnchor  = "anchor"
)

// HeadNames lists the five scoring heads in formula order.
var HeadNames = []string{HeadAccept, HeadAOV, HeadAbandon, HeadTiming, HeadAnchor}

// HeadScores holds the outputs of the five prediction heads for one candidate.
type HeadScores struct {
	Accept  float64 `json:"accept"`
	AOV     float64 `json:"aov"`
	Abandon float64 `json:"abandon"`
	Timing  float64 `json:"timing"`
	Anchor  float64 `json:"anchor"`
}

// Set assigns a head output by name.
func (h *HeadScores) Set(name string, v float64) {
	switch name {
	case HeadAccept:
		h.Accept = v
	case HeadAOV:
		h.AOV = v
	case HeadAbandon:
		h.Abandon = v
	case HeadTiming:
		h.Timing = v
	case HeadAnchor:
		h.Anchor = v
	}
}

// Candidate is an item under consideration for the current request only.
type Candidate struct {
	// Item is the catalog item.
	Item *Item

	// Similarity is the retrieval inner-product score.
	Similarity float64

	// Features is the assembled feature record.
	Features Features

	// Heads holds the five head outputs.
	Heads HeadScores

	// Score is the combined business score.
	Score float64

	// Contributions maps feature names to their weighted contribution to Score.
	Contributions map[string]float64

	// Breakdown maps score terms (heads and bonuses) to their weighted value.
	Breakdown map[string]float64

	// ClosesGap is true when the item alone reaches the next reward threshold.
	ClosesGap bool

	// Overshoot is price divided by the discount gap (0 when no gap).
	Overshoot float64
}

// RankedSlot is one position of the output rail.
type RankedSlot struct {
	// Position is 1-based.
	Position int `json:"position"`

	// ItemID is the recommended item.
	ItemID string `json:"item_id"`

	// Name is the item display name.
	Name string `json:"name"`

	// Price is the item price.
	Price float64 `json:"price"`

	// Category is the item category.
	Category Category `json:"category"`

	// Subcategory is the item subcategory.
	Subcategory string `json:"subcategory"`

	// Score is the business score.
	Score float64 `json:"score"`

	// Breakdown holds the weighted score terms.
	Breakdown map[string]float64 `json:"breakdown,omitempty"`

	// Explanation is set for position 1 (and for nudges).
	Explanation string `json:"explanation,omitempty"`
}

// Request is a ranking request for one cart turn.
type Request struct {
	// RequestID is generated when empty.
	RequestID string `json:"request_id,omitempty"`

	// SessionID identifies the shopping session.
	SessionID string `json:"session_id"`

	// UserID identifies the user.
	UserID string `json:"user_id"`

	// RestaurantID identifies the restaurant whose menu is ranked.
	RestaurantID string `json:"restaurant_id"`

	// Cart is the ordered cart.
	Cart []CartLine `json:"cart"`

	// DietToggle is the session dietary toggle; DietUnset leaves the stored toggle as is.
	DietToggle DietMode `json:"diet_toggle,omitempty"`

	// Now is the request time. Zero means the engine clock.
	Now time.Time `json:"now,omitempty"`

	// MealPeriod overrides the period derived from Now.
	MealPeriod MealPeriod `json:"meal_period,omitempty"`
}

// DegradeLevel describes how much of the pipeline was skipped.
type DegradeLevel string

// Degrade levels.
const (
	DegradeNone           DegradeLevel = "none"
	DegradeSkipPostRank   DegradeLevel = "skip_post_rank"
	DegradeSimilarityOnly DegradeLevel = "similarity_only"
)

// PostRankStats summarizes the post-ranking and assembly stages.
type PostRankStats struct {
	// Input is the number of scored candidates entering post-ranking.
	Input int `json:"input"`

	// AfterCap is the count after the diversity cap.
	AfterCap int `json:"after_cap"`

	// Output is the final rail length.
	Output int `json:"output"`

	// D2DOverride is 1 when position 1 was forced by distance-to-discount.
	D2DOverride int `json:"dtd_override"`

	// Dropped counts drops per rule.
	Dropped map[string]int `json:"dropped,omitempty"`
}

// Response is the ranked rail.
type Response struct {
	// Slots is the ordered rail (empty when no candidates).
	Slots []RankedSlot `json:"slots"`

	// Empty is true when the filter chain or retrieval produced no candidates.
	Empty bool `json:"empty"`

	// Degraded is true when the latency budget forced a shortened pipeline.
	Degraded bool `json:"degraded"`

	// Metadata carries tracing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata contains request metadata for debugging and monitoring.
type ResponseMetadata struct {
	// RequestID is the request identifier.
	RequestID string `json:"request_id"`

	// SessionID is the session identifier.
	SessionID string `json:"session_id"`

	// CartVersion is the cart version the rail was computed for.
	CartVersion string `json:"cart_version"`

	// CatalogVersion is the catalog snapshot version.
	CatalogVersion int64 `json:"catalog_version"`

	// DegradeLevel is the degradation level applied.
	DegradeLevel DegradeLevel `json:"degrade_level"`

	// DietMode is the effective hard diet filter.
	DietMode string `json:"diet_mode"`

	// DietSource explains how DietMode was resolved.
	DietSource string `json:"diet_source"`

	// MealPeriod is the meal period used.
	MealPeriod MealPeriod `json:"meal_period"`

	// PeakMode is the peak-hour weight set used.
	PeakMode string `json:"peak_mode"`

	// PoolSize is the eligible pool size after filtering.
	PoolSize int `json:"pool_size"`

	// Retrieved is the number of retrieved candidates.
	Retrieved int `json:"retrieved"`

	// HeadFallbacks lists heads that fell back to their neutral value.
	HeadFallbacks []string `json:"head_fallbacks,omitempty"`

	// FilterRejections counts rejections per filter stage.
	FilterRejections map[string]int `json:"filter_rejections,omitempty"`

	// PostRank holds post-ranking statistics.
	PostRank PostRankStats `json:"post_rank"`

	// LatencyMS is the processing time in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`
}

// Feedback is an acceptance-feedback event for the last shown rail.
type Feedback struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id"`

	// AcceptedItemIDs are the items the user added since the last rail.
	AcceptedItemIDs []string `json:"accepted_item_ids"`

	// OccurredAt is the event time.
	OccurredAt time.Time `json:"occurred_at"`
}

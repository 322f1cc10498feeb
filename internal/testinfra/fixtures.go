// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package testinfra

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/tomtom215/addonrail/internal/rank"
)

// EmbeddingDim is the dimension of fixture embeddings.
const EmbeddingDim = 8

// RestaurantID is the standard fixture restaurant.
const RestaurantID = "R0001"

// FixedNow is a Wednesday at 20:00 UTC.
var FixedNow = time.Date(2026, time.March, 4, 20, 0, 0, 0, time.UTC)

var categoryAxis = map[rank.Category]int{
	rank.CategoryMain:      0,
	rank.CategoryBread:     1,
	rank.CategoryRice:      2,
	rank.CategorySide:      3,
	rank.CategoryBeverage:  4,
	rank.CategoryDessert:   5,
	rank.CategoryAppetizer: 6,
	rank.CategorySoup:      7,
}

// Embedding returns a deterministic unit vector for the id, biased towards
// the category's axis so that same-category items are similar.
func Embedding(id string, cat rank.Category) []float32 {
	h := fnv.New64a()
	h.Write([]byte(id))
	rng := rand.New(rand.NewSource(int64(h.Sum64()))) //nolint:gosec // deterministic fixture data

	vec := make([]float64, EmbeddingDim)
	for i := range vec {
		vec[i] = rng.Float64()*0.6 - 0.3
	}
	if axis, ok := categoryAxis[cat]; ok {
		vec[axis] += 1
	} else {
		for i := 0; i < 3; i++ {
			vec[i] += 0.6
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, EmbeddingDim)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

// ItemOption customizes a fixture item.
type ItemOption func(*rank.Item)

// WithCuisine replaces the cuisine tags.
func WithCuisine(cuisines ...string) ItemOption {
	return func(it *rank.Item) { it.Cuisines = cuisines }
}

// WithDiet sets the diet class and content tags.
func WithDiet(d rank.DietClass, tags ...string) ItemOption {
	return func(it *rank.Item) {
		it.Diet = d
		it.Contains = tags
	}
}

// WithMargin sets the margin percentage.
func WithMargin(pct float64) ItemOption {
	return func(it *rank.Item) { it.MarginPct = pct }
}

// WithPrepTime sets the prep time.
func WithPrepTime(mins int) ItemOption {
	return func(it *rank.Item) { it.PrepTimeMins = mins }
}

// WithPopularity sets overall popularity.
func WithPopularity(p float64) ItemOption {
	return func(it *rank.Item) { it.Popularity = p }
}

// WithMealPeriods restricts the item to the given periods.
func WithMealPeriods(periods ...rank.MealPeriod) ItemOption {
	return func(it *rank.Item) { it.MealPeriods = periods }
}

// WithCombo marks the item as a combo of the given subcategories.
func WithCombo(components ...string) ItemOption {
	return func(it *rank.Item) {
		it.IsCombo = true
		it.Category = rank.CategoryCombo
		it.ComboComponents = components
	}
}

// WithPromotion attaches a promotion.
func WithPromotion(base, promo float64, active bool) ItemOption {
	return func(it *rank.Item) {
		it.Promotion = &rank.Promotion{BasePrice: base, PromoPrice: promo, Active: active}
	}
}

// WithoutEmbedding clears the embedding.
func WithoutEmbedding() ItemOption {
	return func(it *rank.Item) { it.Embedding = nil }
}

// Unavailable marks the item out of stock.
func Unavailable() ItemOption {
	return func(it *rank.Item) { it.Available = false }
}

// NewItem builds an available veg north_indian item of restaurant R0001.
func NewItem(id, name string, cat rank.Category, sub string, price float64, opts ...ItemOption) *rank.Item {
	it := &rank.Item{
		ID:               id,
		RestaurantID:     RestaurantID,
		Name:             name,
		Cuisines:         []string{"north_indian"},
		Category:         cat,
		Subcategory:      sub,
		Price:            price,
		MarginPct:        30,
		Diet:             rank.DietClassVeg,
		Available:        true,
		Popularity:       0.5,
		AddonSuccessRate: 0.2,
		PrepTimeMins:     20,
		PopularityByMeal: map[rank.MealPeriod]float64{
			rank.MealBreakfast: 0.2,
			rank.MealLunch:     0.5,
			rank.MealDinner:    0.6,
			rank.MealLateNight: 0.3,
		},
	}
	it.Embedding = Embedding(id, cat)
	for _, opt := range opts {
		opt(it)
	}
	return it
}

var (
	vegan  = WithDiet(rank.DietClassVegan)
	dairy  = WithDiet(rank.DietClassVeg, rank.TagDairy)
	meat   = WithDiet(rank.DietClassNonVeg, rank.TagMeat)
	egg    = WithDiet(rank.DietClassNonVeg, rank.TagEgg)
	honey  = WithDiet(rank.DietClassVeg, rank.TagHoney)
	meatEg = WithDiet(rank.DietClassNonVeg, rank.TagMeat, rank.TagEgg)
)

// Menu returns the standard fixture menu. Every call returns fresh items.
func Menu() []*rank.Item {
	chinese := WithCuisine("chinese")
	return []*rank.Item{
		NewItem("I001", "Paneer Butter Masala", rank.CategoryMain, "curry", 249, dairy, WithMargin(35), WithPopularity(0.9)),
		NewItem("I002", "Butter Chicken", rank.CategoryMain, "curry", 299, WithDiet(rank.DietClassNonVeg, rank.TagMeat, rank.TagDairy), WithMargin(38), WithPopularity(0.95)),
		NewItem("I003", "Dal Makhani", rank.CategoryMain, "curry", 199, dairy, WithMargin(45)),
		NewItem("I004", "Chole Masala", rank.CategoryMain, "curry", 179, vegan, WithMargin(42)),
		NewItem("I005", "Kadai Chicken", rank.CategoryMain, "curry", 289, meat, WithMargin(36)),
		NewItem("I006", "Egg Curry", rank.CategoryMain, "curry", 169, egg, WithMargin(40)),
		NewItem("I007", "Mixed Veg Curry", rank.CategoryMain, "curry", 189, vegan, WithMargin(41)),

		NewItem("I010", "Jeera Rice", rank.CategoryRice, "rice", 129, vegan, WithMargin(50), WithPrepTime(10)),
		NewItem("I011", "Veg Biryani", rank.CategoryRice, "biryani", 219, dairy, WithMargin(40)),
		NewItem("I012", "Chicken Biryani", rank.CategoryRice, "biryani", 279, meat, WithMargin(38)),
		NewItem("I013", "Steamed Rice", rank.CategoryRice, "rice", 99, vegan, WithMargin(52), WithPrepTime(8)),

		NewItem("I020", "Butter Naan", rank.CategoryBread, "naan", 49, dairy, WithMargin(54), WithPrepTime(8), WithPopularity(0.85)),
		NewItem("I021", "Garlic Naan", rank.CategoryBread, "naan", 59, dairy, WithMargin(54), WithPrepTime(8)),
		NewItem("I022", "Tandoori Roti", rank.CategoryBread, "roti", 29, vegan, WithMargin(50), WithPrepTime(6)),
		NewItem("I023", "Laccha Paratha", rank.CategoryBread, "paratha", 59, dairy, WithMargin(48), WithPrepTime(10)),

		NewItem("I030", "Boondi Raita", rank.CategorySide, "accompaniment", 69, dairy, WithMargin(58), WithPrepTime(5)),
		NewItem("I031", "Green Salad", rank.CategorySide, "salad", 59, vegan, WithMargin(52), WithPrepTime(5)),
		NewItem("I032", "Masala Papad", rank.CategorySide, "accompaniment", 39, vegan, WithMargin(60), WithPrepTime(5)),

		NewItem("I035", "Paneer Tikka", rank.CategoryAppetizer, "kebab", 229, dairy, WithMargin(44)),
		NewItem("I036", "Chicken Tikka", rank.CategoryAppetizer, "kebab", 259, meat, WithMargin(42)),
		NewItem("I037", "Veg Samosa", rank.CategoryAppetizer, "samosa", 49, vegan, WithMargin(56), WithPrepTime(10)),

		NewItem("I040", "Sweet Lassi", rank.CategoryBeverage, "lassi", 79, dairy, WithMargin(62), WithPrepTime(5), WithPopularity(0.8)),
		NewItem("I041", "Masala Chaas", rank.CategoryBeverage, "chaas", 49, dairy, WithMargin(60), WithPrepTime(5)),
		NewItem("I042", "Fresh Lime Soda", rank.CategoryBeverage, "soda", 69, vegan, WithMargin(65), WithPrepTime(5)),
		NewItem("I043", "Honey Lemon Tea", rank.CategoryBeverage, "tea", 59, honey, WithMargin(57), WithPrepTime(5)),
		NewItem("I044", "Coke", rank.CategoryBeverage, "soft_drink", 49, vegan, WithMargin(30), WithPrepTime(1)),

		NewItem("I050", "Gulab Jamun", rank.CategoryDessert, "indian_sweet", 79, dairy, WithMargin(56), WithPrepTime(5), WithPopularity(0.75)),
		NewItem("I051", "Rasmalai", rank.CategoryDessert, "indian_sweet", 99, dairy, WithMargin(50), WithPrepTime(5)),
		NewItem("I052", "Kesar Kulfi", rank.CategoryDessert, "ice_cream", 89, dairy, WithMargin(48), WithPrepTime(3)),
		NewItem("I053", "Gajar Halwa", rank.CategoryDessert, "indian_sweet", 109, dairy, WithMargin(46), WithPrepTime(5)),

		NewItem("I055", "Tomato Shorba", rank.CategorySoup, "soup", 99, vegan, WithMargin(50), WithPrepTime(10)),

		NewItem("I060", "North Indian Thali", rank.CategoryMain, "thali", 299, dairy, WithMargin(35),
			WithCombo("curry", "curry", "rice", "roti", "roti", "salad", "indian_sweet")),

		NewItem("I070", "Veg Hakka Noodles", rank.CategoryMain, "noodles", 179, vegan, chinese, WithMargin(45)),
		NewItem("I071", "Chilli Chicken", rank.CategoryMain, "chinese_starter", 249, meat, chinese, WithMargin(40)),
		NewItem("I072", "Veg Manchurian", rank.CategoryMain, "chinese_starter", 189, vegan, chinese, WithMargin(44)),
		NewItem("I073", "Chicken Fried Rice", rank.CategoryRice, "fried_rice", 199, meatEg, chinese, WithMargin(40)),
		NewItem("I074", "Egg Fried Rice", rank.CategoryRice, "fried_rice", 169, egg, chinese, WithMargin(42)),
		NewItem("I075", "Honey Chilli Potato", rank.CategoryAppetizer, "chinese_starter", 169, honey, chinese, WithMargin(50)),

		NewItem("I080", "Aloo Paratha", rank.CategoryBread, "paratha", 89, dairy, WithMargin(45), WithMealPeriods(rank.MealBreakfast)),
		NewItem("I081", "Mineral Water", rank.CategoryBeverage, "water", 20, vegan, WithMargin(5)),
		NewItem("I082", "Mango Lassi", rank.CategoryBeverage, "lassi", 99, dairy, WithMargin(60), Unavailable()),
	}
}

// Restaurant returns the standard fixture restaurant.
func Restaurant() *rank.Restaurant {
	return &rank.Restaurant{
		ID:              RestaurantID,
		Name:            "Punjab Grill",
		PrimaryCuisine:  "north_indian",
		PriceTier:       "mid",
		AvgPrepTime:     25,
		FreeDeliveryMin: 199,
		Discounts: []rank.DiscountThreshold{
			{Kind: rank.ThresholdPercentage, MinOrder: 299, DiscountPct: 10},
			{Kind: rank.ThresholdFreeItem, MinOrder: 399, FreeItem: "Free Dessert"},
		},
	}
}

// Users returns the fixture profiles. U00002 has Wednesday as a veg day.
func Users() []*rank.UserProfile {
	return []*rank.UserProfile{
		{
			ID: "U00001", Segment: "Premium", City: "Delhi", DietaryPreference: "none",
			VegDays: []time.Weekday{time.Tuesday}, RFM: rank.RFM{Recency: 3, Frequency: 12, Monetary: 5400},
			OrderCount: 42, AvgOrderValue: 520, FavouriteCuisines: []string{"north_indian"},
		},
		{
			ID: "U00002", Segment: "Health", City: "Mumbai", DietaryPreference: "veg",
			VegDays: []time.Weekday{time.Wednesday}, RFM: rank.RFM{Recency: 10, Frequency: 4, Monetary: 1200},
			OrderCount: 9, AvgOrderValue: 310,
		},
	}
}

// Catalog returns a catalog snapshot of the standard fixtures, optionally
// extended or overridden by extra items.
func Catalog(extra ...*rank.Item) *rank.Catalog {
	items := Menu()
	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[it.ID] = i
	}
	for _, it := range extra {
		if i, ok := byID[it.ID]; ok {
			items[i] = it
			continue
		}
		items = append(items, it)
	}
	return rank.NewCatalog(1, []*rank.Restaurant{Restaurant()}, items, Users())
}

// Lines turns item ids into cart lines of quantity 1 in the given order.
func Lines(itemIDs ...string) []rank.CartLine {
	lines := make([]rank.CartLine, len(itemIDs))
	for i, id := range itemIDs {
		lines[i] = rank.CartLine{ItemID: id, Quantity: 1, Seq: i + 1}
	}
	return lines
}

type turnSpec struct {
	lines   []rank.CartLine
	toggle  rank.DietMode
	now     time.Time
	userID  string
	session *rank.SessionState
	risk    float64
	idle    time.Duration
}

// TurnOption customizes NewTurn.
type TurnOption func(*turnSpec)

// WithToggle sets the session diet toggle.
func WithToggle(m rank.DietMode) TurnOption {
	return func(s *turnSpec) { s.toggle = m }
}

// WithNow sets the request time.
func WithNow(now time.Time) TurnOption {
	return func(s *turnSpec) { s.now = now }
}

// WithUser sets the user id.
func WithUser(id string) TurnOption {
	return func(s *turnSpec) { s.userID = id }
}

// WithQuantities replaces the cart with explicit lines.
func WithQuantities(lines ...rank.CartLine) TurnOption {
	return func(s *turnSpec) { s.lines = lines }
}

// WithIgnoreCounters sets session ignore counters.
func WithIgnoreCounters(counters map[rank.Category]int) TurnOption {
	return func(s *turnSpec) {
		if s.session == nil {
			s.session = rank.NewSessionState("s-test", FixedNow)
		}
		for k, v := range counters {
			s.session.IgnoreCounters[k] = v
		}
	}
}

// WithRisk sets the abandonment risk and idle time.
func WithRisk(risk float64, idle time.Duration) TurnOption {
	return func(s *turnSpec) {
		s.risk = risk
		s.idle = idle
	}
}

// NewTurn builds a fully resolved Turn against the catalog for R0001.
func NewTurn(cat *rank.Catalog, itemIDs []string, opts ...TurnOption) *rank.Turn {
	spec := &turnSpec{
		lines:  Lines(itemIDs...),
		now:    FixedNow,
		userID: "U00001",
	}
	for _, opt := range opts {
		opt(spec)
	}
	if spec.session == nil {
		spec.session = rank.NewSessionState("s-test", spec.now)
	}
	spec.session.DietToggle = spec.toggle

	restaurant, _ := cat.Restaurant(RestaurantID)
	req := rank.Request{
		RequestID:    "req-test",
		SessionID:    spec.session.SessionID,
		UserID:       spec.userID,
		RestaurantID: RestaurantID,
		Cart:         spec.lines,
		DietToggle:   spec.toggle,
		Now:          spec.now,
	}

	t := rank.NewTurn(req, spec.session.Snapshot(), cat, restaurant, spec.now)
	t.Diet = rank.ResolveDiet(spec.toggle, t.User, spec.now, t.CartItems())
	t.Peak = rank.PeakModeAt(spec.now, rank.DefaultConfig().Peak)
	t.Risk = spec.risk
	t.IdleTime = spec.idle
	return t
}

// Candidates wraps items as candidates with descending similarity.
func Candidates(items ...*rank.Item) []*rank.Candidate {
	out := make([]*rank.Candidate, len(items))
	for i, it := range items {
		out[i] = &rank.Candidate{
			Item:       it,
			Similarity: 1 - float64(i)*0.01,
			Features:   rank.Features{},
		}
	}
	return out
}

// MustItems looks up ids in the catalog and panics on a miss.
func MustItems(cat *rank.Catalog, ids ...string) []*rank.Item {
	out := make([]*rank.Item, len(ids))
	for i, id := range ids {
		it, ok := cat.Item(id)
		if !ok {
			panic("testinfra: unknown item " + id)
		}
		out[i] = it
	}
	return out
}

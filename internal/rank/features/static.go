// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package features

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Snapshot is an immutable set of precomputed static features.
type Snapshot struct {
	// CatalogVersion is the catalog the snapshot was built from.
	CatalogVersion int64

	// BuiltAt is when the snapshot was built.
	BuiltAt time.Time

	items       map[string]rank.Features
	users       map[string]rank.Features
	restaurants map[string]rank.Features
}

// Item returns the static features of an item.
func (s *Snapshot) Item(id string) (rank.Features, bool) {
	f, ok := s.items[id]
	return f, ok
}

// User returns the static features of a user.
func (s *Snapshot) User(id string) (rank.Features, bool) {
	f, ok := s.users[id]
	return f, ok
}

// Restaurant returns the static features of a restaurant.
func (s *Snapshot) Restaurant(id string) (rank.Features, bool) {
	f, ok := s.restaurants[id]
	return f, ok
}

// Len returns the number of items with features.
func (s *Snapshot) Len() int {
	return len(s.items)
}

// BuildSnapshot derives static features from a catalog.
func BuildSnapshot(cat *rank.Catalog, now time.Time) *Snapshot {
	nr, ni, nu := cat.Stats()
	s := &Snapshot{
		CatalogVersion: cat.Version,
		BuiltAt:        now,
		items:          make(map[string]rank.Features, ni),
		users:          make(map[string]rank.Features, nu),
		restaurants:    make(map[string]rank.Features, nr),
	}

	for _, r := range cat.Restaurants() {
		s.restaurants[r.ID] = rank.Features{
			RestPrepTime:  float64(r.AvgPrepTime),
			RestPriceTier: priceTier(r.PriceTier),
		}
	}
	for _, it := range cat.Items() {
		s.items[it.ID] = itemFeatures(it)
	}
	for _, u := range cat.Users() {
		s.users[u.ID] = userFeatures(u)
	}
	return s
}

func itemFeatures(it *rank.Item) rank.Features {
	f := rank.Features{
		ItemPopularity: it.Popularity,
		ItemBestseller: boolFeature(it.Bestseller),
		ItemAddonRate:  it.AddonSuccessRate,
		ItemMargin:     it.MarginPct,
		ItemPrice:      it.Price,
		ItemPrepTime:   float64(it.PrepTimeMins),
		ItemIsVeg:      boolFeature(it.IsVegetarian()),
	}
	for period, p := range it.PopularityByMeal {
		f[MealPopularity(period)] = p
	}
	return f
}

func userFeatures(u *rank.UserProfile) rank.Features {
	f := rank.Features{
		UserRecency:    float64(u.RFM.Recency),
		UserFrequency:  float64(u.RFM.Frequency),
		UserMonetary:   u.RFM.Monetary,
		UserAOV:        u.AvgOrderValue,
		UserOrderCount: float64(u.OrderCount),
	}
	if u.Segment != "" {
		f[UserSegment(u.Segment)] = 1
	}
	return f
}

func priceTier(tier string) float64 {
	switch tier {
	case "budget":
		return 0
	case "premium":
		return 2
	default:
		return 1
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Source supplies externally computed item features that override the
// catalog-derived values (e.g. fresher popularity or add-on rates).
type Source interface {
	ItemFeatures(ctx context.Context, itemIDs []string) (map[string]rank.Features, error)
}

// StaticStore holds the current Snapshot. Readers never block; Refresh
// builds a new snapshot and swaps it in atomically.
type StaticStore struct {
	current atomic.Pointer[Snapshot]
	source  Source
	logger  zerolog.Logger
}

// NewStaticStore creates an empty store. source may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStaticStore(source Source, logger zerolog.Logger) *StaticStore {
	return &StaticStore{
		source: source,
		logger: logger.With().Str("component", "static_features").Logger(),
	}
}

// Current returns the current snapshot, or nil before the first refresh.
func (s *StaticStore) Current() *Snapshot {
	return s.current.Load()
}

// Swap installs a snapshot.
func (s *StaticStore) Swap(snap *Snapshot) {
	s.current.Store(snap)
}

// Refresh rebuilds the snapshot from the catalog and overlays the external
// source. A source failure keeps the catalog-derived values and is logged.
func (s *StaticStore) Refresh(ctx context.Context, cat *rank.Catalog) error {
	if cat == nil {
		return rank.ErrCatalogUnavailable
	}
	snap := BuildSnapshot(cat, time.Now())

	if s.source != nil {
		ids := make([]string, 0, len(snap.items))
		for id := range snap.items {
			ids = append(ids, id)
		}
		overlay, err := s.source.ItemFeatures(ctx, ids)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn().Err(err).Msg("feature source unavailable, using catalog features")
		}
		for id, f := range overlay {
			base, ok := snap.items[id]
			if !ok {
				continue
			}
			for k, v := range f {
				base[k] = v
			}
		}
	}

	s.Swap(snap)
	s.logger.Debug().
		Int64("catalog_version", snap.CatalogVersion).
		Int("items", snap.Len()).
		Msg("static features refreshed")
	return nil
}

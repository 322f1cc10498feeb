// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package catalog loads restaurant, menu and user snapshots and publishes
// them to the ranking pipeline.
//
// A Store holds the current rank.Catalog behind an atomic pointer. Refresh
// reads a new snapshot from a Loader (a JSON file or a CSV directory read
// through DuckDB) and swaps it in; requests already running keep the
// snapshot they started with. Item embeddings come from the artifact store
// and are joined onto every published snapshot.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/rank"
)

// ErrNoLoader is returned by Refresh when the store was built without a loader.
var ErrNoLoader = errors.New("catalog loader not configured")

// Data is the raw content of a catalog source.
type Data struct {
	Restaurants []*rank.Restaurant
	Items       []*rank.Item
	Users       []*rank.UserProfile
}

// Loader reads catalog data from a source.
type Loader interface {
	Load(ctx context.Context) (*Data, error)
}

type embeddingSet struct {
	version int
	vectors map[string][]float32
}

// Store publishes catalog snapshots. Readers never block.
type Store struct {
	current atomic.Pointer[rank.Catalog]
	loader  Loader
	logger  zerolog.Logger

	// mu serializes publishers; readers only use current.
	mu         sync.Mutex
	data       *Data
	embeddings *embeddingSet
	version    int64
	loadedAt   time.Time
}

var _ rank.CatalogProvider = (*Store)(nil)

// NewStore creates an empty store. loader may be nil when snapshots are
// installed with Install.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStore(loader Loader, logger zerolog.Logger) *Store {
	return &Store{
		loader: loader,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Current returns the published snapshot, or nil before the first load.
func (s *Store) Current() *rank.Catalog {
	return s.current.Load()
}

// Refresh loads the source and publishes a new snapshot. On failure the
// previous snapshot stays published.
func (s *Store) Refresh(ctx context.Context) error {
	if s.loader == nil {
		return ErrNoLoader
	}
	start := time.Now()
	data, err := s.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := validateData(data); err != nil {
		return fmt.Errorf("validate catalog: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	cat := s.publishLocked()

	restaurants, items, users := cat.Stats()
	s.logger.Info().
		Int64("version", cat.Version).
		Int("restaurants", restaurants).
		Int("items", items).
		Int("users", users).
		Dur("duration", time.Since(start)).
		Msg("catalog snapshot published")
	return nil
}

// Install publishes the given data directly.
func (s *Store) Install(data *Data) (*rank.Catalog, error) {
	if err := validateData(data); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return s.publishLocked(), nil
}

// SetEmbeddings joins a new embedding table onto the catalog and republishes
// it. The table is kept for later refreshes.
func (s *Store) SetEmbeddings(version int, vectors map[string][]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.embeddings != nil && s.embeddings.version == version {
		return
	}
	s.embeddings = &embeddingSet{version: version, vectors: vectors}
	if s.data != nil {
		cat := s.publishLocked()
		s.logger.Info().
			Int("embeddings_version", version).
			Int64("version", cat.Version).
			Msg("item embeddings applied")
	}
}

// EmbeddingsVersion returns the version of the applied embedding table, or 0.
func (s *Store) EmbeddingsVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.embeddings == nil {
		return 0
	}
	return s.embeddings.version
}

// LoadedAt returns when the current snapshot was published.
func (s *Store) LoadedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadedAt
}

func (s *Store) publishLocked() *rank.Catalog {
	s.version++
	cat := rank.NewCatalog(s.version, s.data.Restaurants, s.data.Items, s.data.Users)
	if s.embeddings != nil {
		cat = cat.WithEmbeddings(s.version, s.embeddings.vectors)
	}
	s.loadedAt = cat.LoadedAt
	s.current.Store(cat)
	return cat
}

// validateData rejects records the pipeline cannot index.
func validateData(d *Data) error {
	if d == nil {
		return errors.New("no catalog data")
	}
	restaurants := make(map[string]struct{}, len(d.Restaurants))
	for i, r := range d.Restaurants {
		if r == nil || r.ID == "" {
			return fmt.Errorf("restaurant %d has no id", i)
		}
		restaurants[r.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(d.Items))
	for i, it := range d.Items {
		if it == nil || it.ID == "" {
			return fmt.Errorf("item %d has no id", i)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("duplicate item id %s", it.ID)
		}
		seen[it.ID] = struct{}{}
		if _, ok := restaurants[it.RestaurantID]; !ok {
			return fmt.Errorf("item %s references unknown restaurant %s", it.ID, it.RestaurantID)
		}
		if it.Price < 0 {
			return fmt.Errorf("item %s has negative price", it.ID)
		}
	}
	for i, u := range d.Users {
		if u == nil || u.ID == "" {
			return fmt.Errorf("user %d has no id", i)
		}
	}
	return nil
}

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package main

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/catalog"
	"github.com/tomtom215/addonrail/internal/config"
	"github.com/tomtom215/addonrail/internal/logging"
	"github.com/tomtom215/addonrail/internal/rank/features"
	"github.com/tomtom215/addonrail/internal/rank/storage"
	"github.com/tomtom215/addonrail/internal/session"
)

// storeSet holds the data-facing components and whatever must be closed.
type storeSet struct {
	Catalog   *catalog.Store
	Sessions  session.Store
	Artifacts *storage.Store
	Features  features.Source

	badgerDB *badger.DB
	redis    *features.RedisSource
}

// initStores opens the catalog loader, the session backend, the artifact
// directory and the optional Redis feature overlay.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storeSet, error) {
	st := &storeSet{}

	var loader catalog.Loader
	switch cfg.Catalog.Source {
	case config.CatalogSourceCSV:
		loader = catalog.NewDuckDBLoader(cfg.Catalog.Path)
	default:
		loader = catalog.NewJSONLoader(cfg.Catalog.Path)
	}
	st.Catalog = catalog.NewStore(loader, logger)

	switch cfg.Sessions.Backend {
	case config.SessionBackendBadger:
		db, err := session.OpenBadger(cfg.Sessions.Path)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		st.badgerDB = db
		st.Sessions = session.NewBadgerStore(db, cfg.Sessions.TTL)
	default:
		st.Sessions = session.NewMemoryStore(cfg.Sessions.TTL)
	}

	if cfg.Artifacts.Dir != "" {
		artifacts, err := storage.NewStore(cfg.Artifacts.Dir)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("open artifact store: %w", err)
		}
		st.Artifacts = artifacts
	}

	if cfg.Redis.Enabled {
		src, err := features.NewRedisSource(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			// The overlay is optional; ranking runs on catalog features alone.
			logging.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis feature source unavailable")
		} else {
			st.redis = src
			st.Features = src
		}
	}

	return st, nil
}

// Close releases the session database and the Redis client.
func (s *storeSet) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing Redis feature source")
		}
	}
	if s.badgerDB != nil {
		if err := s.badgerDB.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}
}

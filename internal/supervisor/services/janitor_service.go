// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/cache"
	"github.com/tomtom215/addonrail/internal/metrics"
)

// SessionExpirer is the session store surface the janitor needs.
type SessionExpirer interface {
	Expire(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}

// SessionJanitorService destroys idle sessions on an interval and keeps the
// active-sessions gauge current.
type SessionJanitorService struct {
	store    SessionExpirer
	interval time.Duration
	logger   zerolog.Logger
}

// NewSessionJanitorService creates the janitor.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSessionJanitorService(store SessionExpirer, interval time.Duration, logger zerolog.Logger) *SessionJanitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionJanitorService{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("service", "session-janitor").Logger(),
	}
}

// Serve implements suture.Service.
func (s *SessionJanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionJanitorService) sweep(ctx context.Context) {
	removed, err := s.store.Expire(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("session expiry failed")
	}
	if removed > 0 {
		metrics.SessionsExpired.Add(float64(removed))
		s.logger.Debug().Int("removed", removed).Msg("expired idle sessions")
	}
	if n, err := s.store.Count(ctx); err == nil {
		metrics.SessionsActive.Set(float64(n))
	}
}

// String implements fmt.Stringer for suture logs.
func (s *SessionJanitorService) String() string {
	return "session-janitor"
}

// TrajectoryCache is the trajectory vector cache surface.
// *trajectory.Adapter satisfies it.
type TrajectoryCache interface {
	CleanupExpired() int
	CacheStats() cache.Stats
}

// TrajectoryCleanupService evicts expired trajectory vectors and exports the
// cache counters.
type TrajectoryCleanupService struct {
	cache    TrajectoryCache
	interval time.Duration
	logger   zerolog.Logger
}

// NewTrajectoryCleanupService creates the cleanup loop.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrajectoryCleanupService(c TrajectoryCache, interval time.Duration, logger zerolog.Logger) *TrajectoryCleanupService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TrajectoryCleanupService{
		cache:    c,
		interval: interval,
		logger:   logger.With().Str("service", "trajectory-cleanup").Logger(),
	}
}

// Serve implements suture.Service.
func (s *TrajectoryCleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.cache.CleanupExpired(); n > 0 {
				s.logger.Debug().Int("evicted", n).Msg("evicted expired trajectory vectors")
			}
			metrics.UpdateTrajectoryCache(s.cache.CacheStats())
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (s *TrajectoryCleanupService) String() string {
	return "trajectory-cleanup"
}

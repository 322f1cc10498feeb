// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/metrics"
	"github.com/tomtom215/addonrail/internal/pipeline"
)

// Reloader refreshes the catalog and model artifacts.
// *pipeline.Pipeline satisfies it.
type Reloader interface {
	Reload(ctx context.Context) (pipeline.ReloadReport, error)
}

// ReloadServiceConfig configures the reload loop.
type ReloadServiceConfig struct {
	// Interval between reloads. Default: 1m.
	Interval time.Duration

	// Timeout bounds a single reload. Default: 2m.
	Timeout time.Duration
}

// ReloadService periodically reloads the catalog and artifacts so new
// versions are picked up without a restart. A failed reload keeps serving
// the previous versions.
type ReloadService struct {
	reloader Reloader
	config   ReloadServiceConfig
	logger   zerolog.Logger
}

// NewReloadService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewReloadService(reloader Reloader, cfg ReloadServiceConfig, logger zerolog.Logger) *ReloadService {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &ReloadService{
		reloader: reloader,
		config:   cfg,
		logger:   logger.With().Str("service", "reload").Logger(),
	}
}

// Serve implements suture.Service.
func (s *ReloadService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.config.Interval).Msg("reload service running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.reload(ctx)
		}
	}
}

func (s *ReloadService) reload(ctx context.Context) {
	reloadCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	report, err := s.reloader.Reload(reloadCtx)
	metrics.RecordReload(err)
	if err != nil {
		s.logger.Warn().Err(err).Strs("missing", report.MissingArtifacts).Msg("scheduled reload failed, keeping previous versions")
		return
	}
	if len(report.Changed) > 0 {
		s.logger.Debug().Strs("changed", report.Changed).Dur("duration", time.Since(start)).Msg("scheduled reload complete")
	}
}

// String implements fmt.Stringer for suture logs.
func (s *ReloadService) String() string {
	return "reload-service"
}

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/addonrail/internal/api"
	"github.com/tomtom215/addonrail/internal/auth"
	"github.com/tomtom215/addonrail/internal/config"
	"github.com/tomtom215/addonrail/internal/logging"
	"github.com/tomtom215/addonrail/internal/metrics"
	"github.com/tomtom215/addonrail/internal/middleware"
	"github.com/tomtom215/addonrail/internal/pipeline"
	"github.com/tomtom215/addonrail/internal/supervisor"
	"github.com/tomtom215/addonrail/internal/supervisor/services"
)

// adminTokenTTL is the lifetime of tokens minted with -mint-token.
const adminTokenTTL = 24 * time.Hour

//nolint:gocyclo // sequential startup wiring
func main() {
	mintSubject := flag.String("mint-token", "", "print an admin token for `subject` and exit")
	flag.Parse()

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	var jwtManager *auth.JWTManager
	if cfg.Security.AdminEnabled() {
		jwtManager, err = auth.NewJWTManager(cfg.Security.JWTSecret, adminTokenTTL)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
	}
	if *mintSubject != "" {
		os.Exit(mintToken(jwtManager, *mintSubject))
	}

	logger := logging.Logger()
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("catalog_source", cfg.Catalog.Source).
		Str("session_backend", cfg.Sessions.Backend).
		Str("feedback_transport", cfg.Feedback.Transport).
		Bool("admin_api", jwtManager != nil).
		Msg("Starting AddonRail")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := initStores(ctx, cfg, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize stores")
	}
	defer stores.Close()

	p, err := pipeline.New(&cfg.Rank, pipeline.Deps{
		Catalog:       stores.Catalog,
		Sessions:      stores.Sessions,
		Artifacts:     stores.Artifacts,
		FeatureSource: stores.Features,
		Observer:      metrics.Observer{},
		BreakerHook:   metrics.BreakerStateChange,
	}, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build ranking pipeline")
	}

	// A cold start without a catalog stays up and reports not-ready until
	// a later reload succeeds.
	report, err := p.Reload(ctx)
	metrics.RecordReload(err)
	if err != nil {
		logging.Warn().Err(err).Strs("missing", report.MissingArtifacts).Msg("Initial reload incomplete")
	} else {
		logging.Info().Int64("catalog_version", report.CatalogVersion).Msg("Initial reload complete")
	}

	if path := cfg.Artifacts.WeightsFile; path != "" {
		unwatch, err := config.WatchWeights(path, p.Scorer.Weights(), logger)
		if err != nil {
			logging.Fatal().Err(err).Str("path", path).Msg("Failed to load weights file")
		}
		defer func() {
			if err := unwatch(); err != nil {
				logging.Warn().Err(err).Msg("Failed to stop weights watcher")
			}
		}()
	}

	fb, err := initFeedback(cfg, p.Engine, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize feedback transport")
	}
	defer fb.Close()

	monitor := middleware.NewPerformanceMonitor(10000, cfg.Rank.Degradation.Alarm)
	handler := api.NewHandler(api.Deps{
		Engine:    p.Engine,
		Pipeline:  p,
		Weights:   p.Scorer.Weights(),
		Publisher: fb.Publisher,
		Auth:      jwtManager,
		Monitor:   monitor,
		Stats:     componentStats(stores, p, fb),
	}, logger)

	chiCfg := api.DefaultChiMiddlewareConfig()
	chiCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	chiCfg.RateLimitRequests = cfg.Security.RateLimitReqs
	chiCfg.RateLimitWindow = cfg.Security.RateLimitWindow
	chiCfg.RateLimitDisabled = cfg.Security.RateLimitDisabled
	router := api.NewRouter(handler, api.NewChiMiddleware(chiCfg))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddStateService(services.NewSessionJanitorService(stores.Sessions, cfg.Sessions.JanitorInterval, logger))
	tree.AddStateService(services.NewTrajectoryCleanupService(p.Trajectory, cfg.Sessions.JanitorInterval, logger))
	if fb.Consumer != nil {
		tree.AddFeedbackService(fb.Consumer)
	}
	tree.AddServingService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logger))
	tree.AddServingService(services.NewReloadService(p, services.ReloadServiceConfig{
		Interval: reloadInterval(cfg),
	}, logger))

	logging.Info().Str("addr", server.Addr).Msg("Serving")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree stopped unexpectedly")
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, u := range unstopped {
			logging.Warn().Str("service", u.Name).Msg("Service did not stop within timeout")
		}
	}
	logging.Info().Msg("AddonRail stopped")
}

// reloadInterval picks the faster of the catalog and artifact cadences.
func reloadInterval(cfg *config.Config) time.Duration {
	interval := cfg.Artifacts.ReloadInterval
	if c := cfg.Catalog.RefreshInterval; c > 0 && (interval <= 0 || c < interval) {
		interval = c
	}
	return interval
}

func mintToken(m *auth.JWTManager, subject string) int {
	if m == nil {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not configured")
		return 1
	}
	token, err := m.GenerateToken(subject, auth.RoleAdmin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		return 1
	}
	fmt.Println(token)
	return 0
}

func componentStats(st *storeSet, p *pipeline.Pipeline, fb *feedbackComponents) func(ctx context.Context) map[string]any {
	return func(ctx context.Context) map[string]any {
		out := map[string]any{
			"trajectory_cache":   p.Trajectory.CacheStats(),
			"trajectory_version": p.Trajectory.Version(),
			"head_breakers":      p.Scorer.BreakerStates(),
			"head_fallbacks":     p.Scorer.Fallbacks(),
		}
		if n, err := st.Sessions.Count(ctx); err == nil {
			out["sessions"] = n
		}
		if fb.Consumer != nil {
			out["feedback_consumer"] = fb.Consumer.Stats()
		}
		return out
	}
}

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/addonrail/internal/feedback"
	"github.com/tomtom215/addonrail/internal/rank"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/addonrail/config.yaml",
	"/etc/addonrail/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every default applied.
// Defaults are loaded first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	nats := feedback.DefaultNATSConfig("nats://127.0.0.1:4222")
	consumer := feedback.DefaultConsumerConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Catalog: CatalogConfig{
			Source:          CatalogSourceJSON,
			Path:            "/data/catalog.json",
			RefreshInterval: 5 * time.Minute,
		},
		Artifacts: ArtifactsConfig{
			Dir:            "/data/artifacts",
			ReloadInterval: time.Minute,
		},
		Sessions: SessionsConfig{
			Backend:         SessionBackendMemory,
			Path:            "",
			TTL:             30 * time.Minute,
			JanitorInterval: time.Minute,
		},
		Feedback: FeedbackConfig{
			Transport:            TransportGoChannel,
			NATSURL:              nats.URL,
			EmbeddedServer:       false,
			StoreDir:             "/data/nats",
			DurableName:          nats.Durable,
			QueueGroup:           nats.QueueGroup,
			RetryMaxRetries:      consumer.RetryMaxRetries,
			RetryInitialInterval: consumer.RetryInitialInterval,
			ThrottlePerSecond:    consumer.ThrottlePerSecond,
			PoisonTopic:          consumer.PoisonTopic,
			CloseTimeout:         consumer.CloseTimeout,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "127.0.0.1:6379",
			Prefix:  "addonrail:features:",
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     600,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Rank: *rank.DefaultConfig(),
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HTTP_PORT -> server.port, LOG_LEVEL -> logging.level, ...
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"rank.filters.disabled",
	"rank.postrank.disabled",
}

// processSliceFields converts comma-separated strings to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Catalog and artifacts
	"catalog_source":            "catalog.source",
	"catalog_path":              "catalog.path",
	"catalog_refresh_interval":  "catalog.refresh_interval",
	"artifacts_dir":             "artifacts.dir",
	"artifacts_reload_interval": "artifacts.reload_interval",
	"weights_file":              "artifacts.weights_file",

	// Sessions
	"session_backend":          "sessions.backend",
	"session_store_path":       "sessions.path",
	"session_ttl":              "sessions.ttl",
	"session_janitor_interval": "sessions.janitor_interval",

	// Feedback
	"feedback_transport":    "feedback.transport",
	"nats_url":              "feedback.nats_url",
	"nats_embedded":         "feedback.embedded_server",
	"nats_store_dir":        "feedback.store_dir",
	"nats_durable_name":     "feedback.durable_name",
	"nats_queue_group":      "feedback.queue_group",
	"feedback_retry_count":  "feedback.retry_max_retries",
	"feedback_throttle":     "feedback.throttle_per_second",
	"feedback_poison_topic": "feedback.poison_topic",

	// Redis
	"redis_enabled":  "redis.enabled",
	"redis_addr":     "redis.addr",
	"redis_password": "redis.password",
	"redis_db":       "redis.db",
	"redis_prefix":   "redis.prefix",

	// Security
	"jwt_secret":          "security.jwt_secret",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Ranking
	"rank_output_width":         "rank.position.output_width",
	"rank_fatigue_threshold":    "rank.filters.fatigue_threshold",
	"rank_degradation_enabled":  "rank.degradation.enabled",
	"rank_deadline":             "rank.degradation.deadline",
	"rank_head_timeout":         "rank.scoring.head_timeout",
	"rank_soft_veg_mode":        "rank.scoring.soft_veg.mode",
	"rank_disabled_filters":     "rank.filters.disabled",
	"rank_disabled_postrank":    "rank.postrank.disabled",
	"rank_trajectory_cache_ttl": "rank.trajectory.cache_ttl",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped keys return "" so they are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

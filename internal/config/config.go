// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Config holds all application configuration.
//
// Config is immutable after LoadWithKoanf() and safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Sessions  SessionsConfig  `koanf:"sessions"`
	Feedback  FeedbackConfig  `koanf:"feedback"`
	Redis     RedisConfig     `koanf:"redis"`
	Security  SecurityConfig  `koanf:"security"`
	Rank      rank.Config     `koanf:"rank"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development or production
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction reports whether production checks apply.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}

// Catalog sources.
const (
	CatalogSourceJSON = "json"
	CatalogSourceCSV  = "csv"
)

// CatalogConfig locates the catalog snapshot.
type CatalogConfig struct {
	// Source is "json" (single snapshot file) or "csv" (directory read through DuckDB).
	Source string `koanf:"source"`

	// Path is the snapshot file or the CSV directory.
	Path string `koanf:"path"`

	// RefreshInterval is how often the snapshot is reloaded. Zero disables refresh.
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// ArtifactsConfig locates model artifacts.
type ArtifactsConfig struct {
	// Dir holds versioned artifact files. Empty runs on default heads and a bootstrap encoder.
	Dir string `koanf:"dir"`

	// ReloadInterval is how often the directory is rescanned.
	ReloadInterval time.Duration `koanf:"reload_interval"`

	// WeightsFile is an optional YAML weight set watched for changes.
	WeightsFile string `koanf:"weights_file"`
}

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendBadger = "badger"
)

// SessionsConfig configures the session store.
type SessionsConfig struct {
	Backend         string        `koanf:"backend"`
	Path            string        `koanf:"path"` // badger directory, empty for in-memory badger
	TTL             time.Duration `koanf:"ttl"`
	JanitorInterval time.Duration `koanf:"janitor_interval"`
}

// Feedback transports.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// FeedbackConfig configures the feedback event transport.
type FeedbackConfig struct {
	Transport string `koanf:"transport"`

	NATSURL        string `koanf:"nats_url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	DurableName    string `koanf:"durable_name"`
	QueueGroup     string `koanf:"queue_group"`

	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	ThrottlePerSecond    int64         `koanf:"throttle_per_second"`
	PoisonTopic          string        `koanf:"poison_topic"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
}

// RedisConfig configures the optional Redis feature overlay.
type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// SecurityConfig holds admin auth and request limiting settings.
type SecurityConfig struct {
	// JWTSecret signs admin tokens (HS256). Empty disables the admin API.
	JWTSecret         string        `koanf:"jwt_secret"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// AdminEnabled reports whether admin routes are mounted.
func (s SecurityConfig) AdminEnabled() bool {
	return s.JWTSecret != ""
}

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

/*
Package config provides centralized configuration management for AddonRail.

Configuration is loaded with Koanf v2 from three layers, later layers winning:

 1. Defaults built from defaultConfig() (structs provider)
 2. An optional YAML file: $CONFIG_PATH, config.yaml, config.yml,
    /etc/addonrail/config.yaml
 3. Explicitly mapped environment variables

Unmapped environment variables are ignored so that unrelated process
environment never leaks into configuration.

# Sections

  - server: HTTP listener and timeouts
  - logging: zerolog level and format
  - catalog: snapshot source (json file or csv directory read through DuckDB)
  - artifacts: model artifact directory and reload cadence
  - sessions: memory or badger session store, idle timeout, janitor cadence
  - feedback: gochannel or nats transport for feedback events
  - redis: optional feature overlay
  - security: admin JWT secret, CORS, rate limiting
  - rank: pipeline tuning (rank.Config)

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT, HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT,
    HTTP_SHUTDOWN_TIMEOUT, ENVIRONMENT

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Catalog and artifacts:
  - CATALOG_SOURCE (json|csv), CATALOG_PATH, CATALOG_REFRESH_INTERVAL
  - ARTIFACTS_DIR, ARTIFACTS_RELOAD_INTERVAL, WEIGHTS_FILE

Sessions:
  - SESSION_BACKEND (memory|badger), SESSION_STORE_PATH, SESSION_TTL,
    SESSION_JANITOR_INTERVAL

Feedback:
  - FEEDBACK_TRANSPORT (gochannel|nats), NATS_URL, NATS_EMBEDDED,
    NATS_STORE_DIR, NATS_DURABLE_NAME, NATS_QUEUE_GROUP,
    FEEDBACK_RETRY_COUNT, FEEDBACK_THROTTLE, FEEDBACK_POISON_TOPIC

Redis:
  - REDIS_ENABLED, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_PREFIX

Security:
  - JWT_SECRET, CORS_ORIGINS, RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW,
    DISABLE_RATE_LIMIT

Ranking:
  - RANK_OUTPUT_WIDTH, RANK_FATIGUE_THRESHOLD, RANK_DEGRADATION_ENABLED,
    RANK_DEADLINE, RANK_HEAD_TIMEOUT, RANK_SOFT_VEG_MODE

# Hot Reload

WatchWeights watches a YAML weights file and pushes every valid change into
the scorer's weight store. Invalid files are logged and ignored; the previous
weights stay active.
*/
package config

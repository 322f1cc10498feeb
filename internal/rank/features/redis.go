// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package features

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tomtom215/addonrail/internal/rank"
)

// DefaultKeyPrefix is the hash key prefix for item feature overrides.
const DefaultKeyPrefix = "addonrail:features:item:"

// hashReader is the subset of the redis client used by RedisSource.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *goredis.MapStringStringCmd
}

// RedisSource reads item feature overrides from Redis hashes. Each item is a
// hash at prefix+itemID whose fields are feature names and whose values are
// decimal numbers. Fields that do not parse are skipped.
type RedisSource struct {
	rdb    hashReader
	closer func() error
	prefix string
}

var _ Source = (*RedisSource)(nil)

// NewRedisSource connects to Redis and verifies the connection.
func NewRedisSource(ctx context.Context, addr, password string, db int, prefix string) (*RedisSource, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close() //nolint:errcheck // ping error takes precedence
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	src := newRedisSource(rdb, prefix)
	src.closer = rdb.Close
	return src, nil
}

func newRedisSource(rdb hashReader, prefix string) *RedisSource {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisSource{rdb: rdb, prefix: prefix}
}

// ItemFeatures returns the overrides for the given items. Items without a
// hash are absent from the result.
func (s *RedisSource) ItemFeatures(ctx context.Context, itemIDs []string) (map[string]rank.Features, error) {
	out := make(map[string]rank.Features)
	for _, id := range itemIDs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		fields, err := s.rdb.HGetAll(ctx, s.prefix+id).Result()
		if err != nil {
			return out, fmt.Errorf("read features for %s: %w", id, err)
		}
		if len(fields) == 0 {
			continue
		}
		f := make(rank.Features, len(fields))
		for name, raw := range fields {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			f[name] = v
		}
		if len(f) > 0 {
			out[id] = f
		}
	}
	return out, nil
}

// Close closes the underlying client when the source owns it.
func (s *RedisSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package trajectory

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/cache"
	"github.com/tomtom215/addonrail/internal/rank"
)

// ModelName is the name reported in ModelUnavailableError.
const ModelName = "trajectory_encoder"

// ErrNoEncoder is wrapped when no encoder is installed.
var ErrNoEncoder = errors.New("no encoder installed")

type encoderHolder struct {
	enc     Encoder
	version int
}

// Adapter implements rank.TrajectoryProvider on top of an Encoder with an
// LRU cache keyed by session id and cart version. The encoder can be
// swapped at runtime; swapping clears the cache.
type Adapter struct {
	encoder atomic.Pointer[encoderHolder]
	cache   *cache.LRU[[]float64]
	logger  zerolog.Logger

	failures atomic.Int64
}

var (
	_ rank.TrajectoryProvider = (*Adapter)(nil)
	_ rank.SessionEvictor     = (*Adapter)(nil)
)

// NewAdapter creates an adapter. enc may be nil until SetEncoder is called.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAdapter(enc Encoder, cfg rank.TrajectoryConfig, logger zerolog.Logger) *Adapter {
	a := &Adapter{
		cache:  cache.NewLRU[[]float64](cfg.CacheSize, cfg.CacheTTL),
		logger: logger.With().Str("component", "trajectory").Logger(),
	}
	if enc != nil {
		a.encoder.Store(&encoderHolder{enc: enc})
	}
	return a
}

// SetEncoder installs a new encoder version and drops cached vectors.
func (a *Adapter) SetEncoder(enc Encoder, version int) {
	a.encoder.Store(&encoderHolder{enc: enc, version: version})
	a.cache.Clear()
	a.logger.Info().Int("version", version).Msg("trajectory encoder installed")
}

// Version returns the installed encoder version, or 0.
func (a *Adapter) Version() int {
	if h := a.encoder.Load(); h != nil {
		return h.version
	}
	return 0
}

// Dim returns the trajectory dimension, or 0 when no encoder is installed.
func (a *Adapter) Dim() int {
	if h := a.encoder.Load(); h != nil && h.enc != nil {
		return h.enc.Dim()
	}
	return 0
}

// Vector returns the trajectory vector for the turn's cart. A cached vector
// is reused while the cart version is unchanged. Encoder failure yields a
// zero vector and a ModelUnavailableError; the zero vector is not cached.
func (a *Adapter) Vector(ctx context.Context, t *rank.Turn) ([]float64, error) {
	h := a.encoder.Load()
	if h == nil || h.enc == nil {
		a.failures.Add(1)
		return nil, &rank.ModelUnavailableError{Model: ModelName, Err: ErrNoEncoder}
	}

	key := cacheKey(t.Request.SessionID, t.Version)
	if v, ok := a.cache.Get(key); ok {
		return v, nil
	}

	steps := make([]Step, len(t.Lines))
	for i, l := range t.Lines {
		steps[i] = Step{Embedding: l.Item.Embedding, Quantity: l.Quantity}
	}

	v, err := h.enc.Encode(ctx, steps)
	if err != nil {
		a.failures.Add(1)
		return make([]float64, h.enc.Dim()), &rank.ModelUnavailableError{Model: ModelName, Err: err}
	}

	a.cache.Add(key, v)
	return v, nil
}

// EvictSession drops every cached vector of the session.
func (a *Adapter) EvictSession(sessionID string) {
	a.cache.RemovePrefix(sessionID + "|")
}

// CleanupExpired drops expired cache entries.
func (a *Adapter) CleanupExpired() int {
	return a.cache.CleanupExpired()
}

// CacheStats returns the vector cache counters.
func (a *Adapter) CacheStats() cache.Stats {
	return a.cache.Stats()
}

// Failures returns the number of encoder failures.
func (a *Adapter) Failures() int64 {
	return a.failures.Load()
}

func cacheKey(sessionID string, v rank.CartVersion) string {
	return sessionID + "|" + v.String()
}

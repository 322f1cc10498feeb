// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package scoring

import (
	"fmt"
	"sync/atomic"

	"github.com/tomtom215/addonrail/internal/rank"
)

// WeightStore holds the business-score weights. Readers never block and
// always see a complete weight set.
type WeightStore struct {
	current atomic.Pointer[rank.WeightSet]
	version atomic.Int64
}

// NewWeightStore creates a store holding ws.
//
//nolint:gocritic // hugeParam: ws is copied into the store
func NewWeightStore(ws rank.WeightSet) *WeightStore {
	s := &WeightStore{}
	s.current.Store(&ws)
	return s
}

// Get returns the current weight set.
func (s *WeightStore) Get() rank.WeightSet {
	return *s.current.Load()
}

// Set validates and installs a weight set, returning the new version.
//
//nolint:gocritic // hugeParam: ws is copied into the store
func (s *WeightStore) Set(ws rank.WeightSet) (int64, error) {
	if err := ws.Validate(); err != nil {
		return 0, fmt.Errorf("invalid weights: %w", err)
	}
	s.current.Store(&ws)
	return s.version.Add(1), nil
}

// Version returns how many times the weights were replaced.
func (s *WeightStore) Version() int64 {
	return s.version.Load()
}

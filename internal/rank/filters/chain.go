// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package filters implements the ordered eligibility chain that prunes a
// restaurant menu to the pool handed to retrieval.
//
// Stages run in the fixed order Availability/Margin, Dietary, Cuisine
// Coherence, Quantity Saturation, Dedup/Fatigue. Each stage receives the
// pool left by its predecessors, so an item rejected early is never seen by
// later stages. Cuisine Coherence inspects the pool it receives, which makes
// the chain order-sensitive by construction.
package filters

import (
	"github.com/tomtom215/addonrail/internal/rank"
)

// Stage names, used for configuration and rejection counts.
const (
	StageAvailability = "availability"
	StageDietary      = "dietary"
	StageCuisine      = "cuisine"
	StageSaturation   = "saturation"
	StageFatigue      = "fatigue"
)

// Stage is one filter stage. Prepare derives per-turn state from the pool
// the stage receives; the returned predicate reports eligibility.
type Stage interface {
	Name() string
	Prepare(t *rank.Turn, pool []*rank.Item) func(it *rank.Item) bool
}

// Chain runs the stages in order.
type Chain struct {
	stages   []Stage
	disabled map[string]bool
}

var _ rank.FilterChain = (*Chain)(nil)

// NewChain builds the standard chain from configuration.
//
//nolint:gocritic // hugeParam: cfg passed by value for immutability
func NewChain(cfg rank.FilterConfig) *Chain {
	return NewChainWithStages(cfg.Disabled,
		&Availability{MinMarginPct: cfg.MinMarginPct},
		&Dietary{},
		&Cuisine{},
		&Saturation{Config: cloneSaturation(cfg.Saturation)},
		&Fatigue{Threshold: cfg.FatigueThreshold},
	)
}

// NewChainWithStages builds a chain from explicit stages in the given order.
func NewChainWithStages(disabled []string, stages ...Stage) *Chain {
	d := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		d[name] = true
	}
	return &Chain{stages: stages, disabled: d}
}

// Stages returns the stage names in execution order.
func (c *Chain) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// Apply filters the restaurant menu for the turn.
func (c *Chain) Apply(t *rank.Turn) rank.FilterResult {
	return c.ApplyPool(t, t.Catalog.Menu(t.Restaurant.ID))
}

// ApplyPool filters an explicit pool.
func (c *Chain) ApplyPool(t *rank.Turn, pool []*rank.Item) rank.FilterResult {
	result := rank.FilterResult{Rejected: make(map[string]int, len(c.stages))}

	current := make([]*rank.Item, len(pool))
	copy(current, pool)

	for _, st := range c.stages {
		if c.disabled[st.Name()] {
			continue
		}
		keep := st.Prepare(t, current)
		if keep == nil {
			continue
		}
		next := current[:0:0]
		for _, it := range current {
			if keep(it) {
				next = append(next, it)
			} else {
				result.Rejected[st.Name()]++
			}
		}
		current = next
	}

	result.Eligible = current
	return result
}

func cloneSaturation(cfg rank.SaturationConfig) rank.SaturationConfig {
	caps := make(map[string]int, len(cfg.Caps))
	for k, v := range cfg.Caps {
		caps[k] = v
	}
	cfg.Caps = caps
	return cfg
}

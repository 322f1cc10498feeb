// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package postrank

import (
	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Processor implements rank.PostRanker.
type Processor struct {
	rules         []Rule
	marginCap     *MarginCap
	width         int
	maxCandidates int
	logger        zerolog.Logger
}

var _ rank.PostRanker = (*Processor)(nil)

// New creates a processor. Rules listed in cfg.Disabled are skipped.
//
//nolint:gocritic // hugeParam: cfg and logger passed by value for immutability
func New(cfg rank.PostRankConfig, width, maxCandidates int, logger zerolog.Logger) *Processor {
	mc := &MarginCap{threshold: cfg.UltraHighMarginPct, share: cfg.MarginCapShare}
	all := []Rule{
		&Diversity{maxPer: cfg.MaxPerSubcategory},
		CategoryMix{},
		&PriceShock{pct: cfg.PriceShockPct},
		mc,
		TimeOfDay{},
	}

	p := &Processor{
		width:         width,
		maxCandidates: maxCandidates,
		logger:        logger.With().Str("component", "postrank").Logger(),
	}
	for _, r := range all {
		if cfg.IsDisabled(r.Name()) {
			p.logger.Info().Str("rule", r.Name()).Msg("post-ranking rule disabled")
			continue
		}
		p.rules = append(p.rules, r)
	}
	if !cfg.IsDisabled(RuleMarginCap) {
		p.marginCap = mc
	}
	return p
}

// Rules returns the enabled rule names in execution order.
func (p *Processor) Rules() []string {
	out := make([]string, len(p.rules))
	for i, r := range p.rules {
		out[i] = r.Name()
	}
	return out
}

// Process caps the list, applies the rules in order and truncates to the
// output width. Output is left to the caller.
func (p *Processor) Process(t *rank.Turn, ranked []*rank.Candidate) ([]*rank.Candidate, rank.PostRankStats) {
	stats := rank.PostRankStats{
		Input:   len(ranked),
		Dropped: make(map[string]int),
	}

	list := ranked
	if p.maxCandidates > 0 && len(list) > p.maxCandidates {
		list = list[:p.maxCandidates]
	}
	stats.AfterCap = len(list)

	for _, r := range p.rules {
		var n int
		list, n = r.Apply(t, list, p.width)
		if n > 0 {
			stats.Dropped[r.Name()] += n
		}
	}

	if len(list) > p.width {
		list = list[:p.width]
	}
	if p.marginCap != nil {
		var n int
		list, n = p.marginCap.Apply(t, list, p.width)
		if n > 0 {
			stats.Dropped[RuleMarginCap] += n
		}
	}

	if len(stats.Dropped) == 0 {
		stats.Dropped = nil
	}
	p.logger.Debug().
		Int("input", stats.Input).
		Int("after_cap", stats.AfterCap).
		Int("kept", len(list)).
		Interface("dropped", stats.Dropped).
		Msg("post-ranking applied")
	return list, stats
}

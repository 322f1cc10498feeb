// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package position turns the post-ranked candidate list into the output rail.
//
// Position 1 is the anchor slot. When the cart is close enough to a reward
// threshold, the best-scored item that closes the gap without overshooting it
// by more than MaxOvershoot is forced into position 1 with a nudge message.
// Otherwise position 1 goes to the highest Anchor-head score. The remaining
// slots follow the business score.
package position

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Assembler implements rank.PositionAssembler.
type Assembler struct {
	cfg    rank.PositionConfig
	logger zerolog.Logger
}

var _ rank.PositionAssembler = (*Assembler)(nil)

// New creates an assembler.
//
//nolint:gocritic // hugeParam: logger passed by value for immutability
func New(cfg rank.PositionConfig, logger zerolog.Logger) *Assembler {
	return &Assembler{
		cfg:    cfg,
		logger: logger.With().Str("component", "position").Logger(),
	}
}

// Urgency is the nudge urgency for a gap given the session's abandonment risk.
func (a *Assembler) Urgency(gap rank.DiscountGap, risk float64) float64 {
	return rank.Clamp01(a.cfg.ProximityWeight*gap.Proximity + a.cfg.RiskWeight*rank.Clamp01(risk))
}

// Assemble orders and truncates the list. With degraded set the input order
// is kept and no override is considered.
func (a *Assembler) Assemble(t *rank.Turn, ranked []*rank.Candidate, degraded bool) ([]rank.RankedSlot, bool) {
	if len(ranked) == 0 {
		return []rank.RankedSlot{}, false
	}

	if degraded {
		list := truncate(ranked, a.cfg.OutputWidth)
		return a.slots(list, Explain(t, list[0])), false
	}

	list, back, nudge := a.discountOrder(t, ranked)
	if nudge != "" {
		return a.slots(list, nudge), true
	}

	if len(list) == 0 {
		list, back = back, nil
	}
	list = append(anchorFirst(list), back...)
	list = truncate(list, a.cfg.OutputWidth)
	return a.slots(list, Explain(t, list[0])), false
}

// discountOrder applies distance-to-discount. When urgency is high enough,
// items overshooting the gap by more than MaxOvershoot move to back, and the
// best-scored item closing the gap within that ratio is forced first. Without
// urgency the list comes back unchanged. A non-empty nudge means an item
// was forced.
func (a *Assembler) discountOrder(t *rank.Turn, ranked []*rank.Candidate) (list, back []*rank.Candidate, nudge string) {
	gap, ok := rank.NextThreshold(t.Restaurant, t.CartValue)
	if !ok {
		return ranked, nil, ""
	}
	urgency := a.Urgency(gap, t.Risk)
	if urgency < a.cfg.UrgencyThreshold {
		return ranked, nil, ""
	}

	var best *rank.Candidate
	within := make([]*rank.Candidate, 0, len(ranked))
	for _, c := range ranked {
		ratio := gap.Overshoot(c.Item.Price)
		if ratio > a.cfg.MaxOvershoot {
			back = append(back, c)
			continue
		}
		if ratio >= 1 && (best == nil || c.Score > best.Score) {
			best = c
		}
		within = append(within, c)
	}
	sortByScore(back)
	if best == nil {
		return within, back, ""
	}

	list = make([]*rank.Candidate, 0, len(ranked))
	list = append(list, best)
	for _, c := range within {
		if c != best {
			list = append(list, c)
		}
	}
	sortByScore(list[1:])
	list = append(list, back...)

	a.logger.Debug().
		Str("item_id", best.Item.ID).
		Float64("gap", gap.Gap).
		Float64("urgency", urgency).
		Int("deprioritized", len(back)).
		Msg("distance-to-discount override")

	return truncate(list, a.cfg.OutputWidth), nil, NudgeExplanation(best.Item, gap)
}

// anchorFirst puts the highest Anchor-head candidate first and orders the
// rest by business score.
func anchorFirst(ranked []*rank.Candidate) []*rank.Candidate {
	top := 0
	for i, c := range ranked {
		if c.Heads.Anchor > ranked[top].Heads.Anchor {
			top = i
		}
	}

	rest := make([]*rank.Candidate, 0, len(ranked)-1)
	rest = append(rest, ranked[:top]...)
	rest = append(rest, ranked[top+1:]...)
	sortByScore(rest)

	return append([]*rank.Candidate{ranked[top]}, rest...)
}

func sortByScore(list []*rank.Candidate) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Score > list[j].Score
	})
}

func truncate(list []*rank.Candidate, width int) []*rank.Candidate {
	if width > 0 && len(list) > width {
		return list[:width]
	}
	return list
}

func (a *Assembler) slots(list []*rank.Candidate, explanation string) []rank.RankedSlot {
	out := make([]rank.RankedSlot, len(list))
	for i, c := range list {
		out[i] = rank.RankedSlot{
			Position:    i + 1,
			ItemID:      c.Item.ID,
			Name:        c.Item.Name,
			Price:       c.Item.Price,
			Category:    c.Item.Category,
			Subcategory: c.Item.Subcategory,
			Score:       c.Score,
			Breakdown:   c.Breakdown,
		}
	}
	out[0].Explanation = explanation
	return out
}

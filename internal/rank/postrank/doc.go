// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package postrank applies business rules to the scored candidate list.
//
// Post-ranking operates on candidates already sorted by business score:
//
//	Scorer -> Cap -> Rules -> Truncate -> Position Assembler
//
// # Rules
//
// Rules run in a fixed order and may be disabled by name through
// rank.PostRankConfig.Disabled:
//
//   - diversity: at most MaxPerSubcategory items per subcategory
//   - category_mix: every role with candidates appears within the output width
//   - price_shock: drop items far from the cart's average item price
//   - margin_cap: ultra-high-margin items are at most MarginCapShare of the rail
//   - time_of_day: drop items not sold in the current meal period
//
// After the rules the list is truncated to the output width and the margin
// cap is checked again against the final length.
//
// Rules only drop or reorder. Relative score order among kept items is
// preserved except for the category-mix promotion, which places the promoted
// item at the end of the output window.
package postrank

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package rank implements the online add-on ranking pipeline for shopping carts.
//
// # Architecture
//
// Every cart mutation triggers one ranking request. A request runs the following
// stages strictly in order, each consuming the output of the previous one:
//
//  1. Filter chain: Availability/Margin, Dietary, Cuisine Coherence,
//     Quantity Saturation, Dedup/Fatigue (package filters)
//  2. Candidate retrieval: exact inner-product search over the eligible pool
//     (package retrieval)
//  3. Trajectory vector: order-sensitive encoding of the cart sequence, cached
//     per cart version (package trajectory)
//  4. Feature assembly: static, dynamic and trajectory features merged into one
//     flat record per candidate (package features)
//  5. Multi-objective scoring: five prediction heads combined into a business
//     score (package scoring)
//  6. Post-ranking business rules (package postrank)
//  7. Position assembly with distance-to-discount override (package position)
//
// This package owns the shared types, configuration, error taxonomy and the
// Engine that orchestrates the stages. The stages themselves live in
// subpackages and are injected through the interfaces in pipeline.go, which
// keeps them independently testable and swappable.
//
// # Sessions
//
// The only mutable shared state is per-session: ignore counters, rejection
// count and the last shown rail. The Engine reaches it exclusively through
// SessionStore.Do, which serializes requests for one session while leaving
// different sessions fully independent.
//
// # Latency
//
// Requests run against a budget (DegradationConfig). When the scoring cutoff
// passes before scoring starts, candidates are ranked by similarity alone. When
// the post-ranking cutoff passes before post-ranking starts, the raw top-N by
// business score is returned. Both cases set Response.Degraded.
//
// # Usage
//
//	engine, err := rank.NewEngine(rank.DefaultConfig(), rank.Components{
//	    Filters:    filters.NewChain(cfg.Filters),
//	    Retriever:  retrieval.New(cfg.Retrieval),
//	    ...
//	}, logger)
//
//	resp, err := engine.Rank(ctx, rank.Request{
//	    SessionID:    "s-1",
//	    UserID:       "U00001",
//	    RestaurantID: "R0001",
//	    Cart:         []rank.CartLine{{ItemID: "I00010", Quantity: 1, Seq: 1}},
//	})
package rank

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package testinfra provides shared test fixtures: a deterministic restaurant
// menu with embeddings, catalog snapshots and per-request Turn builders.
//
// The standard menu belongs to restaurant R0001 (north_indian, free delivery
// at 199, 10% off at 299, free dessert at 399) and also carries a handful of
// chinese items so cuisine coherence has something to reject:
//
//	cat := testinfra.Catalog()
//	turn := testinfra.NewTurn(cat, []string{"I001", "I020"},
//	    testinfra.WithToggle(rank.DietVegan),
//	)
//
// Fixture times default to FixedNow, a Wednesday at 20:00 UTC (dinner).
package testinfra

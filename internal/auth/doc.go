// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package auth guards the admin API with HS256 JWT bearer tokens.
//
// Ranking and feedback routes are unauthenticated service-to-service calls;
// only weight updates, artifact reloads and stats require a token carrying
// the admin role. Tokens are minted out of band with GenerateToken (see
// cmd/server -mint-token).
package auth

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

// Package services adapts AddonRail components to suture.Service.
//
// Each wrapper turns a component lifecycle (blocking server, ticker loop,
// message router) into Serve(ctx) error and names itself through String for
// supervisor logs.
package services

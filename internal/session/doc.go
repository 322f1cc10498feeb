// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

/*
Package session provides the session state stores behind rank.SessionStore.

Two backends are available:

  - MemoryStore: in-process map, the default for single-instance deployments
    and tests
  - BadgerStore: BadgerDB-backed store that survives restarts

Both serialize access per session id with a reference-counted lock table, so
requests for the same session run one at a time while different sessions
never block each other. Do hands the callback a working copy of the state and
commits it only when the callback returns nil.

Idle sessions are destroyed by Expire, which the session janitor service
calls on an interval.
*/
package session

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package session

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Store is a rank.SessionStore with expiry and counting.
type Store interface {
	rank.SessionStore

	// Get returns a copy of a live session, or rank.ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*rank.SessionState, error)

	// Expire destroys sessions idle for longer than the store TTL and
	// returns how many were removed.
	Expire(ctx context.Context) (int, error)

	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
}

// lockTable hands out one mutex per session id. Entries are removed when
// their last holder releases them.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

// lock acquires the session lock. It fails without holding the lock when
// ctx is done by the time the lock is acquired.
func (t *lockTable) lock(ctx context.Context, id string) (func(), error) {
	t.mu.Lock()
	e, ok := t.locks[id]
	if !ok {
		e = &lockEntry{}
		t.locks[id] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	if err := ctx.Err(); err != nil {
		t.release(id, e)
		return nil, err
	}
	return func() { t.release(id, e) }, nil
}

func (t *lockTable) release(id string, e *lockEntry) {
	e.mu.Unlock()
	t.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(t.locks, id)
	}
	t.mu.Unlock()
}

// size returns the number of ids with a holder or waiter.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// idle reports whether a session last updated at updated has outlived ttl.
func idle(updated, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && !updated.IsZero() && now.Sub(updated) > ttl
}

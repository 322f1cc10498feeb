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

// MemoryStore is an in-memory Store. Suitable for a single instance and for
// testing. For persistence across restarts, use BadgerStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*rank.SessionState

	locks *lockTable
	ttl   time.Duration
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the wall clock used for creation times and expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewMemoryStore creates a store whose sessions expire after ttl without an
// update. A zero ttl disables expiry.
func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		sessions: make(map[string]*rank.SessionState),
		locks:    newLockTable(),
		ttl:      ttl,
		now:      o.now,
	}
}

// Do runs fn on a working copy of the session and commits it when fn
// returns nil. Unknown and expired sessions start fresh.
func (s *MemoryStore) Do(ctx context.Context, sessionID string, fn func(*rank.SessionState) error) error {
	unlock, err := s.locks.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	now := s.now()

	s.mu.RLock()
	stored, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	var work *rank.SessionState
	if ok && !idle(stored.UpdatedAt, now, s.ttl) {
		snap := stored.Snapshot()
		work = &snap
	} else {
		work = rank.NewSessionState(sessionID, now)
	}

	if err := fn(work); err != nil {
		return err
	}

	s.mu.Lock()
	s.sessions[sessionID] = work
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the stored session.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (*rank.SessionState, error) {
	s.mu.RLock()
	stored, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || idle(stored.UpdatedAt, s.now(), s.ttl) {
		return nil, rank.ErrSessionNotFound
	}
	snap := stored.Snapshot()
	return &snap, nil
}

// Delete removes a session. Returns rank.ErrSessionNotFound for unknown ids.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	unlock, err := s.locks.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return rank.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Expire removes sessions idle for longer than the TTL.
func (s *MemoryStore) Expire(_ context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, st := range s.sessions {
		if idle(st.UpdatedAt, now, s.ttl) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored sessions, including idle ones not yet expired.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Key prefix for BadgerDB storage
const sessionKeyPrefix = "session:"

// BadgerStore implements Store using BadgerDB for durable storage.
// Entries carry a Badger TTL so abandoned sessions also disappear from disk
// without a janitor pass.
type BadgerStore struct {
	db    *badger.DB
	locks *lockTable
	ttl   time.Duration
	now   func() time.Time
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore creates a BadgerDB-backed session store.
func NewBadgerStore(db *badger.DB, ttl time.Duration, opts ...Option) *BadgerStore {
	o := buildOptions(opts)
	return &BadgerStore{
		db:    db,
		locks: newLockTable(),
		ttl:   ttl,
		now:   o.now,
	}
}

// OpenBadger opens a BadgerDB at dir. An empty dir opens an in-memory database.
func OpenBadger(dir string) (*badger.DB, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

// Do runs fn on the stored session (or a fresh one) and writes it back when
// fn returns nil.
func (s *BadgerStore) Do(ctx context.Context, sessionID string, fn func(*rank.SessionState) error) error {
	unlock, err := s.locks.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	now := s.now()
	work, err := s.load(sessionID)
	switch {
	case errors.Is(err, rank.ErrSessionNotFound):
		work = rank.NewSessionState(sessionID, now)
	case err != nil:
		return err
	case idle(work.UpdatedAt, now, s.ttl):
		work = rank.NewSessionState(sessionID, now)
	}
	if work.IgnoreCounters == nil {
		work.IgnoreCounters = make(map[rank.Category]int)
	}

	if err := fn(work); err != nil {
		return err
	}

	data, err := json.Marshal(work)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(sessionKey(sessionID), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set session: %w", err)
		}
		return nil
	})
}

func (s *BadgerStore) load(sessionID string) (*rank.SessionState, error) {
	var st rank.SessionState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return rank.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &st)
		})
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Get retrieves a session by ID.
func (s *BadgerStore) Get(_ context.Context, sessionID string) (*rank.SessionState, error) {
	st, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	if idle(st.UpdatedAt, s.now(), s.ttl) {
		return nil, rank.ErrSessionNotFound
	}
	return st, nil
}

// Delete removes a session by ID.
func (s *BadgerStore) Delete(ctx context.Context, sessionID string) error {
	unlock, err := s.locks.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		key := sessionKey(sessionID)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return rank.ErrSessionNotFound
		} else if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// Expire removes sessions idle for longer than the TTL.
func (s *BadgerStore) Expire(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	now := s.now()
	var expiredIDs []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var st rank.SessionState
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &st)
			})
			if err != nil {
				continue
			}
			if idle(st.UpdatedAt, now, s.ttl) {
				expiredIDs = append(expiredIDs, st.SessionID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan sessions: %w", err)
	}

	count := 0
	for _, id := range expiredIDs {
		if err := s.Delete(ctx, id); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// Count returns the total number of sessions in the store.
func (s *BadgerStore) Count(_ context.Context) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

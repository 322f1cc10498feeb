// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/addonrail/internal/rank"
)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)}
}

type storeFactory func(t *testing.T, ttl time.Duration, clock *fakeClock) Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(_ *testing.T, ttl time.Duration, clock *fakeClock) Store {
			return NewMemoryStore(ttl, WithClock(clock.Now))
		},
		"badger": func(t *testing.T, ttl time.Duration, clock *fakeClock) Store {
			t.Helper()
			db, err := OpenBadger("")
			if err != nil {
				t.Fatalf("OpenBadger() error = %v", err)
			}
			t.Cleanup(func() { db.Close() })
			return NewBadgerStore(db, ttl, WithClock(clock.Now))
		},
	}
}

func TestStore_DoCreatesAndCommits(t *testing.T) {
	t.Parallel()

	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			clock := newClock()
			store := factory(t, time.Hour, clock)

			err := store.Do(ctx, "s1", func(s *rank.SessionState) error {
				if s.SessionID != "s1" || len(s.Cart) != 0 {
					t.Errorf("new session = %+v", s)
				}
				s.DietToggle = rank.DietVegan
				s.IgnoreCounters[rank.CategoryDessert] = 2
				s.SyncCart([]rank.CartLine{{ItemID: "I001", Quantity: 1, Seq: 1}}, clock.Now())
				return nil
			})
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}

			err = store.Do(ctx, "s1", func(s *rank.SessionState) error {
				if s.DietToggle != rank.DietVegan {
					t.Errorf("DietToggle = %s, want vegan", s.DietToggle)
				}
				if s.IgnoreCount(rank.CategoryDessert) != 2 {
					t.Errorf("ignore[dessert] = %d, want 2", s.IgnoreCount(rank.CategoryDessert))
				}
				if len(s.Cart) != 1 || s.Cart[0].ItemID != "I001" {
					t.Errorf("Cart = %+v", s.Cart)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}

			if n, _ := store.Count(ctx); n != 1 {
				t.Errorf("Count() = %d, want 1", n)
			}
		})
	}
}

func TestStore_DoErrorDiscardsChanges(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := factory(t, time.Hour, newClock())

			_ = store.Do(ctx, "s1", func(s *rank.SessionState) error {
				s.ConsecutiveRejections = 1
				return nil
			})
			err := store.Do(ctx, "s1", func(s *rank.SessionState) error {
				s.ConsecutiveRejections = 99
				s.IgnoreCounters[rank.CategoryBeverage] = 5
				return errBoom
			})
			if !errors.Is(err, errBoom) {
				t.Fatalf("Do() error = %v, want boom", err)
			}

			_ = store.Do(ctx, "s1", func(s *rank.SessionState) error {
				if s.ConsecutiveRejections != 1 || s.IgnoreCount(rank.CategoryBeverage) != 0 {
					t.Errorf("failed update leaked: %+v", s)
				}
				return nil
			})
		})
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()

	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := factory(t, time.Hour, newClock())

			if err := store.Delete(ctx, "missing"); !errors.Is(err, rank.ErrSessionNotFound) {
				t.Errorf("Delete(missing) error = %v, want ErrSessionNotFound", err)
			}

			_ = store.Do(ctx, "s1", func(s *rank.SessionState) error {
				s.ConsecutiveRejections = 3
				return nil
			})
			if err := store.Delete(ctx, "s1"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			_ = store.Do(ctx, "s1", func(s *rank.SessionState) error {
				if s.ConsecutiveRejections != 0 {
					t.Error("deleted session was resurrected with old state")
				}
				return nil
			})
		})
	}
}

func TestStore_Expire(t *testing.T) {
	t.Parallel()

	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			clock := newClock()
			store := factory(t, 30*time.Minute, clock)

			touch := func(id string) {
				_ = store.Do(ctx, id, func(s *rank.SessionState) error {
					s.UpdatedAt = clock.Now()
					return nil
				})
			}
			touch("old")
			clock.Advance(20 * time.Minute)
			touch("fresh")
			clock.Advance(15 * time.Minute)

			n, err := store.Expire(ctx)
			if err != nil {
				t.Fatalf("Expire() error = %v", err)
			}
			if n != 1 {
				t.Errorf("Expire() = %d, want 1", n)
			}
			if c, _ := store.Count(ctx); c != 1 {
				t.Errorf("Count() = %d, want 1", c)
			}
		})
	}
}

func TestStore_GetThroughInterface(t *testing.T) {
	t.Parallel()

	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			clock := newClock()
			store := factory(t, time.Hour, clock)

			if _, err := store.Get(ctx, "missing"); !errors.Is(err, rank.ErrSessionNotFound) {
				t.Fatalf("Get(missing) error = %v, want ErrSessionNotFound", err)
			}

			_ = store.Do(ctx, "s1", func(s *rank.SessionState) error {
				s.DietToggle = rank.DietVegan
				return nil
			})
			got, err := store.Get(ctx, "s1")
			if err != nil || got.DietToggle != rank.DietVegan {
				t.Fatalf("Get() = %+v, %v", got, err)
			}

			got.DietToggle = rank.DietUnset
			again, err := store.Get(ctx, "s1")
			if err != nil || again.DietToggle != rank.DietVegan {
				t.Errorf("Get() returned shared state: %+v, %v", again, err)
			}
		})
	}
}

func TestStore_IdleSessionStartsFresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newClock()
	store := NewMemoryStore(time.Minute, WithClock(clock.Now))

	_ = store.Do(ctx, "s1", func(s *rank.SessionState) error {
		s.ConsecutiveRejections = 4
		s.UpdatedAt = clock.Now()
		return nil
	})
	clock.Advance(2 * time.Minute)

	if _, err := store.Get(ctx, "s1"); !errors.Is(err, rank.ErrSessionNotFound) {
		t.Errorf("Get(idle) error = %v, want ErrSessionNotFound", err)
	}
	_ = store.Do(ctx, "s1", func(s *rank.SessionState) error {
		if s.ConsecutiveRejections != 0 {
			t.Error("idle session kept its state")
		}
		return nil
	})
}

func TestMemoryStore_SerializesPerSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(0)

	var inside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Do(ctx, "shared", func(s *rank.SessionState) error {
				if inside.Add(1) != 1 {
					t.Error("two callbacks ran concurrently for one session")
				}
				s.ConsecutiveRejections++
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	st, err := store.Get(ctx, "shared")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.ConsecutiveRejections != 50 {
		t.Errorf("ConsecutiveRejections = %d, want 50", st.ConsecutiveRejections)
	}
	if store.locks.size() != 0 {
		t.Errorf("lock table holds %d entries after all callers returned", store.locks.size())
	}
}

func TestMemoryStore_DifferentSessionsDoNotBlock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(0)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.Do(ctx, "a", func(*rank.SessionState) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	done := make(chan struct{})
	go func() {
		_ = store.Do(ctx, "b", func(*rank.SessionState) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("session b blocked on session a")
	}
	close(release)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore(0)
	called := false
	err := store.Do(ctx, "s1", func(*rank.SessionState) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("callback ran with a canceled context")
	}
}

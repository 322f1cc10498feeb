// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestLRU_BasicOperations(t *testing.T) {
	t.Parallel()

	c := NewLRU[[]float64](3, time.Minute)
	c.Add("a", []float64{1})
	c.Add("b", []float64{2})
	c.Add("c", []float64{3})

	for _, key := range []string{"a", "b", "c"} {
		if _, found := c.Get(key); !found {
			t.Errorf("Expected to find key %q", key)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Expected len 3, got %d", c.Len())
	}

	v, _ := c.Get("b")
	if len(v) != 1 || v[0] != 2 {
		t.Errorf("Get(b) = %v, want [2]", v)
	}
}

func TestLRU_Eviction(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](3, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// 'a' becomes most recently used, so 'b' is evicted next.
	c.Get("a")
	c.Add("d", 4)

	if _, found := c.Get("b"); found {
		t.Error("Expected 'b' to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, found := c.Get(key); !found {
			t.Errorf("Expected %q to be present", key)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestLRU_TTLExpiration(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRU[int](10, time.Minute)
	c.SetClock(func() time.Time { return now })

	c.Add("a", 1)
	now = now.Add(30 * time.Second)
	if _, found := c.Get("a"); !found {
		t.Error("Expected 'a' before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, found := c.Get("a"); found {
		t.Error("Expected 'a' to be expired")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry to be removed, len = %d", c.Len())
	}
}

func TestLRU_CleanupExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRU[int](10, time.Minute)
	c.SetClock(func() time.Time { return now })

	c.Add("old1", 1)
	c.Add("old2", 2)
	now = now.Add(45 * time.Second)
	c.Add("fresh", 3)
	now = now.Add(30 * time.Second)

	if removed := c.CleanupExpired(); removed != 2 {
		t.Errorf("CleanupExpired() = %d, want 2", removed)
	}
	if _, found := c.Get("fresh"); !found {
		t.Error("Expected 'fresh' to survive cleanup")
	}
}

func TestLRU_RemovePrefix(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](10, time.Minute)
	c.Add("s1|1:aa", 1)
	c.Add("s1|2:bb", 2)
	c.Add("s2|1:aa", 3)

	if removed := c.RemovePrefix("s1|"); removed != 2 {
		t.Errorf("RemovePrefix() = %d, want 2", removed)
	}
	if _, found := c.Get("s2|1:aa"); !found {
		t.Error("Expected other session's entry to remain")
	}
	if c.Remove("s1|1:aa") {
		t.Error("Remove() of a removed key should report false")
	}
}

func TestLRU_Stats(t *testing.T) {
	t.Parallel()

	c := NewLRU[string](10, time.Minute)
	c.Add("a", "x")
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("Stats() = %+v, want hits=2 misses=1 size=1", s)
	}
	if hr := s.HitRate(); hr < 66 || hr > 67 {
		t.Errorf("HitRate() = %f, want ~66.7", hr)
	}
}

func TestLRU_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](100, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := strconv.Itoa(g*1000 + i%50)
				c.Add(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Len() = %d exceeds capacity", c.Len())
	}
}

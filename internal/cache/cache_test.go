package cache

import (
	"testing"
	"time"
)

func newTestCache(maxSize int, clock *time.Time) *LRUCache[int] {
	c := NewLRUCache[int](maxSize, time.Minute)
	c.now = func() time.Time { return *clock }
	return c
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTestCache(2, &clock)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTestCache(10, &clock)

	c.Set("a", 1)
	c.Set("b", 2)
	clock = clock.Add(2 * time.Minute)
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1 (b)", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestDeletePrefix(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTestCache(10, &clock)

	c.Set("t1\x002024", 1)
	c.Set("t1\x002025", 2)
	c.Set("t10\x002024", 3)

	if n := c.DeletePrefix("t1\x00"); n != 2 {
		t.Errorf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("t10\x002024"); !ok {
		t.Error("t10 entry must survive invalidation of t1")
	}
}

func TestManager(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTestCache(10, &clock)
	c.Set("a", 1)
	clock = clock.Add(time.Hour)

	m := NewManager()
	m.Register(c)
	if n := m.CleanAll(); n != 1 {
		t.Errorf("CleanAll() = %d, want 1", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

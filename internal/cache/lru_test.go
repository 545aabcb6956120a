package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestLRU(t *testing.T, size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU(t, 4, time.Minute)

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(ctx, "a", "1")
	got, ok := c.Get(ctx, "a")
	if !ok || got != "1" {
		t.Fatalf("Get(a) = %q, %v", got, ok)
	}

	c.Set(ctx, "a", "2")
	if got, _ := c.Get(ctx, "a"); got != "2" {
		t.Fatalf("overwrite: got %q", got)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestLRU(t, 4, time.Minute)

	c.Set(ctx, "a", "1")
	clock.Advance(59 * time.Second)
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatal("entry expired too early")
	}

	clock.Advance(2 * time.Second)
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("expected entry to be expired")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry not removed, size %d", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU(t, 2, time.Hour)

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	c.Get(ctx, "a") // a is now most recent
	c.Set(ctx, "c", "3")

	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestLRUCache_Delete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU(t, 2, time.Hour)

	c.Set(ctx, "a", "1")
	c.Delete(ctx, "a")
	c.Delete(ctx, "never-set")

	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("deleted key still present")
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestLRU(t, 10, time.Minute)

	c.Set(ctx, "old1", "x")
	c.Set(ctx, "old2", "x")
	clock.Advance(30 * time.Second)
	c.Set(ctx, "fresh", "x")
	clock.Advance(45 * time.Second)

	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int](64, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", (id*j)%100)
				c.Set(ctx, key, j)
				c.Get(ctx, key)
				if j%10 == 0 {
					c.Delete(ctx, key)
				}
			}
		}(i)
	}
	wg.Wait()

	if c.Size() > 64 {
		t.Fatalf("cache grew past max size: %d", c.Size())
	}
}

func TestManager_CleanNow(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestLRU(t, 10, time.Minute)
	c.Set(ctx, "a", "1")
	clock.Advance(2 * time.Minute)

	m := NewManager()
	m.Register(c)
	m.Register("not a cleaner")

	if m.Registered() != 1 {
		t.Fatalf("Registered() = %d, want 1", m.Registered())
	}
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("CleanNow() = %d, want 1", n)
	}

	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
	m.Stop()
}

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestCache() (*InMemoryCache, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewInMemoryCache()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestInMemoryCache_GetSet(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	err := c.SetMany(ctx, map[string]string{"key1": "value1", "key2": "value2"}, time.Hour)
	if err != nil {
		t.Fatalf("SetMany failed: %v", err)
	}

	got, err := c.GetMany(ctx, []string{"key1", "key2", "nonexistent"})
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 hits, got %v", got)
	}
	if got["key1"] != "value1" || got["key2"] != "value2" {
		t.Errorf("Unexpected values: %v", got)
	}
	if _, ok := got["nonexistent"]; ok {
		t.Error("Missing key should be omitted")
	}
}

func TestInMemoryCache_TTL(t *testing.T) {
	c, now := newTestCache()
	ctx := context.Background()

	c.SetMany(ctx, map[string]string{"key1": "value1"}, time.Second)

	got, _ := c.GetMany(ctx, []string{"key1"})
	if got["key1"] != "value1" {
		t.Error("Value should be available immediately after set")
	}

	*now = now.Add(time.Second)

	got, _ = c.GetMany(ctx, []string{"key1"})
	if _, ok := got["key1"]; ok {
		t.Error("Value should be expired after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Expired entry should be removed on read, Len() = %d", c.Len())
	}
}

func TestInMemoryCache_NoTTL(t *testing.T) {
	c, now := newTestCache()
	ctx := context.Background()

	c.SetMany(ctx, map[string]string{"key1": "value1"}, 0)
	*now = now.Add(365 * 24 * time.Hour)

	got, _ := c.GetMany(ctx, []string{"key1"})
	if got["key1"] != "value1" {
		t.Error("Entry without TTL should never expire")
	}
}

func TestInMemoryCache_Overwrite(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	c.SetMany(ctx, map[string]string{"key1": "value1"}, time.Hour)
	c.SetMany(ctx, map[string]string{"key1": "value2"}, time.Hour)

	got, _ := c.GetMany(ctx, []string{"key1"})
	if got["key1"] != "value2" {
		t.Errorf("Expected overwritten value, got %q", got["key1"])
	}
}

func TestInMemoryCache_Clear(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	c.SetMany(ctx, map[string]string{"key1": "value1", "key2": "value2"}, time.Hour)
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", c.Len())
	}
}

func TestInMemoryCache_Concurrent(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key%d", n)
			c.SetMany(ctx, map[string]string{key: "value"}, time.Minute)
		}(i)
		go func(n int) {
			defer wg.Done()
			c.GetMany(ctx, []string{fmt.Sprintf("key%d", n)})
		}(i)
	}

	wg.Wait()

	if c.Len() != 100 {
		t.Errorf("Len() = %d, want 100", c.Len())
	}
}

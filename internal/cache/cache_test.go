package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/muleguard/internal/domain"
)

func TestLRUCacheGetSetDelete(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	if v, err := c.Get(ctx, "missing"); err != nil || v != nil {
		t.Fatalf("expected miss, got %v, %v", v, err)
	}

	if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	v, err := c.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(v) != "v1" {
		t.Fatalf("expected v1, got %q", v)
	}

	if err := c.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if v, err := c.Get(ctx, "k1"); err != nil || v != nil {
		t.Fatalf("expected miss after delete, got %v, %v", v, err)
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("v1"), time.Millisecond); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if v, err := c.Get(ctx, "k1"); err != nil || v != nil {
		t.Fatalf("expected expired entry to be a miss, got %v, %v", v, err)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(2)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)
	_ = c.Set(ctx, "c", []byte("3"), time.Minute)

	if v, _ := c.Get(ctx, "a"); v != nil {
		t.Errorf("expected a to be evicted")
	}
	if v, _ := c.Get(ctx, "c"); v == nil {
		t.Errorf("expected c to still be present")
	}
}

func TestLRUCacheIncrementCounter(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	n1, err := c.IncrementCounter(ctx, "acct-1", time.Minute)
	if err != nil {
		t.Fatalf("IncrementCounter returned error: %v", err)
	}
	if n1 != 1 {
		t.Fatalf("expected first increment to be 1, got %d", n1)
	}

	n2, err := c.IncrementCounter(ctx, "acct-1", time.Minute)
	if err != nil {
		t.Fatalf("IncrementCounter returned error: %v", err)
	}
	if n2 != 2 {
		t.Fatalf("expected second increment to be 2, got %d", n2)
	}

	n3, err := c.IncrementCounter(ctx, "acct-2", time.Minute)
	if err != nil {
		t.Fatalf("IncrementCounter returned error: %v", err)
	}
	if n3 != 1 {
		t.Fatalf("expected distinct key to start at 1, got %d", n3)
	}
}

func TestLRUCounterWindowExpiry(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	if _, err := c.IncrementCounter(ctx, "acct-1", time.Millisecond); err != nil {
		t.Fatalf("IncrementCounter returned error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	n, err := c.IncrementCounter(ctx, "acct-1", time.Minute)
	if err != nil {
		t.Fatalf("IncrementCounter returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected counter to reset after window expiry, got %d", n)
	}
}

func TestLRUCachePingAndClose(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	_ = c.Set(ctx, "k1", []byte("v1"), time.Minute)
	if err := c.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if v, _ := c.Get(ctx, "k1"); v != nil {
		t.Errorf("expected cache to be empty after Close")
	}
}

func TestNewUnsupportedCacheType(t *testing.T) {
	_, err := New(domain.CacheConfig{Type: "bogus"})
	if err == nil {
		t.Fatal("expected error for unsupported cache type")
	}
}

func TestNewMemoryCache(t *testing.T) {
	c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer c.Close()

	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
}

package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache(128)
	defer cache.Close()
	ctx := context.Background()

	if _, err := cache.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing entry: got %v", err)
	}
	value := []byte(`[1,2]`)
	if err := cache.Set(ctx, "k", value, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[1] = '9'
	if n := cache.Len(); n != 1 {
		t.Fatalf("len after set: got %d", n)
	}
	got, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `[1,2]` {
		t.Fatalf("cache should keep its own copy: got %s", got)
	}
	if err := cache.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := cache.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted entry: got %v", err)
	}
	if n := cache.Len(); n != 0 {
		t.Fatalf("len after delete: got %d", n)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache(128)
	defer cache.Close()
	ctx := context.Background()

	if err := cache.Set(ctx, "k", []byte(`[1]`), 20*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(250 * time.Millisecond)
	if _, err := cache.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired entry: got %v", err)
	}
}

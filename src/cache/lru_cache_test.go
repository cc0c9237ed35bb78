package cache

import (
	"testing"
	"time"
)

func BenchmarkLRUCache_Set(b *testing.B) {
	cache := NewLRUCache(1000, 5*time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Set(HashKey(string(rune(i))), "value")
	}
}

func BenchmarkLRUCache_ConcurrentAccess(b *testing.B) {
	cache := NewLRUCache(1000, 5*time.Minute)
	for i := 0; i < 100; i++ {
		cache.Set(HashKey(string(rune(i))), "value")
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := HashKey(string(rune(i % 100)))
			if i%2 == 0 {
				cache.Get(key)
			} else {
				cache.Set(key, "value")
			}
			i++
		}
	})
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewLRUCache(2, time.Hour)

	cache.Set("a", 1)
	cache.Set("b", 2)
	if _, ok := cache.Get("a"); !ok {
		t.Fatalf("expected a to be cached")
	}
	cache.Set("c", 3)

	if _, ok := cache.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if v, ok := cache.Get("a"); !ok || v.(int) != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewLRUCache(4, time.Minute)
	cache.now = func() time.Time { return now }

	cache.Set("k", "v")
	now = now.Add(30 * time.Second)
	if _, ok := cache.Get("k"); !ok {
		t.Fatalf("entry expired too early")
	}
	now = now.Add(31 * time.Second)
	if _, ok := cache.Get("k"); ok {
		t.Fatalf("expected entry to expire")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry should be removed on access")
	}
}

func TestLRUCache_DeleteAndClear(t *testing.T) {
	cache := NewLRUCache(0, time.Hour)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Delete("a")
	if _, ok := cache.Get("a"); ok {
		t.Fatalf("expected a deleted")
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache after Clear")
	}
}

func TestHashKeyStable(t *testing.T) {
	if HashKey("x") != HashKey("x") || HashKey("x") == HashKey("y") {
		t.Fatalf("HashKey must be deterministic and distinguish inputs")
	}
	if len(HashKey("x")) != 64 {
		t.Fatalf("expected hex sha256")
	}
}

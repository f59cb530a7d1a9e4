package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/farmlens/backend/internal/domain"
)

func newTestCache(t *testing.T) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(time.Minute)
	t.Cleanup(c.Close)
	return c
}

func TestMemoryCache_SetAndLoad(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	want := domain.ImageAnalytics{
		CrateCount:             4,
		EstimatedTotalWeightKg: 48.5,
		QualityScore:           domain.QualityGood,
		Confidence:             0.82,
	}

	if err := cache.Set(ctx, "image-analysis:abc", want, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got domain.ImageAnalytics
	if err := cache.Load(ctx, "image-analysis:abc", &got); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestMemoryCache_LoadReturnsCopy(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	original := domain.ProduceClassification{ProduceType: "tomato", Objects: []domain.DetectedObject{{Class: "tomato", Confidence: 0.9}}}
	if err := cache.Set(ctx, "k", original, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var first domain.ProduceClassification
	if err := cache.Load(ctx, "k", &first); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	first.Objects[0].Class = "mutated"

	var second domain.ProduceClassification
	if err := cache.Load(ctx, "k", &second); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if second.Objects[0].Class != "tomato" {
		t.Errorf("cached value was mutated through a previous Load: %q", second.Objects[0].Class)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "short", "expires-soon", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := cache.Get(ctx, "short"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after expiration error = %v, want %v", err, domain.ErrCacheMiss)
	}

	var s string
	if err := cache.Load(ctx, "short", &s); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Load() after expiration error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := newTestCache(t)

	_, err := cache.Get(context.Background(), "non-existent-key")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key := "delete-test"
	if err := cache.Set(ctx, key, "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	if _, err := cache.Get(ctx, key); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after delete error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Exists(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	exists, err := cache.Exists(ctx, "exists-test")
	if err != nil || exists {
		t.Errorf("Exists() = %v, %v; want false, nil for missing key", exists, err)
	}

	if err := cache.Set(ctx, "exists-test", "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	exists, err = cache.Exists(ctx, "exists-test")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v; want true, nil after Set", exists, err)
	}
}

func TestMemoryCache_SweepRemovesExpired(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_ = cache.Set(ctx, "old", 1, time.Millisecond)
	_ = cache.Set(ctx, "fresh", 2, time.Minute)
	time.Sleep(5 * time.Millisecond)

	cache.sweep()

	if size := cache.Size(); size != 1 {
		t.Errorf("Size() after sweep = %d, want 1", size)
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := cache.Set(ctx, string(rune('a'+i)), i, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	cache.Clear()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 after clear", size)
	}
}

func TestMemoryCache_SetRejectsUnmarshalable(t *testing.T) {
	cache := newTestCache(t)

	if err := cache.Set(context.Background(), "bad", make(chan int), time.Minute); err == nil {
		t.Error("Set() error = nil, want error for channel value")
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := string(rune('a' + id))
			if err := cache.Set(ctx, key, id, time.Minute); err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			var got int
			if err := cache.Load(ctx, key, &got); err != nil || got != id {
				t.Errorf("Concurrent Load() = %d, %v; want %d", got, err, id)
			}
		}(i)
	}
	wg.Wait()
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	cache := NewMemoryCache(time.Millisecond)
	cache.Close()
	cache.Close()
}

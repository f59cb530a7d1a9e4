package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/farmlens/backend/internal/domain"
	"github.com/farmlens/backend/internal/infrastructure/cache"
)

// loadingCache answers Load only; Get always misses
type loadingCache struct {
	*MockCacheRepository
	loadCalls int
}

func (c *loadingCache) Get(ctx context.Context, key string) (interface{}, error) {
	return nil, domain.ErrCacheMiss
}

func (c *loadingCache) Load(ctx context.Context, key string, out interface{}) error {
	c.loadCalls++
	result, ok := out.(*domain.ProduceClassification)
	if !ok {
		return domain.ErrCacheMiss
	}
	result.ProduceType = "mango"
	return nil
}

func TestLoadCached_PrefersLoad(t *testing.T) {
	c := &loadingCache{MockCacheRepository: NewMockCacheRepository()}

	var got domain.ProduceClassification
	if !loadCached(context.Background(), c, "classify:abc", &got) {
		t.Fatal("loadCached() = false, want true")
	}
	if c.loadCalls != 1 || got.ProduceType != "mango" {
		t.Errorf("loadCalls = %d, result = %+v", c.loadCalls, got)
	}
}

func TestClassify_MemoryCache(t *testing.T) {
	memoryCache := cache.NewMemoryCache(time.Minute)
	defer memoryCache.Close()

	model := NewMockVisionModel("gemini", `{"produce_type": "tomato", "confidence": 0.9, "objects": []}`)
	svc := NewProduceService(model, memoryCache, time.Hour, nil)
	image := &domain.Image{Data: pngBytes, MIMEType: "image/png", SHA256: "digest-1"}

	for i := 0; i < 2; i++ {
		result, err := svc.Classify(context.Background(), image)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if result.ProduceType != "tomato" {
			t.Errorf("ProduceType = %q, want tomato", result.ProduceType)
		}
	}
	if len(model.requests) != 1 {
		t.Errorf("model called %d times, want 1", len(model.requests))
	}
}

package usecase

import (
	"context"
	"encoding/json"

	"github.com/farmlens/backend/internal/domain"
)

// jsonLoader is implemented by caches that store values as JSON
type jsonLoader interface {
	Load(ctx context.Context, key string, out interface{}) error
}

// loadCached decodes the cached value for key into out and reports whether it was found
func loadCached(ctx context.Context, cache domain.CacheRepository, key string, out interface{}) bool {
	if cache == nil {
		return false
	}
	if loader, ok := cache.(jsonLoader); ok {
		return loader.Load(ctx, key, out) == nil
	}

	value, err := cache.Get(ctx, key)
	if err != nil {
		return false
	}

	var raw []byte
	switch v := value.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		if raw, err = json.Marshal(v); err != nil {
			return false
		}
	}
	return json.Unmarshal(raw, out) == nil
}

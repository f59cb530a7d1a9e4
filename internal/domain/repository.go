package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// VisionRequest is a single prompt, optionally with an image, sent to a model
type VisionRequest struct {
	Prompt      string
	Image       *Image // nil for text-only prompts
	Temperature float32
	MaxTokens   int
}

// VisionModel is a multimodal LLM that answers prompts with JSON text
type VisionModel interface {
	GenerateJSON(ctx context.Context, req VisionRequest) (string, error)
	Name() string
}

// TextDetector is an OCR engine returning the text lines it found in an image
type TextDetector interface {
	DetectText(ctx context.Context, image *Image) ([]string, error)
}

// ImageFetcher downloads image bytes from a URL
type ImageFetcher interface {
	Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

// ImageStore persists captured images and returns their public URL
type ImageStore interface {
	Put(ctx context.Context, key string, image *Image) (string, error)
}

// CaptureRepository persists weight captures
type CaptureRepository interface {
	Save(ctx context.Context, capture *WeightCapture) error
	GetByID(ctx context.Context, id string) (*WeightCapture, error)
	ListByFarmer(ctx context.Context, farmerID string, limit int) ([]*WeightCapture, error)
}

// FarmerRepository persists weekly farmer data
type FarmerRepository interface {
	Upsert(ctx context.Context, data *FarmerData) error
	Get(ctx context.Context, farmerID string) (*FarmerData, error)
	List(ctx context.Context) ([]FarmerSummary, error)
	Delete(ctx context.Context, farmerID string) error
}

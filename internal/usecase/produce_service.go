package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/farmlens/backend/internal/domain"
)

const classifyPrompt = `You are a produce recognition assistant for a farm marketplace.

Identify the fruit or vegetable in this photo and return ONLY valid JSON in this format:
{
  "produce_type": "tomato",
  "variety": "roma",
  "confidence": 0.0,
  "objects": [
    {"class": "tomato", "confidence": 0.0, "count": 0}
  ]
}

Rules:
- produce_type is the common lowercase English name of the main produce item
- variety is optional; leave it empty when unsure
- objects lists every distinct produce item visible with an approximate count
- confidence is between 0.0 and 1.0
- output JSON only, no markdown and no explanation`

// ProduceService classifies produce in images with caching
type ProduceService struct {
	model    domain.VisionModel
	cache    domain.CacheRepository
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewProduceService creates a produce classifier. cache may be nil.
func NewProduceService(model domain.VisionModel, cache domain.CacheRepository, cacheTTL time.Duration, logger *zap.Logger) *ProduceService {
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProduceService{
		model:    model,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.Named("produce"),
	}
}

// Available reports whether a vision model is configured
func (s *ProduceService) Available() bool {
	return s.model != nil
}

// Classify identifies the produce in image. Results are cached by image digest.
func (s *ProduceService) Classify(ctx context.Context, image *domain.Image) (*domain.ProduceClassification, error) {
	if s.model == nil {
		return nil, fmt.Errorf("%w: no vision model configured for classification", domain.ErrBackendUnavailable)
	}
	if image == nil {
		return nil, fmt.Errorf("%w: image is required", domain.ErrInvalidRequest)
	}

	cacheKey := "classify:" + image.SHA256
	var cached domain.ProduceClassification
	if loadCached(ctx, s.cache, cacheKey, &cached) {
		return &cached, nil
	}

	reply, err := s.model.GenerateJSON(ctx, domain.VisionRequest{
		Prompt:      classifyPrompt,
		Image:       image,
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, err
	}

	result, err := ParseClassification(reply)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache classification", zap.Error(err))
		}
	}

	return result, nil
}

// Package app wires configuration into infrastructure and usecases for the
// server and the farmctl CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/farmlens/backend/config"
	"github.com/farmlens/backend/internal/domain"
	"github.com/farmlens/backend/internal/infrastructure/anthropic"
	"github.com/farmlens/backend/internal/infrastructure/cache"
	"github.com/farmlens/backend/internal/infrastructure/gemini"
	"github.com/farmlens/backend/internal/infrastructure/imagefetch"
	"github.com/farmlens/backend/internal/infrastructure/memory"
	"github.com/farmlens/backend/internal/infrastructure/postgres"
	"github.com/farmlens/backend/internal/infrastructure/rekognition"
	"github.com/farmlens/backend/internal/infrastructure/sheets"
	"github.com/farmlens/backend/internal/infrastructure/storage"
	"github.com/farmlens/backend/internal/usecase"
)

const cacheCleanupInterval = 10 * time.Minute

// App holds the wired usecases
type App struct {
	Weights   *usecase.WeightService
	Produce   *usecase.ProduceService
	Analytics *usecase.AnalyticsService
	Farmers   *usecase.FarmerService
	Images    *usecase.ImageLoader

	closers []func()
}

// Build constructs every configured backend and service
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{}

	models, err := buildModels(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	readers, err := buildReaders(ctx, cfg, models, logger)
	if err != nil {
		return nil, err
	}

	memoryCache := cache.NewMemoryCache(cacheCleanupInterval)
	a.closers = append(a.closers, memoryCache.Close)

	captures, farmers, err := a.buildRepositories(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Images = usecase.NewImageLoader(imagefetch.NewFetcher(cfg.Image.FetchTimeout), cfg.Image.MaxBytes)

	analyticsModel := models[cfg.Recognition.AnalyticsBackend]
	a.Produce = usecase.NewProduceService(analyticsModel, memoryCache, cfg.Cache.TTL, logger)
	a.Analytics = usecase.NewAnalyticsService(analyticsModel, memoryCache, cfg.Cache.TTL, logger)
	a.Farmers = usecase.NewFarmerService(farmers, a.Analytics, logger)

	opts := []usecase.WeightServiceOption{usecase.WithClassifier(a.Produce)}
	if cfg.AWS.S3Bucket != "" {
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			Bucket:          cfg.AWS.S3Bucket,
			Endpoint:        cfg.AWS.S3Endpoint,
			PublicBaseURL:   cfg.AWS.PublicBaseURL,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create S3 store: %w", err)
		}
		opts = append(opts, usecase.WithImageStore(store))
		logger.Info("capture images stored in S3", zap.String("bucket", cfg.AWS.S3Bucket))
	}

	a.Weights = usecase.NewWeightService(
		a.Images,
		readers,
		captures,
		usecase.WeightServiceConfig{
			MinKg:         cfg.Weight.MinKg,
			MaxKg:         cfg.Weight.MaxKg,
			MinConfidence: cfg.Recognition.MinConfidence,
		},
		logger,
		opts...,
	)

	return a, nil
}

// buildModels creates a client for every LLM backend some task uses
func buildModels(ctx context.Context, cfg *config.Config, logger *zap.Logger) (map[string]domain.VisionModel, error) {
	models := make(map[string]domain.VisionModel)

	if cfg.UsesBackend(config.BackendGemini) {
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:   cfg.Gemini.APIKey,
			Model:    cfg.Gemini.Model,
			Project:  cfg.Gemini.Project,
			Location: cfg.Gemini.Location,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		models[config.BackendGemini] = client
		logger.Info("Gemini backend configured", zap.String("model", client.Model()))
	}

	if cfg.UsesBackend(config.BackendClaude) {
		models[config.BackendClaude] = anthropic.NewClient(anthropic.Config{
			APIKey:            cfg.Anthropic.APIKey,
			BaseURL:           cfg.Anthropic.BaseURL,
			Model:             cfg.Anthropic.Model,
			Timeout:           cfg.Anthropic.Timeout,
			RequestsPerMinute: cfg.RateLimit.Claude,
		}, logger)
		logger.Info("Claude backend configured", zap.String("model", cfg.Anthropic.Model))
	}

	return models, nil
}

// buildReaders returns the weight readers in configured order
func buildReaders(ctx context.Context, cfg *config.Config, models map[string]domain.VisionModel, logger *zap.Logger) ([]usecase.WeightReader, error) {
	readers := make([]usecase.WeightReader, 0, len(cfg.Recognition.WeightBackends))
	for _, name := range cfg.Recognition.WeightBackends {
		switch name {
		case config.BackendOCR:
			detector, err := rekognition.NewTextDetector(ctx, cfg.AWS.Region, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create OCR backend: %w", err)
			}
			readers = append(readers, usecase.NewOCRWeightReader(detector, cfg.Weight.DefaultUnit))
		default:
			model, ok := models[name]
			if !ok {
				return nil, fmt.Errorf("%w: weight backend %s", domain.ErrBackendUnavailable, name)
			}
			readers = append(readers, usecase.NewVisionWeightReader(model, cfg.Weight.DefaultUnit))
		}
	}
	return readers, nil
}

func (a *App) buildRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.CaptureRepository, domain.FarmerRepository, error) {
	var captures domain.CaptureRepository
	var farmers domain.FarmerRepository

	switch cfg.Database.Type {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, pool.Close)
		captures = postgres.NewCaptureRepository(pool)
		farmers = postgres.NewFarmerRepository(pool)
		logger.Info("using Postgres storage")
	default:
		captures = memory.NewCaptureRepository()
		farmers = memory.NewFarmerRepository()
		logger.Info("using in-memory storage")
	}

	if cfg.Sheets.SpreadsheetID != "" {
		mirror, err := sheets.NewMirror(ctx, captures, sheets.Config{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			CredentialsFile: cfg.Sheets.CredentialsFile,
			Range:           cfg.Sheets.Range,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Sheets mirror: %w", err)
		}
		captures = mirror
		logger.Info("mirroring captures to Google Sheets")
	}

	return captures, farmers, nil
}

// Close releases connections and background workers, newest first
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

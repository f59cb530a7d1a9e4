package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/farmlens/backend/internal/domain"
)

// List limits for ListCaptures
const (
	DefaultCaptureLimit = 50
	MaxCaptureLimit     = 500
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Classifier identifies the produce in an image
type Classifier interface {
	Classify(ctx context.Context, image *domain.Image) (*domain.ProduceClassification, error)
}

// WeightServiceConfig holds validation thresholds for weight captures
type WeightServiceConfig struct {
	MinKg         float64
	MaxKg         float64
	MinConfidence float64
}

// WeightService orchestrates weight capture: load, read, validate, store
type WeightService struct {
	loader     *ImageLoader
	readers    []WeightReader
	classifier Classifier
	store      domain.ImageStore
	repo       domain.CaptureRepository
	config     WeightServiceConfig
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// WeightServiceOption configures optional WeightService collaborators
type WeightServiceOption func(*WeightService)

// WithClassifier classifies produce when the request names none
func WithClassifier(c Classifier) WeightServiceOption {
	return func(s *WeightService) { s.classifier = c }
}

// WithImageStore uploads capture images
func WithImageStore(store domain.ImageStore) WeightServiceOption {
	return func(s *WeightService) { s.store = store }
}

// NewWeightService creates a weight service. readers are tried in order.
func NewWeightService(
	loader *ImageLoader,
	readers []WeightReader,
	repo domain.CaptureRepository,
	config WeightServiceConfig,
	logger *zap.Logger,
	opts ...WeightServiceOption,
) *WeightService {
	if config.MaxKg <= 0 {
		config.MaxKg = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &WeightService{
		loader:  loader,
		readers: readers,
		repo:    repo,
		config:  config,
		logger:  logger.Named("weight"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backends returns the reader names in the order they are tried
func (s *WeightService) Backends() []string {
	names := make([]string, len(s.readers))
	for i, r := range s.readers {
		names[i] = r.Name()
	}
	return names
}

// CaptureWeight reads, validates and persists a weight capture.
// Flow: load image -> try readers in order -> classify -> upload -> save
func (s *WeightService) CaptureWeight(ctx context.Context, req *domain.CaptureRequest) (*domain.WeightCapture, error) {
	if req == nil || strings.TrimSpace(req.FarmerID) == "" {
		return nil, fmt.Errorf("%w: farmer_id is required", domain.ErrInvalidRequest)
	}

	image, err := s.loader.Load(ctx, req.ImageBase64, req.ImageURL)
	if err != nil {
		return nil, err
	}

	reading, err := s.ReadWeight(ctx, image)
	if err != nil {
		return nil, err
	}

	capture := &domain.WeightCapture{
		ID:          s.newID(),
		FarmerID:    strings.TrimSpace(req.FarmerID),
		ProduceName: strings.TrimSpace(req.ProduceName),
		Weight:      reading.Value,
		Unit:        reading.Unit,
		WeightKg:    roundTo(reading.WeightKg, 3),
		Confidence:  reading.Confidence,
		RawText:     reading.DisplayText,
		Backend:     reading.Backend,
		CapturedAt:  s.now().UTC(),
	}

	if capture.ProduceName == "" && s.classifier != nil {
		classification, err := s.classifier.Classify(ctx, image)
		if err != nil {
			s.logger.Warn("produce classification failed", zap.String("capture_id", capture.ID), zap.Error(err))
		} else {
			capture.ProduceType = classification.ProduceType
		}
	}

	if s.store != nil {
		key := fmt.Sprintf("captures/%s/%s%s", keySegment(capture.FarmerID), capture.ID, image.Extension())
		imageURL, err := s.store.Put(ctx, key, image)
		if err != nil {
			s.logger.Warn("image upload failed", zap.String("capture_id", capture.ID), zap.Error(err))
		} else {
			capture.ImageURL = imageURL
		}
	} else if image.SourceURL != "" {
		capture.ImageURL = image.SourceURL
	}

	if err := s.repo.Save(ctx, capture); err != nil {
		return nil, fmt.Errorf("failed to save capture: %w", err)
	}

	s.logger.Info("weight captured",
		zap.String("capture_id", capture.ID),
		zap.String("farmer_id", capture.FarmerID),
		zap.Float64("weight_kg", capture.WeightKg),
		zap.String("backend", capture.Backend),
	)
	return capture, nil
}

// ReadWeight tries each reader in order and returns the first valid reading.
// When all fail the error wraps ErrRecognitionFailed and the last cause.
func (s *WeightService) ReadWeight(ctx context.Context, image *domain.Image) (*domain.WeightReading, error) {
	if len(s.readers) == 0 {
		return nil, fmt.Errorf("%w: no weight backends configured", domain.ErrBackendUnavailable)
	}

	var lastErr error
	var failures []string
	for _, reader := range s.readers {
		reading, err := reader.ReadWeight(ctx, image)
		if err == nil {
			err = s.validate(reading)
		}
		if err == nil {
			return reading, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s.logger.Warn("weight backend failed", zap.String("backend", reader.Name()), zap.Error(err))
		failures = append(failures, fmt.Sprintf("%s: %v", reader.Name(), err))
		lastErr = err
	}

	if errors.Is(lastErr, domain.ErrRecognitionFailed) {
		return nil, fmt.Errorf("%w (%s)", lastErr, strings.Join(failures, "; "))
	}
	return nil, fmt.Errorf("%w: %w (%s)", domain.ErrRecognitionFailed, lastErr, strings.Join(failures, "; "))
}

func (s *WeightService) validate(reading *domain.WeightReading) error {
	if reading.WeightKg <= s.config.MinKg || reading.WeightKg > s.config.MaxKg {
		return fmt.Errorf("%w: %.3f kg not in (%.3f, %.3f]", domain.ErrWeightOutOfRange, reading.WeightKg, s.config.MinKg, s.config.MaxKg)
	}
	if reading.Confidence < s.config.MinConfidence {
		return fmt.Errorf("%w: %.2f < %.2f", domain.ErrLowConfidence, reading.Confidence, s.config.MinConfidence)
	}
	return nil
}

// GetCapture returns a stored capture by ID
func (s *WeightService) GetCapture(ctx context.Context, id string) (*domain.WeightCapture, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: capture id is required", domain.ErrInvalidRequest)
	}
	return s.repo.GetByID(ctx, id)
}

// ListCaptures returns a farmer's captures, newest first
func (s *WeightService) ListCaptures(ctx context.Context, farmerID string, limit int) ([]*domain.WeightCapture, error) {
	if strings.TrimSpace(farmerID) == "" {
		return nil, fmt.Errorf("%w: farmer_id is required", domain.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = DefaultCaptureLimit
	}
	if limit > MaxCaptureLimit {
		limit = MaxCaptureLimit
	}
	return s.repo.ListByFarmer(ctx, farmerID, limit)
}

// keySegment makes a farmer ID safe for use in an object key
func keySegment(s string) string {
	s = unsafeKeyChars.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/farmlens/backend/internal/domain"
)

// maxCSVPromptBytes bounds the CSV text embedded in analytics prompts
const maxCSVPromptBytes = 4000

// DefaultPricePerKg is used for produce missing from the price table
const DefaultPricePerKg = 3.0

var basePricePerKg = map[string]float64{
	"tomato":   3.0,
	"mango":    4.5,
	"lettuce":  2.5,
	"carrot":   1.8,
	"apple":    3.2,
	"orange":   2.8,
	"broccoli": 3.5,
	"potato":   1.2,
}

var qualityMultiplier = map[string]float64{
	domain.QualityExcellent: 1.2,
	domain.QualityGood:      1.1,
	domain.QualityAverage:   1.0,
	domain.QualityFair:      0.85,
	domain.QualityPoor:      0.7,
}

// AnalyticsService generates AI analytics from sales data and produce photos
type AnalyticsService struct {
	model    domain.VisionModel
	cache    domain.CacheRepository
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAnalyticsService creates an analytics service. model may be nil, in which
// case every analysis returns ErrBackendUnavailable.
func NewAnalyticsService(model domain.VisionModel, cache domain.CacheRepository, cacheTTL time.Duration, logger *zap.Logger) *AnalyticsService {
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		model:    model,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.Named("analytics"),
	}
}

// Status reports the analytics backend and whether it is configured
func (s *AnalyticsService) Status() domain.AnalyticsStatus {
	if s.model == nil {
		return domain.AnalyticsStatus{Backend: "none", Available: false, Message: "no analytics backend configured"}
	}
	return domain.AnalyticsStatus{Backend: s.model.Name(), Available: true, Message: "analytics backend ready"}
}

// AnalyzeCSV returns insights, a two-week forecast and recommendations for csvData
func (s *AnalyticsService) AnalyzeCSV(ctx context.Context, csvData, crop string) (*domain.CSVAnalytics, error) {
	if s.model == nil {
		return nil, fmt.Errorf("%w: no analytics backend configured", domain.ErrBackendUnavailable)
	}

	header, rows, err := parseCSV(csvData)
	if err != nil {
		return nil, err
	}

	prompt, err := buildCSVPrompt(header, rows, strings.TrimSpace(crop))
	if err != nil {
		return nil, err
	}

	reply, err := s.model.GenerateJSON(ctx, domain.VisionRequest{
		Prompt:      prompt,
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, err
	}

	result, err := ParseCSVAnalytics(reply)
	if err != nil {
		s.logger.Warn("csv analytics reply rejected", zap.Error(err), zap.String("reply", truncate(reply, 200)))
		return nil, err
	}

	s.logger.Info("csv analyzed",
		zap.Int("rows", len(rows)),
		zap.Int("insights", len(result.Insights)),
		zap.Int("forecast_points", len(result.Forecast)),
	)
	return result, nil
}

// parseCSV requires a header and at least one data row
func parseCSV(data string) ([]string, [][]string, error) {
	reader := csv.NewReader(strings.NewReader(strings.TrimSpace(data)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid CSV: %v", domain.ErrInvalidRequest, err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("%w: CSV needs a header and at least one row", domain.ErrInvalidRequest)
	}
	return records[0], records[1:], nil
}

func renderCSV(header []string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", err
	}
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// csvSnippet renders rows, keeping only the leading share that fits maxCSVPromptBytes
func csvSnippet(header []string, rows [][]string) (string, error) {
	full, err := renderCSV(header, rows)
	if err != nil {
		return "", err
	}
	if len(full) <= maxCSVPromptBytes {
		return full, nil
	}

	keep := len(rows) * maxCSVPromptBytes / len(full)
	snippet, err := renderCSV(header, rows[:keep])
	if err != nil {
		return "", err
	}
	return snippet + fmt.Sprintf("\n... (showing %d of %d rows)", keep, len(rows)), nil
}

func buildCSVPrompt(header []string, rows [][]string, crop string) (string, error) {
	snippet, err := csvSnippet(header, rows)
	if err != nil {
		return "", err
	}

	focus := ""
	if crop != "" {
		focus = fmt.Sprintf(" Focus on the %s crop.", crop)
	}

	return fmt.Sprintf(`You are an analytics assistant for a farm marketplace.

Input: CSV with columns %s
Total records: %d rows

Analyze this supply and sales data and return ONLY valid JSON in this format:
{
  "insights": [
    {"title": "short title", "explanation": "one or two sentences"}
  ],
  "forecast": [
    {"week_start": "YYYY-MM-DD", "crop": "crop name", "kg": 0}
  ],
  "recommendations": ["actionable recommendation"]
}

Requirements:
1. Exactly 3 insights covering the strongest patterns, trends or anomalies
2. A supply forecast for the next 2 weeks for every crop in the data
3. Exactly 3 actionable recommendations to improve sales, delivery or efficiency
4. JSON only, no markdown and no explanation
5. Base every statement on the data.%s

CSV data:
%s
`, strings.Join(header, ", "), len(rows), focus, snippet), nil
}

// AnalyzeImage estimates crate count, weight and quality from a produce photo.
// Results are cached by image digest and produce type.
func (s *AnalyticsService) AnalyzeImage(ctx context.Context, image *domain.Image, produceType string) (*domain.ImageAnalytics, error) {
	if s.model == nil {
		return nil, fmt.Errorf("%w: no analytics backend configured", domain.ErrBackendUnavailable)
	}
	if image == nil {
		return nil, fmt.Errorf("%w: image is required", domain.ErrInvalidRequest)
	}

	produceType = strings.ToLower(strings.TrimSpace(produceType))
	cacheKey := fmt.Sprintf("image_analytics:%s:%s", image.SHA256, produceType)

	var cached domain.ImageAnalytics
	if loadCached(ctx, s.cache, cacheKey, &cached) {
		return &cached, nil
	}

	reply, err := s.model.GenerateJSON(ctx, domain.VisionRequest{
		Prompt:      buildImagePrompt(produceType),
		Image:       image,
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, err
	}

	result, err := ParseImageAnalytics(reply, s.logger)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache image analytics", zap.Error(err))
		}
	}
	return result, nil
}

func buildImagePrompt(produceType string) string {
	hint := ""
	if produceType != "" {
		hint = fmt.Sprintf("\nThe produce in the photo is %s.\n", produceType)
	}

	return `You analyze photos of produce crates for farm logistics.
` + hint + `
Return ONLY valid JSON in this format:
{
  "crate_count": 0,
  "estimated_total_weight_kg": 0.0,
  "per_crate_estimate_kg": 0.0,
  "quality_score": "excellent|good|average|fair|poor",
  "confidence": 0.0,
  "notes": "short description of what you see"
}

Guidelines:
1. Count the visible crates or containers
2. Estimate total weight from crate size, fill level and produce type; be conservative
3. per_crate_estimate_kg is the average weight per crate
4. Grade quality from visible freshness, color and damage
5. confidence is between 0.0 and 1.0 and reflects how clearly the produce is visible
6. JSON only, no markdown and no explanation`
}

// SuggestListing analyzes a produce photo and prices it for a marketplace listing
func (s *AnalyticsService) SuggestListing(ctx context.Context, image *domain.Image, produceType string) (*domain.ListingSuggestion, error) {
	analytics, err := s.AnalyzeImage(ctx, image, produceType)
	if err != nil {
		return nil, err
	}

	price := SuggestPricePerKg(produceType, analytics.QualityScore)
	return &domain.ListingSuggestion{
		QualityGrade:        analytics.QualityScore,
		EstimatedWeightKg:   analytics.EstimatedTotalWeightKg,
		CrateCount:          analytics.CrateCount,
		SuggestedPricePerKg: price,
		TotalEstimatedValue: roundTo(price*analytics.EstimatedTotalWeightKg, 2),
		Confidence:          analytics.Confidence,
	}, nil
}

// SuggestPricePerKg prices produce by base table and quality grade, rounded to cents
func SuggestPricePerKg(produceType, quality string) float64 {
	base := basePrice(strings.ToLower(strings.TrimSpace(produceType)))
	multiplier, ok := qualityMultiplier[quality]
	if !ok {
		multiplier = 1.0
	}
	return roundTo(base*multiplier, 2)
}

// basePrice looks up name, then its singular forms ("tomatoes", "carrots")
func basePrice(name string) float64 {
	for _, candidate := range []string{name, strings.TrimSuffix(name, "s"), strings.TrimSuffix(name, "es")} {
		if price, ok := basePricePerKg[candidate]; ok {
			return price
		}
	}
	return DefaultPricePerKg
}


package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/farmlens/backend/internal/domain"
)

const weightPrompt = `You are reading the display of a digital weighing scale used at a farm market.

Look at the scale display in this photo and return ONLY valid JSON in this format:
{
  "readable": true,
  "weight": 0.0,
  "unit": "kg|g|lb|oz",
  "confidence": 0.0,
  "display_text": "exact characters shown on the display"
}

Rules:
- weight is the number shown on the display, exactly as shown
- unit is the unit printed next to the number; use "kg" if none is visible
- confidence is between 0.0 and 1.0 and reflects how clearly the digits are visible
- if no scale display is visible or the digits cannot be read, return {"readable": false, "weight": null}
- output JSON only, no markdown and no explanation`

// WeightReader extracts a scale reading from an image
type WeightReader interface {
	ReadWeight(ctx context.Context, image *domain.Image) (*domain.WeightReading, error)
	Name() string
}

// VisionWeightReader reads scale displays with a multimodal LLM
type VisionWeightReader struct {
	model       domain.VisionModel
	defaultUnit string
}

// NewVisionWeightReader creates a reader over a vision model
func NewVisionWeightReader(model domain.VisionModel, defaultUnit string) *VisionWeightReader {
	return &VisionWeightReader{model: model, defaultUnit: defaultUnit}
}

// Name returns the backend name of the underlying model
func (r *VisionWeightReader) Name() string {
	return r.model.Name()
}

// ReadWeight asks the model for the display reading and parses its reply
func (r *VisionWeightReader) ReadWeight(ctx context.Context, image *domain.Image) (*domain.WeightReading, error) {
	reply, err := r.model.GenerateJSON(ctx, domain.VisionRequest{
		Prompt:      weightPrompt,
		Image:       image,
		Temperature: 0.1,
		MaxTokens:   256,
	})
	if err != nil {
		return nil, err
	}

	reading, err := ParseWeightReply(reply, r.defaultUnit, DefaultLLMConfidence)
	if err != nil {
		return nil, err
	}
	reading.Backend = r.model.Name()
	return reading, nil
}

// OCRWeightReader reads scale displays with a text detector
type OCRWeightReader struct {
	detector    domain.TextDetector
	defaultUnit string
}

// NewOCRWeightReader creates a reader over an OCR engine
func NewOCRWeightReader(detector domain.TextDetector, defaultUnit string) *OCRWeightReader {
	return &OCRWeightReader{detector: detector, defaultUnit: defaultUnit}
}

// Name returns "ocr"
func (r *OCRWeightReader) Name() string {
	return "ocr"
}

// ReadWeight runs text detection and scans the lines for a weight
func (r *OCRWeightReader) ReadWeight(ctx context.Context, image *domain.Image) (*domain.WeightReading, error) {
	lines, err := r.detector.DetectText(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no text detected", domain.ErrUnparseableReply)
	}

	reading, err := ParseWeightReply(strings.Join(lines, "\n"), r.defaultUnit, DefaultOCRConfidence)
	if err != nil {
		return nil, err
	}
	reading.Backend = r.Name()
	return reading, nil
}

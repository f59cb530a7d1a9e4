package rekognition

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"go.uber.org/zap"

	"github.com/farmlens/backend/internal/domain"
)

// minTextConfidence drops detections Rekognition itself is unsure about (0-100 scale)
const minTextConfidence = 50

// detectTextAPI is the slice of the Rekognition client this package uses
type detectTextAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// TextDetector reads scale displays with AWS Rekognition DetectText
type TextDetector struct {
	api    detectTextAPI
	logger *zap.Logger
}

// NewTextDetector loads the default AWS config for region and builds a detector
func NewTextDetector(ctx context.Context, region string, logger *zap.Logger) (*TextDetector, error) {
	if region == "" {
		return nil, fmt.Errorf("%w: AWS region not set", domain.ErrBackendUnavailable)
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return newTextDetector(rekognition.NewFromConfig(cfg), logger), nil
}

func newTextDetector(api detectTextAPI, logger *zap.Logger) *TextDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextDetector{api: api, logger: logger.Named("rekognition")}
}

type detection struct {
	text string
	top  float32
	left float32
}

// DetectText returns LINE detections ordered top to bottom, left to right.
// WORD detections are used when Rekognition reports no lines.
func (d *TextDetector) DetectText(ctx context.Context, image *domain.Image) ([]string, error) {
	out, err := d.api.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: image.Data},
		Filters: &types.DetectTextFilters{
			WordFilter: &types.DetectionFilter{MinConfidence: aws.Float32(minTextConfidence)},
		},
	})
	if err != nil {
		d.logger.Warn("detect text failed", zap.Error(err))
		return nil, fmt.Errorf("%w: rekognition: %v", domain.ErrRecognitionFailed, err)
	}

	lines := collect(out.TextDetections, types.TextTypesLine)
	if len(lines) == 0 {
		lines = collect(out.TextDetections, types.TextTypesWord)
	}

	d.logger.Debug("text detected", zap.Int("detections", len(out.TextDetections)), zap.Strings("lines", lines))
	return lines, nil
}

func collect(detections []types.TextDetection, kind types.TextTypes) []string {
	var found []detection
	for _, td := range detections {
		if td.Type != kind || td.DetectedText == nil {
			continue
		}
		if td.Confidence != nil && *td.Confidence < minTextConfidence {
			continue
		}
		det := detection{text: *td.DetectedText}
		if td.Geometry != nil && td.Geometry.BoundingBox != nil {
			det.top = aws.ToFloat32(td.Geometry.BoundingBox.Top)
			det.left = aws.ToFloat32(td.Geometry.BoundingBox.Left)
		}
		found = append(found, det)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].top != found[j].top {
			return found[i].top < found[j].top
		}
		return found[i].left < found[j].left
	})

	lines := make([]string, len(found))
	for i, det := range found {
		lines[i] = det.text
	}
	return lines
}

package sheets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/farmlens/backend/internal/domain"
)

// DefaultRange is the sheet range rows are appended to
const DefaultRange = "Captures!A:K"

const appendTimeout = 10 * time.Second

// rowAppender appends one row to a spreadsheet range
type rowAppender interface {
	AppendRow(ctx context.Context, row []interface{}) error
}

type valuesAppender struct {
	svc           *gsheets.Service
	spreadsheetID string
	writeRange    string
}

func (a *valuesAppender) AppendRow(ctx context.Context, row []interface{}) error {
	_, err := a.svc.Spreadsheets.Values.
		Append(a.spreadsheetID, a.writeRange, &gsheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// Config identifies the spreadsheet captures are mirrored to
type Config struct {
	SpreadsheetID   string
	CredentialsFile string // empty uses application default credentials
	Range           string
}

// Mirror is a CaptureRepository that appends every saved capture to a Google Sheet.
// Sheet failures are logged and never fail the save.
type Mirror struct {
	domain.CaptureRepository
	appender rowAppender
	logger   *zap.Logger
}

// NewMirror wraps repo with a Sheets mirror
func NewMirror(ctx context.Context, repo domain.CaptureRepository, cfg Config, logger *zap.Logger) (*Mirror, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is required")
	}
	if cfg.Range == "" {
		cfg.Range = DefaultRange
	}

	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return newMirror(repo, &valuesAppender{svc: svc, spreadsheetID: cfg.SpreadsheetID, writeRange: cfg.Range}, logger), nil
}

func newMirror(repo domain.CaptureRepository, appender rowAppender, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{CaptureRepository: repo, appender: appender, logger: logger.Named("sheets")}
}

// Save stores the capture in the wrapped repository, then appends it to the sheet
func (m *Mirror) Save(ctx context.Context, capture *domain.WeightCapture) error {
	if err := m.CaptureRepository.Save(ctx, capture); err != nil {
		return err
	}

	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()

	if err := m.appender.AppendRow(appendCtx, captureRow(capture)); err != nil {
		m.logger.Warn("failed to mirror capture to sheet", zap.String("capture_id", capture.ID), zap.Error(err))
	}
	return nil
}

// captureRow lays a capture out as the sheet's A:K columns
func captureRow(c *domain.WeightCapture) []interface{} {
	return []interface{}{
		c.CapturedAt.UTC().Format(time.RFC3339),
		c.ID,
		c.FarmerID,
		c.ProduceName,
		c.ProduceType,
		c.Weight,
		c.Unit,
		c.WeightKg,
		c.Confidence,
		c.Backend,
		c.ImageURL,
	}
}

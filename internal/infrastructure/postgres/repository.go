package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmlens/backend/internal/domain"
)

// CaptureRepository stores weight captures in Postgres
type CaptureRepository struct {
	db *pgxpool.Pool
}

// NewCaptureRepository creates a capture repository over pool
func NewCaptureRepository(db *pgxpool.Pool) *CaptureRepository {
	return &CaptureRepository{db: db}
}

const captureColumns = `id, farmer_id, produce_name, produce_type, weight, unit, weight_kg,
	confidence, raw_text, image_url, backend, captured_at`

// Save inserts a capture
func (r *CaptureRepository) Save(ctx context.Context, c *domain.WeightCapture) error {
	query := `
		INSERT INTO weight_captures (` + captureColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.FarmerID,
		c.ProduceName,
		c.ProduceType,
		c.Weight,
		c.Unit,
		c.WeightKg,
		c.Confidence,
		c.RawText,
		c.ImageURL,
		c.Backend,
		c.CapturedAt,
	)
	return err
}

// GetByID returns the capture with id
func (r *CaptureRepository) GetByID(ctx context.Context, id string) (*domain.WeightCapture, error) {
	query := `SELECT ` + captureColumns + ` FROM weight_captures WHERE id = $1`

	c, err := scanCapture(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

// ListByFarmer returns up to limit captures for farmerID, newest first
func (r *CaptureRepository) ListByFarmer(ctx context.Context, farmerID string, limit int) ([]*domain.WeightCapture, error) {
	query := `
		SELECT ` + captureColumns + `
		FROM weight_captures
		WHERE farmer_id = $1
		ORDER BY captured_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, farmerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	captures := make([]*domain.WeightCapture, 0)
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}

func scanCapture(row pgx.Row) (*domain.WeightCapture, error) {
	var c domain.WeightCapture
	err := row.Scan(
		&c.ID,
		&c.FarmerID,
		&c.ProduceName,
		&c.ProduceType,
		&c.Weight,
		&c.Unit,
		&c.WeightKg,
		&c.Confidence,
		&c.RawText,
		&c.ImageURL,
		&c.Backend,
		&c.CapturedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CapturedAt = c.CapturedAt.UTC()
	return &c, nil
}

// FarmerRepository stores weekly farmer data in Postgres, records as JSONB
type FarmerRepository struct {
	db *pgxpool.Pool
}

// NewFarmerRepository creates a farmer repository over pool
func NewFarmerRepository(db *pgxpool.Pool) *FarmerRepository {
	return &FarmerRepository{db: db}
}

// Upsert replaces the stored data for data.FarmerID
func (r *FarmerRepository) Upsert(ctx context.Context, data *domain.FarmerData) error {
	records, err := json.Marshal(data.Records)
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	var metadata []byte
	if data.Metadata != nil {
		if metadata, err = json.Marshal(data.Metadata); err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	query := `
		INSERT INTO farmer_data (farmer_id, farmer_name, records, metadata, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (farmer_id) DO UPDATE SET
			farmer_name = EXCLUDED.farmer_name,
			records = EXCLUDED.records,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.Exec(ctx, query, data.FarmerID, data.FarmerName, records, metadata, data.UpdatedAt)
	return err
}

// Get returns the stored data for farmerID
func (r *FarmerRepository) Get(ctx context.Context, farmerID string) (*domain.FarmerData, error) {
	query := `
		SELECT farmer_id, farmer_name, records, metadata, updated_at
		FROM farmer_data
		WHERE farmer_id = $1
	`

	var d domain.FarmerData
	var records, metadata []byte
	err := r.db.QueryRow(ctx, query, farmerID).Scan(&d.FarmerID, &d.FarmerName, &records, &metadata, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(records, &d.Records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

// List returns a summary per farmer ordered by farmer ID
func (r *FarmerRepository) List(ctx context.Context) ([]domain.FarmerSummary, error) {
	query := `
		SELECT farmer_id, farmer_name, jsonb_array_length(records), updated_at
		FROM farmer_data
		ORDER BY farmer_id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.FarmerSummary, 0)
	for rows.Next() {
		var s domain.FarmerSummary
		if err := rows.Scan(&s.FarmerID, &s.FarmerName, &s.Records, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.UpdatedAt = s.UpdatedAt.UTC()
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Delete removes the data for farmerID
func (r *FarmerRepository) Delete(ctx context.Context, farmerID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM farmer_data WHERE farmer_id = $1`, farmerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

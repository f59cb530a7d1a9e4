package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/farmlens/backend/internal/domain"
)

// CaptureRepository is a thread-safe in-memory domain.CaptureRepository
type CaptureRepository struct {
	mu       sync.RWMutex
	captures map[string]domain.WeightCapture
}

// NewCaptureRepository creates an empty capture repository
func NewCaptureRepository() *CaptureRepository {
	return &CaptureRepository{captures: make(map[string]domain.WeightCapture)}
}

// Save stores a copy of capture
func (r *CaptureRepository) Save(ctx context.Context, capture *domain.WeightCapture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures[capture.ID] = *capture
	return nil
}

// GetByID returns a copy of the capture with id
func (r *CaptureRepository) GetByID(ctx context.Context, id string) (*domain.WeightCapture, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.captures[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

// ListByFarmer returns up to limit captures for farmerID, newest first
func (r *CaptureRepository) ListByFarmer(ctx context.Context, farmerID string, limit int) ([]*domain.WeightCapture, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.WeightCapture, 0)
	for _, c := range r.captures {
		if c.FarmerID == farmerID {
			c := c
			out = append(out, &c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CapturedAt.Equal(out[j].CapturedAt) {
			return out[i].CapturedAt.After(out[j].CapturedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FarmerRepository is a thread-safe in-memory domain.FarmerRepository
type FarmerRepository struct {
	mu      sync.RWMutex
	farmers map[string]domain.FarmerData
}

// NewFarmerRepository creates an empty farmer repository
func NewFarmerRepository() *FarmerRepository {
	return &FarmerRepository{farmers: make(map[string]domain.FarmerData)}
}

// Upsert replaces the stored data for data.FarmerID
func (r *FarmerRepository) Upsert(ctx context.Context, data *domain.FarmerData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.farmers[data.FarmerID] = cloneFarmerData(*data)
	return nil
}

// Get returns a copy of the stored data for farmerID
func (r *FarmerRepository) Get(ctx context.Context, farmerID string) (*domain.FarmerData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.farmers[farmerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	d = cloneFarmerData(d)
	return &d, nil
}

// List returns a summary per farmer ordered by farmer ID
func (r *FarmerRepository) List(ctx context.Context) ([]domain.FarmerSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.FarmerSummary, 0, len(r.farmers))
	for _, d := range r.farmers {
		out = append(out, domain.FarmerSummary{
			FarmerID:   d.FarmerID,
			FarmerName: d.FarmerName,
			Records:    len(d.Records),
			UpdatedAt:  d.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FarmerID < out[j].FarmerID })
	return out, nil
}

// Delete removes the data for farmerID
func (r *FarmerRepository) Delete(ctx context.Context, farmerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.farmers[farmerID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.farmers, farmerID)
	return nil
}

func cloneFarmerData(d domain.FarmerData) domain.FarmerData {
	d.Records = append([]domain.WeeklyRecord(nil), d.Records...)
	if d.Metadata != nil {
		meta := make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			meta[k] = v
		}
		d.Metadata = meta
	}
	return d
}

package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/farmlens/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data      map[string]interface{}
	getError  error
	setError  error
	getCalled bool
	setCalled bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string]interface{}),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

// MockVisionModel returns canned replies in order, repeating the last one
type MockVisionModel struct {
	name     string
	replies  []string
	err      error
	requests []domain.VisionRequest
}

func NewMockVisionModel(name string, replies ...string) *MockVisionModel {
	return &MockVisionModel{name: name, replies: replies}
}

func (m *MockVisionModel) GenerateJSON(ctx context.Context, req domain.VisionRequest) (string, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	idx := len(m.requests) - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	return m.replies[idx], nil
}

func (m *MockVisionModel) Name() string {
	return m.name
}

// MockTextDetector is a mock implementation of domain.TextDetector
type MockTextDetector struct {
	lines []string
	err   error
	calls int
}

func (m *MockTextDetector) DetectText(ctx context.Context, image *domain.Image) ([]string, error) {
	m.calls++
	return m.lines, m.err
}

// MockCaptureRepository is an in-memory domain.CaptureRepository
type MockCaptureRepository struct {
	mu       sync.Mutex
	captures  map[string]*domain.WeightCapture
	saveErr   error
	lastLimit int
}

func NewMockCaptureRepository() *MockCaptureRepository {
	return &MockCaptureRepository{captures: make(map[string]*domain.WeightCapture)}
}

func (m *MockCaptureRepository) Save(ctx context.Context, capture *domain.WeightCapture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.captures[capture.ID] = capture
	return nil
}

func (m *MockCaptureRepository) GetByID(ctx context.Context, id string) (*domain.WeightCapture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (m *MockCaptureRepository) ListByFarmer(ctx context.Context, farmerID string, limit int) ([]*domain.WeightCapture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	var out []*domain.WeightCapture
	for _, c := range m.captures {
		if c.FarmerID == farmerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MockImageStore records uploads
type MockImageStore struct {
	keys []string
	err  error
}

func (m *MockImageStore) Put(ctx context.Context, key string, image *domain.Image) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	return "https://cdn.example.com/" + key, nil
}

// MockFarmerRepository is an in-memory domain.FarmerRepository
type MockFarmerRepository struct {
	farmers   map[string]*domain.FarmerData
	upsertErr error
}

func NewMockFarmerRepository() *MockFarmerRepository {
	return &MockFarmerRepository{farmers: make(map[string]*domain.FarmerData)}
}

func (m *MockFarmerRepository) Upsert(ctx context.Context, data *domain.FarmerData) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.farmers[data.FarmerID] = data
	return nil
}

func (m *MockFarmerRepository) Get(ctx context.Context, farmerID string) (*domain.FarmerData, error) {
	d, ok := m.farmers[farmerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (m *MockFarmerRepository) List(ctx context.Context) ([]domain.FarmerSummary, error) {
	var out []domain.FarmerSummary
	for _, d := range m.farmers {
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

func (m *MockFarmerRepository) Delete(ctx context.Context, farmerID string) error {
	if _, ok := m.farmers[farmerID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.farmers, farmerID)
	return nil
}

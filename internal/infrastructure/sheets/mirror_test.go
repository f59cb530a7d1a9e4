package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmlens/backend/internal/domain"
	"github.com/farmlens/backend/internal/infrastructure/memory"
)

type fakeAppender struct {
	rows [][]interface{}
	err  error
}

func (f *fakeAppender) AppendRow(ctx context.Context, row []interface{}) error {
	f.rows = append(f.rows, row)
	return f.err
}

type failingRepo struct {
	domain.CaptureRepository
}

func (failingRepo) Save(ctx context.Context, capture *domain.WeightCapture) error {
	return errors.New("db down")
}

func testCapture() *domain.WeightCapture {
	return &domain.WeightCapture{
		ID:          "c1",
		FarmerID:    "f1",
		ProduceName: "tomato",
		Weight:      12.5,
		Unit:        "kg",
		WeightKg:    12.5,
		Confidence:  0.9,
		Backend:     "gemini",
		CapturedAt:  time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC),
	}
}

func TestMirror_SaveAppendsRow(t *testing.T) {
	appender := &fakeAppender{}
	repo := memory.NewCaptureRepository()
	mirror := newMirror(repo, appender, nil)

	require.NoError(t, mirror.Save(context.Background(), testCapture()))

	require.Len(t, appender.rows, 1)
	row := appender.rows[0]
	assert.Len(t, row, 11)
	assert.Equal(t, "2024-06-03T09:30:00Z", row[0])
	assert.Equal(t, "c1", row[1])
	assert.Equal(t, 12.5, row[7])

	got, err := mirror.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "f1", got.FarmerID)
}

func TestMirror_SheetFailureIsNotFatal(t *testing.T) {
	mirror := newMirror(memory.NewCaptureRepository(), &fakeAppender{err: errors.New("quota exceeded")}, nil)

	assert.NoError(t, mirror.Save(context.Background(), testCapture()))
}

func TestMirror_RepositoryFailureSkipsSheet(t *testing.T) {
	appender := &fakeAppender{}
	mirror := newMirror(failingRepo{}, appender, nil)

	assert.Error(t, mirror.Save(context.Background(), testCapture()))
	assert.Empty(t, appender.rows)
}

func TestNewMirror_RequiresSpreadsheet(t *testing.T) {
	_, err := NewMirror(context.Background(), memory.NewCaptureRepository(), Config{}, nil)

	assert.Error(t, err)
}

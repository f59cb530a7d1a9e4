package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmlens/backend/internal/domain"
)

// pngBytes is a 1x1 transparent PNG
var pngBytes, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

// jpegBytes carries a JPEG SOI/APP0 header, enough for content sniffing
var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0xFF, 0xD9}

type fakeFetcher struct {
	data    []byte
	err     error
	calls   int
	lastURL string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	f.calls++
	f.lastURL = url
	return f.data, f.err
}

func TestImageLoader_Base64(t *testing.T) {
	loader := NewImageLoader(nil, 0)
	b64 := base64.StdEncoding.EncodeToString(pngBytes)

	tests := []struct {
		name  string
		input string
	}{
		{"standard", b64},
		{"data uri", "data:image/jpeg;base64," + b64},
		{"with whitespace", b64[:10] + "\n" + b64[10:20] + " " + b64[20:]},
		{"unpadded", base64.RawStdEncoding.EncodeToString(pngBytes)},
		{"url safe", base64.URLEncoding.EncodeToString(pngBytes)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			image, err := loader.Load(context.Background(), tt.input, "")

			require.NoError(t, err)
			assert.Equal(t, "image/png", image.MIMEType)
			assert.Equal(t, pngBytes, image.Data)
			assert.Len(t, image.SHA256, 64)
		})
	}
}

func TestImageLoader_DeclaredTypeIgnored(t *testing.T) {
	loader := NewImageLoader(nil, 0)

	image, err := loader.Load(context.Background(), "data:image/png;base64,"+base64.StdEncoding.EncodeToString(jpegBytes), "")

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", image.MIMEType)
	assert.Equal(t, ".jpg", image.Extension())
}

func TestImageLoader_Errors(t *testing.T) {
	loader := NewImageLoader(&fakeFetcher{data: pngBytes}, 64)

	tests := []struct {
		name    string
		b64     string
		url     string
		wantErr error
	}{
		{"neither", "", "", domain.ErrInvalidRequest},
		{"both", "abcd", "https://example.com/a.png", domain.ErrInvalidRequest},
		{"bad base64", "!!!not-base64!!!", "", domain.ErrInvalidImage},
		{"empty data uri payload", "data:image/png;base64,", "", domain.ErrInvalidImage},
		{"not an image", base64.StdEncoding.EncodeToString([]byte("hello world, plain text")), "", domain.ErrUnsupportedImageType},
		{"too large", base64.StdEncoding.EncodeToString(make([]byte, 65)), "", domain.ErrImageTooLarge},
		{"ftp url", "", "ftp://example.com/a.png", domain.ErrInvalidRequest},
		{"relative url", "", "/a.png", domain.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(context.Background(), tt.b64, tt.url)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestImageLoader_URL(t *testing.T) {
	fetcher := &fakeFetcher{data: pngBytes}
	loader := NewImageLoader(fetcher, 0)

	image, err := loader.Load(context.Background(), "", "https://cdn.example.com/scale.png")

	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, "https://cdn.example.com/scale.png", image.SourceURL)
	assert.Equal(t, "image/png", image.MIMEType)
}

func TestImageLoader_URLFetchFailure(t *testing.T) {
	loader := NewImageLoader(&fakeFetcher{err: domain.ErrImageFetchFailed}, 0)

	_, err := loader.Load(context.Background(), "", "https://cdn.example.com/missing.png")

	assert.True(t, errors.Is(err, domain.ErrImageFetchFailed))
}

func TestImageLoader_URLWithoutFetcher(t *testing.T) {
	_, err := NewImageLoader(nil, 0).Load(context.Background(), "", "https://cdn.example.com/a.png")

	assert.True(t, errors.Is(err, domain.ErrBackendUnavailable))
}

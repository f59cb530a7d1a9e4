package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/farmlens/backend/internal/domain"
)

// DefaultMaxImageBytes is the image size limit when none is configured
const DefaultMaxImageBytes = 10 << 20

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ImageLoader turns base64 payloads or URLs into sniffed, size-checked images
type ImageLoader struct {
	fetcher  domain.ImageFetcher
	maxBytes int64
}

// NewImageLoader creates an image loader. fetcher may be nil to disable URL input.
func NewImageLoader(fetcher domain.ImageFetcher, maxBytes int64) *ImageLoader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ImageLoader{fetcher: fetcher, maxBytes: maxBytes}
}

// MaxBytes returns the configured image size limit
func (l *ImageLoader) MaxBytes() int64 {
	return l.maxBytes
}

// Load decodes exactly one of b64 or imageURL
func (l *ImageLoader) Load(ctx context.Context, b64, imageURL string) (*domain.Image, error) {
	b64 = strings.TrimSpace(b64)
	imageURL = strings.TrimSpace(imageURL)

	switch {
	case b64 == "" && imageURL == "":
		return nil, fmt.Errorf("%w: image_base64 or image_url is required", domain.ErrInvalidRequest)
	case b64 != "" && imageURL != "":
		return nil, fmt.Errorf("%w: provide only one of image_base64 or image_url", domain.ErrInvalidRequest)
	case b64 != "":
		data, err := decodeBase64Image(b64)
		if err != nil {
			return nil, err
		}
		return l.FromBytes(data, "")
	}

	parsed, err := url.Parse(imageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: image_url must be an http(s) URL", domain.ErrInvalidRequest)
	}
	if l.fetcher == nil {
		return nil, fmt.Errorf("%w: image URL fetching is disabled", domain.ErrBackendUnavailable)
	}

	data, err := l.fetcher.Fetch(ctx, imageURL, l.maxBytes)
	if err != nil {
		return nil, err
	}
	return l.FromBytes(data, imageURL)
}

// FromBytes validates raw image bytes
func (l *ImageLoader) FromBytes(data []byte, sourceURL string) (*domain.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrInvalidImage)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrImageTooLarge, len(data), l.maxBytes)
	}

	mime := mimetype.Detect(data)
	if !supportedImageTypes[mime.String()] {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedImageType, mime.String())
	}

	sum := sha256.Sum256(data)
	return &domain.Image{
		Data:      data,
		MIMEType:  mime.String(),
		SHA256:    hex.EncodeToString(sum[:]),
		SourceURL: sourceURL,
	}, nil
}

// decodeBase64Image strips a data URI prefix and whitespace, then tries
// standard, unpadded and URL-safe alphabets in turn
func decodeBase64Image(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, fmt.Errorf("%w: malformed data URI", domain.ErrInvalidImage)
		}
		s = s[idx+1:]
	}
	s = strings.Join(strings.Fields(s), "")

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: not valid base64", domain.ErrInvalidImage)
}

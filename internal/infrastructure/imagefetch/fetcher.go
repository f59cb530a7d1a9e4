package imagefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/farmlens/backend/internal/domain"
)

// Fetcher downloads images referenced by URL in capture requests
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a fetcher with the given request timeout
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "FarmLens/1.0").
		SetHeader("Accept", "image/*")

	return &Fetcher{client: client}
}

// Fetch downloads url. Bodies over maxBytes fail with ErrImageTooLarge.
func (f *Fetcher) Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageFetchFailed, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: status %d", domain.ErrImageFetchFailed, resp.StatusCode())
	}

	var reader io.Reader = body
	if maxBytes > 0 {
		reader = io.LimitReader(body, maxBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageFetchFailed, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, domain.ErrImageTooLarge
	}

	return data, nil
}

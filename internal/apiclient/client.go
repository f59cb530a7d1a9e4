// Package apiclient talks to a running FarmLens server
package apiclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/farmlens/backend/internal/domain"
)

// BulkUploadResponse is the server reply to a bulk upload
type BulkUploadResponse struct {
	Status          string                    `json:"status"`
	Message         string                    `json:"message"`
	FarmersUploaded int                       `json:"farmers_uploaded"`
	FarmersRejected int                       `json:"farmers_rejected"`
	Results         []domain.BulkUploadResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client is a FarmLens API client
type Client struct {
	http *resty.Client
}

// New creates a client for baseURL. token is sent as a bearer token when set.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "farmctl/1.0")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Client{http: client}
}

// BulkUpload posts farmers to /api/v1/creao/bulk-upload
func (c *Client) BulkUpload(ctx context.Context, farmers []domain.FarmerData) (*BulkUploadResponse, error) {
	var result BulkUploadResponse
	var apiErr errorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"farmers": farmers}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/v1/creao/bulk-upload")
	if err != nil {
		return nil, fmt.Errorf("bulk upload request failed: %w", err)
	}
	if resp.IsError() {
		message := apiErr.Error
		if message == "" {
			message = resp.Status()
		}
		return nil, fmt.Errorf("bulk upload rejected (%d): %s", resp.StatusCode(), message)
	}
	return &result, nil
}

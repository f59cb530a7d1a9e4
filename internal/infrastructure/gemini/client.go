package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/farmlens/backend/internal/domain"
)

// Config holds settings for the Gemini client
type Config struct {
	APIKey   string
	Model    string
	Project  string // Vertex AI project, used when APIKey is empty
	Location string
	BaseURL  string // overrides the API endpoint, mainly for tests
}

// Client sends multimodal prompts to Gemini and requests JSON replies
type Client struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a Gemini client.
// An API key selects the Gemini API; otherwise Vertex AI with application default credentials.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" && cfg.Project == "" {
		return nil, fmt.Errorf("%w: Gemini API key or Vertex project is required", domain.ErrBackendUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash-exp"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := &genai.ClientConfig{}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
		clientConfig.Backend = genai.BackendGeminiAPI
		logger.Info("using Gemini API key authentication")
	} else {
		clientConfig.Project = cfg.Project
		clientConfig.Location = cfg.Location
		clientConfig.Backend = genai.BackendVertexAI
		logger.Info("using application default credentials", zap.String("project", cfg.Project))
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client: client,
		model:  cfg.Model,
		logger: logger.Named("gemini"),
	}, nil
}

// Name returns the backend name
func (c *Client) Name() string {
	return "gemini"
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// GenerateJSON sends the prompt (with the image inline, if any) and returns the reply text
func (c *Client) GenerateJSON(ctx context.Context, req domain.VisionRequest) (string, error) {
	var parts []*genai.Part
	if req.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Temperature),
		ResponseMIMEType: "application/json",
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		config,
	)
	if err != nil {
		c.logger.Warn("generate content failed", zap.Error(err))
		return "", fmt.Errorf("%w: gemini: %v", domain.ErrRecognitionFailed, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: empty gemini response", domain.ErrUnparseableReply)
	}

	c.logger.Debug("completed",
		zap.String("model", c.model),
		zap.Bool("image", req.Image != nil),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_len", len(text)))
	return text, nil
}

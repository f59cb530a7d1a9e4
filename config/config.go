package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backend names accepted in recognition settings
const (
	BackendGemini = "gemini"
	BackendClaude = "claude"
	BackendOCR    = "ocr"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Gemini      GeminiConfig
	Anthropic   AnthropicConfig
	AWS         AWSConfig
	Database    DatabaseConfig
	Sheets      SheetsConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
	Recognition RecognitionConfig
	Weight      WeightConfig
	Image       ImageConfig
	Auth        AuthConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GeminiConfig holds Gemini API configuration.
// Without an API key the client authenticates against Vertex AI with ADC.
type GeminiConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Project  string `mapstructure:"project"`
	Location string `mapstructure:"location"`
}

// AnthropicConfig holds Claude Messages API configuration
type AnthropicConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AWSConfig holds Rekognition and S3 configuration
type AWSConfig struct {
	Region        string `mapstructure:"region"`
	S3Bucket      string `mapstructure:"s3_bucket"`
	S3Endpoint    string `mapstructure:"s3_endpoint"` // R2 or other S3-compatible endpoints
	PublicBaseURL string `mapstructure:"public_base_url"`

	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// DatabaseConfig holds persistence configuration
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // "memory" or "postgres"
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SheetsConfig holds the optional Google Sheets capture mirror
type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Range           string `mapstructure:"range"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type string        `mapstructure:"type"` // "memory"
	TTL  time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP  int `mapstructure:"per_ip"` // requests per minute, 0 disables
	Claude int `mapstructure:"claude"` // requests per minute
}

// RecognitionConfig selects the backends used for each task
type RecognitionConfig struct {
	WeightBackends   []string `mapstructure:"weight_backends"`
	AnalyticsBackend string   `mapstructure:"analytics_backend"`
	MinConfidence    float64  `mapstructure:"min_confidence"`
}

// WeightConfig holds weight validation settings
type WeightConfig struct {
	MinKg       float64 `mapstructure:"min_kg"`
	MaxKg       float64 `mapstructure:"max_kg"`
	DefaultUnit string  `mapstructure:"default_unit"`
}

// ImageConfig holds image intake limits
type ImageConfig struct {
	MaxBytes     int64         `mapstructure:"max_bytes"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// AuthConfig holds bearer token settings; an empty secret disables auth
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/farmlens/")

	// Environment variable settings
	v.SetEnvPrefix("FARMLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Lists given through env arrive as one space or comma separated string
	config.Recognition.WeightBackends = splitList(config.Recognition.WeightBackends)
	config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env into the process environment when present.
// Variables already set in the environment win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash-exp")
	v.SetDefault("gemini.project", "")
	v.SetDefault("gemini.location", "us-central1")

	// Anthropic defaults
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.base_url", "https://api.anthropic.com/v1")
	v.SetDefault("anthropic.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("anthropic.timeout", "60s")

	// AWS defaults
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.s3_bucket", "")
	v.SetDefault("aws.s3_endpoint", "")
	v.SetDefault("aws.public_base_url", "")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")

	// Database defaults
	v.SetDefault("database.type", "memory")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	// Sheets defaults
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.credentials_file", "")
	v.SetDefault("sheets.range", "Captures!A:K")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "24h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 120)
	v.SetDefault("ratelimit.claude", 50)

	// Recognition defaults
	v.SetDefault("recognition.weight_backends", []string{BackendGemini})
	v.SetDefault("recognition.analytics_backend", BackendGemini)
	v.SetDefault("recognition.min_confidence", 0.3)

	// Weight defaults
	v.SetDefault("weight.min_kg", 0.0)
	v.SetDefault("weight.max_kg", 1000.0)
	v.SetDefault("weight.default_unit", "kg")

	// Image defaults
	v.SetDefault("image.max_bytes", 10<<20)
	v.SetDefault("image.fetch_timeout", "15s")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
}

// splitList flattens entries like "gemini,ocr" into separate values
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, strings.TrimSpace(part))
		}
	}
	return out
}

// UsesBackend reports whether any task is configured to use the named backend
func (c *Config) UsesBackend(name string) bool {
	if c.Recognition.AnalyticsBackend == name {
		return true
	}
	for _, b := range c.Recognition.WeightBackends {
		if b == name {
			return true
		}
	}
	return false
}

// validate validates the configuration
func validate(config *Config) error {
	if len(config.Recognition.WeightBackends) == 0 {
		return fmt.Errorf("at least one weight backend is required (set FARMLENS_RECOGNITION_WEIGHT_BACKENDS)")
	}
	for _, b := range config.Recognition.WeightBackends {
		if b != BackendGemini && b != BackendClaude && b != BackendOCR {
			return fmt.Errorf("unknown weight backend: %s", b)
		}
	}

	switch config.Recognition.AnalyticsBackend {
	case BackendGemini, BackendClaude:
	default:
		return fmt.Errorf("analytics backend must be 'gemini' or 'claude', got: %s", config.Recognition.AnalyticsBackend)
	}

	if config.UsesBackend(BackendGemini) && config.Gemini.APIKey == "" && config.Gemini.Project == "" {
		return fmt.Errorf("Gemini API key or Vertex project is required (set FARMLENS_GEMINI_API_KEY)")
	}

	if config.UsesBackend(BackendClaude) && config.Anthropic.APIKey == "" {
		return fmt.Errorf("Anthropic API key is required (set FARMLENS_ANTHROPIC_API_KEY)")
	}

	if config.UsesBackend(BackendOCR) && config.AWS.Region == "" {
		return fmt.Errorf("AWS region is required for the OCR backend (set FARMLENS_AWS_REGION)")
	}

	if config.Database.Type != "memory" && config.Database.Type != "postgres" {
		return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", config.Database.Type)
	}

	if config.Database.Type == "postgres" && config.Database.URL == "" {
		return fmt.Errorf("database URL is required when database type is 'postgres'")
	}

	if config.Cache.Type != "memory" {
		return fmt.Errorf("cache type must be 'memory', got: %s", config.Cache.Type)
	}

	if config.Weight.MinKg < 0 || config.Weight.MaxKg <= config.Weight.MinKg {
		return fmt.Errorf("weight range is invalid: min %.3f, max %.3f", config.Weight.MinKg, config.Weight.MaxKg)
	}

	if config.Recognition.MinConfidence < 0 || config.Recognition.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be within [0,1], got: %.2f", config.Recognition.MinConfidence)
	}

	if config.Image.MaxBytes <= 0 {
		return fmt.Errorf("image max bytes must be positive")
	}

	return nil
}

// Package config loads service configuration from the environment with an
// optional YAML override file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config holds the full configuration surface of the meter reader service.
type Config struct {
	// Supabase backing store and identity provider.
	SupabaseURL       string `env:"SUPABASE_URL,required" yaml:"supabase_url"`
	SupabaseKey       string `env:"SUPABASE_KEY,required" yaml:"supabase_key"`
	SupabaseJWTSecret string `env:"SUPABASE_JWT_SECRET" yaml:"supabase_jwt_secret"`

	// Vision extraction model.
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY,required" yaml:"anthropic_api_key"`
	VisionModel     string `env:"VISION_MODEL,default=claude-sonnet-4-5-20250929" yaml:"vision_model"`
	VisionBaseURL   string `env:"VISION_BASE_URL,default=https://api.anthropic.com" yaml:"vision_base_url"`
	VisionMaxTokens int    `env:"VISION_MAX_TOKENS,default=2048" yaml:"vision_max_tokens"`

	// HTTP server.
	Port           int    `env:"PORT,default=3000" yaml:"port"`
	MaxFileSizeMB  int    `env:"MAX_FILE_SIZE_MB,default=5" yaml:"max_file_size_mb"`
	UploadDir      string `env:"UPLOAD_DIR,default=uploads" yaml:"upload_dir"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*" yaml:"allowed_origins"`
	RateLimitRPS   int    `env:"RATE_LIMIT_RPS,default=0" yaml:"rate_limit_rps"`

	LogLevel string `env:"LOG_LEVEL,default=info" yaml:"log_level"`
}

// Load reads configuration from the environment. When CONFIG_FILE points at
// a YAML file, values set in the file override the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseKey == "" {
		return fmt.Errorf("SUPABASE_KEY is required")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max file size must be positive: %d", c.MaxFileSizeMB)
	}
	return nil
}

// MaxFileSizeBytes returns the upload cap in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// Origins returns the parsed allowed-origins list.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

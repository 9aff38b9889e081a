package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth; empty disables bearer auth
	APIKey string `yaml:"api_key"`

	// Storage; an empty DatabaseURL selects the in-memory store
	DatabaseURL string `yaml:"database_url"`
	UploadDir   string `yaml:"upload_dir"`

	// Worker pool
	WorkerCount        int `yaml:"worker_count"`
	MaxQueueSize       int `yaml:"max_queue_size"`
	MaxConcurrentEmbed int `yaml:"max_concurrent_embed"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	Embedding Embedding `yaml:"embedding"`

	// Retrieval
	DefaultMaxResults int `yaml:"default_max_results"`
}

// Embedding selects and tunes the embedding backend.
type Embedding struct {
	Provider  string        `yaml:"provider"` // none, ollama, openai or gemini
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:                 "8000",
		UploadDir:            "uploads",
		WorkerCount:          4,
		MaxQueueSize:         100,
		MaxConcurrentEmbed:   4,
		MaxUploadBytes:       52428800, // 50MB
		JobTTL:               1 * time.Hour,
		PDFFallbackPdftotext: true,
		Embedding: Embedding{
			Provider: "none",
			Timeout:  30 * time.Second,
		},
		DefaultMaxResults: 5,
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("DOCDOTS_API_KEY", cfg.APIKey)
	cfg.DatabaseURL = envOr("DATABASE_URL", cfg.DatabaseURL)
	cfg.UploadDir = envOr("UPLOAD_DIR", cfg.UploadDir)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxConcurrentEmbed = envInt("MAX_CONCURRENT_EMBED", cfg.MaxConcurrentEmbed)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	cfg.Embedding.Provider = envOr("EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.Model = envOr("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.BaseURL = envOr("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.APIKey = envOr("EMBEDDING_API_KEY", cfg.Embedding.APIKey)
	cfg.Embedding.Timeout = envDuration("EMBEDDING_TIMEOUT", cfg.Embedding.Timeout)
	cfg.Embedding.RateLimit = envFloat("EMBEDDING_RATE_LIMIT", cfg.Embedding.RateLimit)

	cfg.DefaultMaxResults = envInt("DEFAULT_MAX_RESULTS", cfg.DefaultMaxResults)

	def := Defaults()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxConcurrentEmbed <= 0 {
		cfg.MaxConcurrentEmbed = def.MaxConcurrentEmbed
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = def.Embedding.Provider
	}
	if cfg.Embedding.Timeout <= 0 {
		cfg.Embedding.Timeout = def.Embedding.Timeout
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.UploadDir == "" {
		errs = append(errs, errors.New("UPLOAD_DIR is required"))
	}
	if c.DefaultMaxResults < 1 || c.DefaultMaxResults > 10 {
		errs = append(errs, fmt.Errorf("DEFAULT_MAX_RESULTS must be between 1 and 10, got %d", c.DefaultMaxResults))
	}
	if c.Embedding.RateLimit < 0 {
		errs = append(errs, errors.New("EMBEDDING_RATE_LIMIT must not be negative"))
	}
	switch c.Embedding.Provider {
	case "none", "ollama":
	case "openai", "gemini":
		if c.Embedding.APIKey == "" {
			errs = append(errs, fmt.Errorf("EMBEDDING_API_KEY is required for provider %s", c.Embedding.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.Embedding.Provider))
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

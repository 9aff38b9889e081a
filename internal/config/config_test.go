package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "DOCDOTS_API_KEY", "DATABASE_URL", "UPLOAD_DIR", "WORKER_COUNT",
	"MAX_QUEUE_SIZE", "MAX_CONCURRENT_EMBED", "MAX_UPLOAD_BYTES", "JOB_TTL",
	"PDF_FALLBACK_PDFTOTEXT", "EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
	"EMBEDDING_BASE_URL", "EMBEDDING_API_KEY", "EMBEDDING_TIMEOUT",
	"EMBEDDING_RATE_LIMIT", "DEFAULT_MAX_RESULTS",
}

// clearEnv blanks every key Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docdots.yaml")
	yml := `
port: "9000"
worker_count: 8
job_ttl: 2h
embedding:
  provider: ollama
  model: nomic-embed-text
  timeout: 10s
default_max_results: 7
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	clearEnv(t)
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("EMBEDDING_RATE_LIMIT", "2.5")
	t.Setenv("DATABASE_URL", "postgres://localhost/docdots")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 3, cfg.WorkerCount, "env overrides the file")
	assert.Equal(t, 2*time.Hour, cfg.JobTTL)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 2.5, cfg.Embedding.RateLimit)
	assert.Equal(t, 7, cfg.DefaultMaxResults)
	assert.Equal(t, "postgres://localhost/docdots", cfg.DatabaseURL)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_COUNT", "-1")
	t.Setenv("MAX_QUEUE_SIZE", "lots")
	t.Setenv("JOB_TTL", "0s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 100, cfg.MaxQueueSize)
	assert.Equal(t, time.Hour, cfg.JobTTL)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker_count: [1"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"openai without key", func(c *Config) { c.Embedding.Provider = "openai" }, "EMBEDDING_API_KEY"},
		{"gemini with key", func(c *Config) {
			c.Embedding.Provider = "gemini"
			c.Embedding.APIKey = "k"
		}, ""},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "unknown EMBEDDING_PROVIDER"},
		{"max results out of range", func(c *Config) { c.DefaultMaxResults = 11 }, "DEFAULT_MAX_RESULTS"},
		{"negative rate", func(c *Config) { c.Embedding.RateLimit = -1 }, "EMBEDDING_RATE_LIMIT"},
		{"no upload dir", func(c *Config) { c.UploadDir = "" }, "UPLOAD_DIR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

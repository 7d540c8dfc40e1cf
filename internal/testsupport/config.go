package testsupport

import (
	"path/filepath"
	"testing"

	"photosync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.API.BaseURL = "https://api.test.invalid/api"
	cfg.Queue.BatchPauseMs = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithBatchSize overrides the reservation batch size on the test config.
func WithBatchSize(size int) ConfigOption {
	return func(c *config.Config) {
		c.Queue.BatchSize = size
	}
}

// WithMaxConcurrent overrides the upload concurrency bound on the test config.
func WithMaxConcurrent(n int) ConfigOption {
	return func(c *config.Config) {
		c.Queue.MaxConcurrentUploads = n
	}
}

// WithMaxRetries overrides the retry cap on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(c *config.Config) {
		c.Queue.MaxRetries = n
	}
}

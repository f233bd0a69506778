// Package testsupport provides shared helpers for exercising the conversion
// core in tests: temp-dir configs, session stores, sample input files, and a
// scriptable fake decoder.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"heifconv/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Codec.Binary = "fake-heif-convert"
	cfg.Workflow.ItemTimeout = 5

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WithMaxInFlight overrides the dispatch concurrency bound.
func WithMaxInFlight(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxInFlight = n
	}
}

// WithItemTimeout overrides the per-item deadline in seconds.
func WithItemTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.ItemTimeout = seconds
	}
}

// WriteHEIC creates a placeholder .heic file inside dir and returns its path.
func WriteHEIC(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("heic-bytes"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

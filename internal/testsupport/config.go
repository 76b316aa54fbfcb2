package testsupport

import (
	"path/filepath"
	"testing"

	"fieldsnap/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The queue is backed by SQLite in the temp dir and uploads land in a localfs
// object directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Store.SQLitePath = filepath.Join(base, "data", "queue.db")
	cfgVal.Storage.LocalDir = filepath.Join(base, "objects")
	cfgVal.Upload.RetryBackoffMillis = 0
	cfgVal.Upload.RescheduleDelayMillis = 0
	cfgVal.Connectivity.Netlink = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithMemoryStore backs the queue with the in-memory kvstore.
func WithMemoryStore() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = "memory"
	}
}

// WithAPIToken sets the bearer token required by the daemon API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// WithUploadLimits overrides the retry limit and per-pass bound.
func WithUploadLimits(retryLimit, maxPerPass int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.RetryLimit = retryLimit
		b.cfg.Upload.MaxPerPass = maxPerPass
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

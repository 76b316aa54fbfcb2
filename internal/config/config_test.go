package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"fieldsnap/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("FIELDSNAP_API_TOKEN", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "fieldsnap")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Store.SQLitePath != filepath.Join(wantData, "queue.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.Store.SQLitePath)
	}
	if cfg.Store.Namespace != "fieldsnap-upload-queue" {
		t.Fatalf("unexpected namespace: %q", cfg.Store.Namespace)
	}
	if cfg.API.Bind != "127.0.0.1:7489" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if cfg.Upload.RetryLimit != 3 || cfg.Upload.MaxPerPass != 2 {
		t.Fatalf("unexpected upload defaults: %+v", cfg.Upload)
	}
	if cfg.Upload.RetryBackoff().Seconds() != 2 {
		t.Fatalf("unexpected retry backoff: %s", cfg.Upload.RetryBackoff())
	}
	if cfg.Upload.RescheduleDelay().Seconds() != 1 {
		t.Fatalf("unexpected reschedule delay: %s", cfg.Upload.RescheduleDelay())
	}
	if cfg.Storage.LocalDir != filepath.Join(wantData, "objects") {
		t.Fatalf("unexpected local storage dir: %q", cfg.Storage.LocalDir)
	}
	if cfg.LockPath() != filepath.Join(wantData, "fieldsnapd.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
data_dir = "~/fs-data"

[store]
backend = "redis"
redis_addr = "10.0.0.5:6380"
redis_db = 2

[upload]
retry_limit = 5
max_per_pass = 4

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "fs-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.RedisAddr != "10.0.0.5:6380" || cfg.Store.RedisDB != 2 {
		t.Fatalf("unexpected store section: %+v", cfg.Store)
	}
	if cfg.Upload.RetryLimit != 5 || cfg.Upload.MaxPerPass != 4 {
		t.Fatalf("unexpected upload section: %+v", cfg.Upload)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging to be lower-cased, got %+v", cfg.Logging)
	}
}

func TestLoadUsesEnvFallbacks(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("FIELDSNAP_API_TOKEN", "secret-token")
	t.Setenv("FIELDSNAP_REDIS_PASSWORD", "redis-pass")
	credentials := filepath.Join(tempHome, "sa.json")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", credentials)

	cfg, _, _, err := config.Load(filepath.Join(tempHome, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.Token != "secret-token" {
		t.Fatalf("expected token from env, got %q", cfg.API.Token)
	}
	if cfg.Store.RedisPassword != "redis-pass" {
		t.Fatalf("expected redis password from env, got %q", cfg.Store.RedisPassword)
	}
	if cfg.Storage.CredentialsFile != credentials {
		t.Fatalf("expected credentials from env, got %q", cfg.Storage.CredentialsFile)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"store backend", func(c *config.Config) { c.Store.Backend = "etcd" }, "store.backend"},
		{"storage backend", func(c *config.Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"gcs bucket", func(c *config.Config) { c.Storage.Backend = "gcs" }, "storage.bucket"},
		{"api bind", func(c *config.Config) { c.API.Bind = "localhost" }, "api.bind"},
		{"probe scheme", func(c *config.Config) { c.Connectivity.ProbeURL = "ftp://example.com" }, "connectivity.probe_url"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage.LocalDir = t.TempDir()
			cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "queue.db")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	configPath := filepath.Join(tempHome, "config.toml")
	if err := os.WriteFile(configPath, []byte("[upload]\nretries = 4\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, ".config", "fieldsnap", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var parsed map[string]any
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if _, ok := parsed["upload"]; !ok {
		t.Fatal("expected [upload] section in sample")
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Upload.MaxPerPass != 2 {
		t.Fatalf("unexpected max per pass: %d", cfg.Upload.MaxPerPass)
	}
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// API contains the daemon HTTP API settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Store selects the durable key-value backend that holds the queue.
type Store struct {
	Backend       string `toml:"backend"`
	SQLitePath    string `toml:"sqlite_path"`
	Namespace     string `toml:"namespace"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// Storage selects the remote object store uploads are written to.
type Storage struct {
	Backend         string `toml:"backend"`
	Bucket          string `toml:"bucket"`
	CredentialsFile string `toml:"credentials_file"`
	GCSEndpoint     string `toml:"gcs_endpoint"`
	PublicBaseURL   string `toml:"public_base_url"`
	LocalDir        string `toml:"local_dir"`
}

// Upload contains the drain tuning knobs.
type Upload struct {
	RetryLimit             int `toml:"retry_limit"`
	MaxPerPass             int `toml:"max_per_pass"`
	RetryBackoffMillis     int `toml:"retry_backoff_ms"`
	RescheduleDelayMillis  int `toml:"reschedule_delay_ms"`
	TransferTimeoutSeconds int `toml:"transfer_timeout_seconds"`
	WaitPollMillis         int `toml:"wait_poll_ms"`
}

// Connectivity configures how the daemon decides it is online.
type Connectivity struct {
	ProbeURL             string `toml:"probe_url"`
	ProbeTimeoutSeconds  int    `toml:"probe_timeout_seconds"`
	ProbeIntervalSeconds int    `toml:"probe_interval_seconds"`
	Netlink              bool   `toml:"netlink"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic        string `toml:"ntfy_topic"`
	RequestTimeout   int    `toml:"request_timeout"`
	RetriesExhausted bool   `toml:"retries_exhausted"`
	DrainSummary     bool   `toml:"drain_summary"`
	MinDrainUploads  int    `toml:"min_drain_uploads"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for fieldsnap.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - API: daemon HTTP bind address and bearer token
//   - Store: durable key-value backend for the queue
//   - Storage: remote object store
//   - Upload: retry budget, per-pass bound, and timers
//   - Connectivity: reachability probe and netlink watcher
//   - Notifications: ntfy push settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Store         Store         `toml:"store"`
	Storage       Storage       `toml:"storage"`
	Upload        Upload        `toml:"upload"`
	Connectivity  Connectivity  `toml:"connectivity"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigRelativeLocation)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigRelativeLocation)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(defaultProjectConfigFileName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Store.Backend == "sqlite" {
		dirs = append(dirs, filepath.Dir(c.Store.SQLitePath))
	}
	if c.Storage.Backend == "localfs" {
		dirs = append(dirs, c.Storage.LocalDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, defaultDaemonLockFileName)
}

// DaemonLogPath returns the daemon log file location.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, defaultDaemonLogFileName)
}

// RetryBackoff is the pause after a failed transfer that still has retry budget.
func (u Upload) RetryBackoff() time.Duration {
	return time.Duration(u.RetryBackoffMillis) * time.Millisecond
}

// RescheduleDelay is the pause before the next drain pass when work remains.
func (u Upload) RescheduleDelay() time.Duration {
	return time.Duration(u.RescheduleDelayMillis) * time.Millisecond
}

// TransferTimeout bounds a single upload attempt.
func (u Upload) TransferTimeout() time.Duration {
	return time.Duration(u.TransferTimeoutSeconds) * time.Second
}

// WaitPoll is the progress polling interval used by WaitForUploads.
func (u Upload) WaitPoll() time.Duration {
	return time.Duration(u.WaitPollMillis) * time.Millisecond
}

// ProbeTimeout bounds a single connectivity probe request.
func (c Connectivity) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// ProbeInterval is how often the connectivity watcher re-probes.
func (c Connectivity) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

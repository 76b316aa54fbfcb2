package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "sqlite":
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return errors.New("store.sqlite_path must be set when store.backend is sqlite")
		}
	case "redis":
		if _, _, err := net.SplitHostPort(c.Store.RedisAddr); err != nil {
			return fmt.Errorf("store.redis_addr must be host:port: %w", err)
		}
		if c.Store.RedisDB < 0 {
			return errors.New("store.redis_db must be non-negative")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend: unsupported value %q (want sqlite, redis, or memory)", c.Store.Backend)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "gcs":
		if c.Storage.Bucket == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigRelativeLocation
			}
			return fmt.Errorf("storage.bucket is required for the gcs backend. Edit %s (create with 'fieldsnap config init')", defaultPath)
		}
		if _, err := url.ParseRequestURI(c.Storage.GCSEndpoint); err != nil {
			return fmt.Errorf("storage.gcs_endpoint: %w", err)
		}
	case "localfs":
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			return errors.New("storage.local_dir must be set when storage.backend is localfs")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want gcs or localfs)", c.Storage.Backend)
	}
	if c.Storage.PublicBaseURL != "" {
		if _, err := url.ParseRequestURI(c.Storage.PublicBaseURL); err != nil {
			return fmt.Errorf("storage.public_base_url: %w", err)
		}
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	if c.Connectivity.ProbeURL == "" {
		return nil
	}
	parsed, err := url.ParseRequestURI(c.Connectivity.ProbeURL)
	if err != nil {
		return fmt.Errorf("connectivity.probe_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("connectivity.probe_url: unsupported scheme %q", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

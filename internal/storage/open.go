package storage

import (
	"context"
	"fmt"

	"fieldsnap/internal/config"
	"fieldsnap/internal/storage/gcs"
	"fieldsnap/internal/storage/localfs"
)

// Open builds the object store selected by cfg.Storage.Backend.
func Open(_ context.Context, cfg *config.Config) (ObjectStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage open: config is required")
	}
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gcs.New(gcs.Options{
			Bucket:          cfg.Storage.Bucket,
			Endpoint:        cfg.Storage.GCSEndpoint,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
			CredentialsFile: cfg.Storage.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("open gcs storage: %w", err)
		}
		return client, nil
	case "localfs":
		store, err := localfs.New(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("open localfs storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

package preflight

import (
	"context"

	"fieldsnap/internal/config"
	"fieldsnap/internal/connectivity"
	"fieldsnap/internal/storage"
)

// CheckStorageFromConfig builds the configured object store and pings it.
func CheckStorageFromConfig(ctx context.Context, cfg *config.Config) Result {
	name := "Object store"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	name += " (" + cfg.Storage.Backend + ")"
	objects, err := storage.Open(ctx, cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return CheckObjectStore(ctx, name, objects)
}

// CheckConnectivityFromConfig probes the configured reachability URL.
func CheckConnectivityFromConfig(ctx context.Context, cfg *config.Config) Result {
	if cfg == nil {
		return Result{Name: "Connectivity", Detail: "Unknown"}
	}
	probe := connectivity.NewProbe(cfg.Connectivity.ProbeURL, cfg.Connectivity.ProbeTimeout(), nil)
	return CheckConnectivity(ctx, probe)
}

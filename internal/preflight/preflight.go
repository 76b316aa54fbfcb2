package preflight

import (
	"context"

	"fieldsnap/internal/config"
	"fieldsnap/internal/connectivity"
	"fieldsnap/internal/kvstore"
	"fieldsnap/internal/storage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Targets holds the already-built components RunAll should check. Nil
// fields are skipped.
type Targets struct {
	Backend kvstore.Backend
	Objects storage.ObjectStore
	Probe   *connectivity.Probe
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, targets Targets) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Data directory (always checked)
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))

	if cfg.Storage.Backend == "localfs" {
		results = append(results, CheckDirectoryAccess("Object directory", cfg.Storage.LocalDir))
	}
	if targets.Backend != nil {
		results = append(results, CheckQueueBackend(ctx, "Queue store ("+cfg.Store.Backend+")", targets.Backend))
	}
	if targets.Objects != nil {
		results = append(results, CheckObjectStore(ctx, "Object store ("+cfg.Storage.Backend+")", targets.Objects))
	}
	if targets.Probe != nil {
		results = append(results, CheckConnectivity(ctx, targets.Probe))
	}
	return results
}

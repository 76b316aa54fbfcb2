package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"fieldsnap/internal/connectivity"
	"fieldsnap/internal/kvstore"
	"fieldsnap/internal/storage"
)

const checkTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckObjectStore pings the remote object store.
func CheckObjectStore(ctx context.Context, name string, objects storage.ObjectStore) Result {
	if objects == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := objects.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckQueueBackend pings the key-value backend when it supports it.
func CheckQueueBackend(ctx context.Context, name string, backend kvstore.Backend) Result {
	pinger, ok := backend.(kvstore.Pinger)
	if !ok {
		return Result{Name: name, Passed: true, Detail: "Ready"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := pinger.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckConnectivity runs one reachability probe. A failure means uploads
// wait; it is reported but never blocks startup.
func CheckConnectivity(ctx context.Context, probe *connectivity.Probe) Result {
	const name = "Connectivity"
	if probe == nil || probe.URL() == "" {
		return Result{Name: name, Passed: true, Detail: "No probe configured (assumed online)"}
	}
	if err := probe.Check(ctx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%s)", probe.URL(), summarizeError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", probe.URL())}
}

// summarizeError produces a human-readable summary for check failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}

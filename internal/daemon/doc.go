// Package daemon coordinates the long-running fieldsnapd process.
//
// It wires configuration, the key-value backend, the queue store, the object
// store, the uploader's scheduler, the connectivity watcher, and the HTTP API
// into a single lifecycle with flock-based locking to prevent multiple
// instances. Preflight results are logged at startup; none of them stop the
// daemon, since uploads simply stay queued until a dependency recovers.
//
// Keep orchestration logic here: upload semantics live in the uploader and
// queue packages while the daemon focuses on startup, shutdown, and wiring.
package daemon

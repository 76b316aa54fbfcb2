// Package api defines the daemon's HTTP surface: wire-format types, the chi
// router that serves them, and the client the CLI uses to talk to a running
// fieldsnapd.
//
// # Key Types
//
// Item: transport representation of a queue entry with flattened metadata,
// retry state, and timestamps.
//
// StatusResponse: daemon process details, connectivity, queue counts, and
// uploader statistics.
//
// ProgressResponse/UploadedResponse/WaitResponse: the progress facade exposed
// per group.
//
// # Handler
//
// NewHandler mounts every /api route on a chi router with request ids, panic
// recovery, and optional bearer authentication. Queue errors map to status
// codes: queue.ErrNotFound is 404, validation errors are 400, anything else
// is 500. Error bodies are always {"error": "..."}.
//
// # Client
//
// NewClient derives the base URL from the configured bind address and sends
// the configured token. Non-2xx responses come back as *APIError so callers
// can branch on IsNotFound.
//
// # Design Notes
//
// JSON keys are snake_case to match the enqueue input accepted by the queue.
// Timestamps use RFC3339 with milliseconds.
package api

// Package notifications delivers upload events via ntfy.
//
// The ntfy topic comes from config.toml; with no topic the service is a
// no-op. Events are gated by the notifications section so a daemon can
// report exhausted retries without announcing every drain pass.
package notifications

// Package metrics defines the Prometheus collectors the daemon exposes on
// /metrics.
package metrics

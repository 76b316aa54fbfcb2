// Package kvstore provides the durable key-value persistence the upload queue
// writes its collection to.
//
// A Backend stores opaque values under (namespace, key) pairs. SQLite is the
// default device-local backend; Redis serves deployments that share a broker
// with other services on the device; Memory backs tests and ephemeral runs.
package kvstore

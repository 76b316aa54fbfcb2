// Package gcs implements storage.ObjectStore against the Google Cloud Storage
// JSON API using plain HTTP requests. Credentials come from a service-account
// key file, the GCE metadata server, or a fixed token for emulators.
package gcs

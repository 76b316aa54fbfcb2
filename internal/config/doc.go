// Package config loads, normalizes, and validates fieldsnap configuration.
//
// It supplies defaults for the upload queue, expands user paths (including
// tilde shortcuts), reads TOML files, and honours environment fallbacks such
// as FIELDSNAP_API_TOKEN and GOOGLE_APPLICATION_CREDENTIALS. Both the daemon
// and the CLI obtain their settings through Load so they agree on where the
// queue lives and how the API is reached.
package config

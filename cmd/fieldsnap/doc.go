// Package main hosts the fieldsnap CLI.
//
// Commands talk to a running fieldsnapd over its HTTP API: enqueueing
// captured files, inspecting and repairing the upload queue, following a
// group's progress, and requesting drain passes. Configuration scaffolding
// and the foreground daemon runner live here too.
package main

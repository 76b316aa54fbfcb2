// Package blobref resolves the local reference recorded on a queue item into
// the bytes to upload.
//
// Supported references are filesystem paths, file:// URIs, and RFC 2397 data:
// URIs. Content types come from the data: URI declaration when present and are
// otherwise sniffed from the payload.
package blobref

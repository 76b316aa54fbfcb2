// Package queue owns the offline upload queue: the ordered collection of
// captured media items awaiting transfer to remote storage.
//
// The Store is the single writer of item state. Every mutation clones the
// collection, applies the change, and persists the full collection to a
// kvstore.Backend before the in-memory copy is replaced, so a failed write
// never leaves memory ahead of disk. Reads are served from memory.
//
// Items move pending -> uploading -> uploaded|failed. A failed item is picked
// up again automatically while its RetryCount is below the retry limit; an
// operator can send any failed item back to pending with RetryFailed without
// resetting its RetryCount.
//
// The processing flag mirrors the upload drain guard for observers and is
// never persisted; a reloaded store always starts with it cleared.
package queue

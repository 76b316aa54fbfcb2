// Package storage defines the remote object store uploads are written to and
// the object naming convention shared by every backend.
//
// Objects live at groups/{groupId}/{category}/{id}.{ext}. Writes are upserts:
// re-uploading an item overwrites the same object, which makes a retried
// transfer idempotent from the caller's point of view.
package storage

// Package progress derives read-only upload progress for a group and offers
// WaitForUploads, the point where a dependent workflow blocks until a
// group's photos are uploaded before finalising the record that references
// them.
package progress

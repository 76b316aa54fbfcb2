package queue

import "errors"

var (
	// ErrNotFound is returned when an item id is not in the queue.
	ErrNotFound = errors.New("queue item not found")
	// ErrInvalidStatus is returned for status values outside the lifecycle.
	ErrInvalidStatus = errors.New("invalid queue status")
	// ErrInvalidSpec is returned when an enqueue request misses required fields.
	ErrInvalidSpec = errors.New("invalid enqueue request")
	// ErrCorruptState is returned when the persisted collection cannot be decoded.
	ErrCorruptState = errors.New("persisted queue state is unreadable")
)

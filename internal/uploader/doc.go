// Package uploader drains the upload queue to the object store.
//
// A drain pass selects eligible items in insertion order, uploads each one,
// and records the outcome on the queue. A pass stops after MaxPerPass
// successful uploads; failures do not consume that budget but are throttled
// by a fixed backoff while the item still has retries left. When work
// remains after a pass the scheduler runs another pass after a short delay,
// so a large backlog drains in small bounded steps.
//
// Only one pass runs at a time. A Drain call made while another pass is
// active returns immediately without touching the queue. A Drain call made
// while the device is offline also returns immediately; the connectivity
// watcher triggers a new pass when the network comes back.
//
// Every transfer failure is treated alike: the retry count is incremented,
// the error text is stored on the item, and the pass moves on. Nothing
// inside a pass is fatal, including a panic in an object store client.
package uploader

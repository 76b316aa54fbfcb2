package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fieldsnap/internal/logging"
	"fieldsnap/internal/notifications"
	"fieldsnap/internal/queue"
	"fieldsnap/internal/storage"
)

type outcome int

const (
	outcomeUploaded outcome = iota
	outcomeFailed
	outcomeExhausted
	outcomeInterrupted
)

// Drain runs one bounded pass. It never returns an error: transfer failures
// are recorded on their items and queue write failures end the pass early.
func (u *Uploader) Drain(ctx context.Context) DrainResult {
	// A connectivity check can block for its timeout, so it runs before the pass lock.
	if !u.signal.Online(ctx) {
		u.logger.Debug("offline; skipping drain")
		u.metrics.IncDrain(string(SkipOffline))
		return DrainResult{Skipped: SkipOffline}
	}

	if !u.drainMu.TryLock() {
		u.logger.Debug("drain already active; skipping")
		u.metrics.IncDrain(string(SkipActive))
		return DrainResult{Skipped: SkipActive}
	}
	defer u.drainMu.Unlock()

	u.store.SetProcessing(true)
	defer u.store.SetProcessing(false)

	start := time.Now()
	var result DrainResult
	if !u.resetStale(ctx) {
		result.Duration = time.Since(start)
		u.metrics.IncDrain("completed")
		u.recordPass(result)
		return result
	}
	for result.Uploaded < u.maxPerPass {
		if ctx.Err() != nil {
			break
		}
		item, ok := u.store.NextEligible()
		if !ok {
			break
		}
		result.Attempts++
		out, err := u.process(ctx, *item)
		if errors.Is(err, queue.ErrNotFound) {
			u.logger.Info("item removed while uploading", logging.ItemID(item.ID))
			continue
		}
		if err != nil {
			logging.ErrorWithContext(u.logger, "queue update failed; ending drain pass", "drain_store_error",
				logging.ItemID(item.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the queue store backend"),
				logging.String(logging.FieldImpact, "remaining items wait for the next pass"),
			)
			break
		}
		switch out {
		case outcomeUploaded:
			result.Uploaded++
		case outcomeExhausted:
			result.Exhausted++
			result.Failed++
		case outcomeFailed:
			result.Failed++
		}
	}

	// A pass that attempted nothing only reschedules for items it can pick;
	// anything still uploading is left to the next trigger.
	if ctx.Err() == nil && u.store.HasRemainingWork() && (result.Attempts > 0 || u.store.HasEligible()) {
		result.Rescheduled = true
		u.schedule(u.rescheduleDelay)
	}
	result.Duration = time.Since(start)

	u.metrics.IncDrain("completed")
	u.recordPass(result)
	u.logPass(result)
	u.maybeNotifySummary(ctx, result)
	return result
}

// process uploads one item and records the outcome. A non-nil error means
// the queue itself could not be updated.
func (u *Uploader) process(ctx context.Context, item queue.Item) (outcome, error) {
	logger := u.logger.With(logging.ItemID(item.ID), logging.GroupID(item.GroupID))

	if err := u.store.UpdateStatus(ctx, item.ID, queue.StatusUploading, "", ""); err != nil {
		return outcomeFailed, fmt.Errorf("mark uploading: %w", err)
	}

	out, err := u.finish(ctx, item, logger)
	if err != nil && !errors.Is(err, queue.ErrNotFound) {
		u.releaseUploading(item.ID, logger)
	}
	return out, err
}

// finish runs the transfer for an item already marked uploading and records
// its result.
func (u *Uploader) finish(ctx context.Context, item queue.Item, logger *slog.Logger) (outcome, error) {
	started := time.Now()
	remoteURL, size, transferErr := u.transfer(ctx, item)
	u.metrics.ObserveTransfer(transferErr == nil, size, time.Since(started))

	if transferErr == nil {
		if err := u.store.UpdateStatus(ctx, item.ID, queue.StatusUploaded, remoteURL, ""); err != nil {
			return outcomeFailed, fmt.Errorf("mark uploaded: %w", err)
		}
		logger.Info("upload complete",
			logging.String(logging.FieldEventType, "upload_complete"),
			logging.String("remote_url", remoteURL),
			logging.Int("bytes", size),
			logging.Duration("elapsed", time.Since(started)),
		)
		return outcomeUploaded, nil
	}

	if ctx.Err() != nil {
		return u.recordInterrupted(item, logger)
	}
	return u.recordFailure(ctx, item, transferErr, logger)
}

// recordInterrupted handles a transfer cut short by shutdown. The retry
// count is left alone, matching what a restart does with an item found in
// uploading.
func (u *Uploader) recordInterrupted(item queue.Item, logger *slog.Logger) (outcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.store.UpdateStatus(ctx, item.ID, queue.StatusFailed, "", queue.InterruptedReason); err != nil {
		return outcomeInterrupted, fmt.Errorf("mark interrupted: %w", err)
	}
	logger.Info("upload interrupted by shutdown",
		logging.String(logging.FieldEventType, "upload_interrupted"),
	)
	return outcomeInterrupted, nil
}

// releaseUploading moves an item out of uploading after a failed queue write
// so it does not wait for a restart. The write uses its own context and may
// fail again; resetStale retries it at the start of the next pass.
func (u *Uploader) releaseUploading(id string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.store.UpdateStatus(ctx, id, queue.StatusFailed, "", queue.InterruptedReason); err != nil && !errors.Is(err, queue.ErrNotFound) {
		logger.Warn("could not release item from uploading",
			logging.Error(err),
			logging.String(logging.FieldEventType, "upload_release_failed"),
			logging.String(logging.FieldImpact, "item is reset on the next drain pass"),
		)
	}
}

// resetStale fails items left in uploading by an earlier pass. It runs under
// the pass lock, so no transfer can be in flight. It reports false when the
// queue cannot be written.
func (u *Uploader) resetStale(ctx context.Context) bool {
	n, err := u.store.ResetInterrupted(ctx)
	if err != nil {
		logging.ErrorWithContext(u.logger, "queue update failed; ending drain pass", "drain_store_error",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue store backend"),
			logging.String(logging.FieldImpact, "remaining items wait for the next pass"),
		)
		return false
	}
	if n > 0 {
		u.logger.Info("stale uploads marked failed",
			logging.String(logging.FieldEventType, "upload_reset"),
			logging.Int("count", n),
		)
	}
	return true
}

func (u *Uploader) recordFailure(ctx context.Context, item queue.Item, transferErr error, logger *slog.Logger) (outcome, error) {
	count, err := u.store.IncrementRetryCount(ctx, item.ID)
	if err != nil {
		return outcomeFailed, fmt.Errorf("increment retry count: %w", err)
	}
	if err := u.store.UpdateStatus(ctx, item.ID, queue.StatusFailed, "", transferErr.Error()); err != nil {
		return outcomeFailed, fmt.Errorf("mark failed: %w", err)
	}

	if count < u.retryLimit {
		logger.Warn("upload failed; will retry",
			logging.Error(transferErr),
			logging.String(logging.FieldEventType, "upload_failed"),
			logging.Int("attempt", count),
			logging.Int("retry_limit", u.retryLimit),
			logging.Duration("backoff", u.retryBackoff),
		)
		u.sleep(ctx, u.retryBackoff)
		return outcomeFailed, nil
	}

	logging.ErrorWithContext(logger, "upload retries exhausted", "upload_retries_exhausted",
		logging.Error(transferErr),
		logging.Int("attempt", count),
		logging.String(logging.FieldErrorHint, "run 'fieldsnap queue retry' once the cause is fixed"),
		logging.String(logging.FieldImpact, "item stays failed until retried manually"),
	)
	u.metrics.IncExhausted()
	u.publish(ctx, notifications.EventRetriesExhausted, notifications.Payload{
		"item":     item.ID,
		"group":    item.GroupID,
		"attempts": count,
		"error":    transferErr.Error(),
	})
	return outcomeExhausted, nil
}

// transfer resolves the item's bytes, writes them to the object store, and
// returns the durable URL. Panics from collaborators become errors.
func (u *Uploader) transfer(ctx context.Context, item queue.Item) (remoteURL string, size int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("upload panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, u.transferTimeout)
	defer cancel()

	if u.resolver == nil || u.objects == nil {
		return "", 0, errors.New("uploader not configured with a resolver and object store")
	}

	blob, err := u.resolver.Resolve(ctx, item.LocalRef)
	if err != nil {
		return "", 0, fmt.Errorf("resolve %s: %w", item.LocalRef, err)
	}
	contentType := item.FileType
	if contentType == "" {
		contentType = blob.ContentType
	}

	path := storage.ObjectPath(item.GroupID, item.Category, item.ID, storage.ExtensionFor(contentType))
	if err := u.objects.Upsert(ctx, path, blob.Data, contentType); err != nil {
		return "", len(blob.Data), err
	}
	remoteURL, err = u.objects.URL(ctx, path)
	if err != nil {
		return "", len(blob.Data), fmt.Errorf("resolve object url: %w", err)
	}
	return remoteURL, len(blob.Data), nil
}

func (u *Uploader) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (u *Uploader) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := u.notifier.Publish(ctx, event, payload); err != nil {
		u.logger.Warn("notification failed",
			logging.Error(err),
			logging.String("event", string(event)),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check ntfy topic configuration"),
		)
	}
}

// maybeNotifySummary accumulates counts across continuation passes and
// publishes them once the queue has no automatic work left.
func (u *Uploader) maybeNotifySummary(ctx context.Context, result DrainResult) {
	u.mu.Lock()
	u.summary.uploaded += result.Uploaded
	u.summary.failed += result.Failed
	if result.Rescheduled || (u.summary.uploaded == 0 && u.summary.failed == 0) {
		u.mu.Unlock()
		return
	}
	uploaded, failed := u.summary.uploaded, u.summary.failed
	u.summary.uploaded, u.summary.failed = 0, 0
	u.mu.Unlock()

	u.publish(ctx, notifications.EventDrainCompleted, notifications.Payload{
		"uploaded": uploaded,
		"failed":   failed,
	})
}

func (u *Uploader) logPass(result DrainResult) {
	if result.Attempts == 0 {
		u.logger.Debug("drain pass found no eligible items")
		return
	}
	u.logger.Info("drain pass finished",
		logging.String(logging.FieldEventType, "drain_pass_finished"),
		logging.Int("attempts", result.Attempts),
		logging.Int("uploaded", result.Uploaded),
		logging.Int("failed", result.Failed),
		logging.Int("exhausted", result.Exhausted),
		logging.Bool("rescheduled", result.Rescheduled),
		logging.Duration("elapsed", result.Duration),
	)
}

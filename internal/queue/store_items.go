package queue

import (
	"context"
	"fmt"
	"strings"

	"fieldsnap/internal/logging"
)

// Enqueue appends a pending item with zero retries, persists the collection,
// and returns the new id.
func (s *Store) Enqueue(ctx context.Context, spec EnqueueSpec) (string, error) {
	spec.GroupID = strings.TrimSpace(spec.GroupID)
	spec.LocalRef = strings.TrimSpace(spec.LocalRef)
	spec.Category = strings.TrimSpace(spec.Category)
	switch {
	case spec.GroupID == "":
		return "", fmt.Errorf("%w: group_id is required", ErrInvalidSpec)
	case spec.LocalRef == "":
		return "", fmt.Errorf("%w: local_ref is required", ErrInvalidSpec)
	case spec.Category == "":
		return "", fmt.Errorf("%w: category is required", ErrInvalidSpec)
	case spec.FileSize < 0:
		return "", fmt.Errorf("%w: file_size must not be negative", ErrInvalidSpec)
	}

	now := s.now().UTC()
	item := Item{
		ID:        s.newID(),
		GroupID:   spec.GroupID,
		LocalRef:  spec.LocalRef,
		Category:  spec.Category,
		Metadata:  spec.Metadata,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		FileSize:  spec.FileSize,
		FileType:  strings.TrimSpace(spec.FileType),
		GPS:       spec.GPS.clone(),
	}

	err := s.mutate(ctx, func(items []Item) ([]Item, bool, error) {
		if indexOf(items, item.ID) >= 0 {
			return nil, false, fmt.Errorf("enqueue: duplicate item id %s", item.ID)
		}
		return append(items, item), true, nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("item enqueued", logItem(item)...)
	if s.onEnqueue != nil {
		s.onEnqueue(item.Clone())
	}
	return item.ID, nil
}

// Remove deletes one item. It reports whether the item existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.mutate(ctx, func(items []Item) ([]Item, bool, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return items, false, nil
		}
		removed = true
		return append(items[:idx], items[idx+1:]...), true, nil
	})
	return removed, err
}

// ClearCompleted drops every uploaded item and returns how many were removed.
func (s *Store) ClearCompleted(ctx context.Context) (int, error) {
	return s.removeWhere(ctx, func(item Item) bool { return item.Status == StatusUploaded })
}

// ClearGroup drops every item belonging to groupID regardless of status.
func (s *Store) ClearGroup(ctx context.Context, groupID string) (int, error) {
	return s.removeWhere(ctx, func(item Item) bool { return item.GroupID == groupID })
}

func (s *Store) removeWhere(ctx context.Context, match func(Item) bool) (int, error) {
	removed := 0
	err := s.mutate(ctx, func(items []Item) ([]Item, bool, error) {
		kept := items[:0]
		for _, item := range items {
			if match(item) {
				removed++
				continue
			}
			kept = append(kept, item)
		}
		return kept, removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// UpdateStatus sets the status of id. remoteURL and errText replace the stored
// values; pass empty strings to clear them.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, remoteURL, errText string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.update(ctx, id, func(item *Item) {
		item.Status = status
		item.RemoteURL = remoteURL
		item.Error = errText
	})
}

// ResetInterrupted marks every uploading item failed with InterruptedReason,
// leaving RetryCount alone. The caller must know no transfer is in flight.
func (s *Store) ResetInterrupted(ctx context.Context) (int, error) {
	var reset int
	err := s.mutate(ctx, func(items []Item) ([]Item, bool, error) {
		reset = markInterrupted(items, s.now().UTC())
		return items, reset > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return reset, nil
}

// UpdateMetadata edits location and caption. It is allowed in every status.
func (s *Store) UpdateMetadata(ctx context.Context, id string, update MetadataUpdate) error {
	return s.update(ctx, id, func(item *Item) {
		if update.Location != nil {
			item.Metadata.Location = *update.Location
		}
		if update.Caption != nil {
			item.Metadata.Caption = *update.Caption
		}
	})
}

// IncrementRetryCount bumps the retry counter of id and returns the new value.
func (s *Store) IncrementRetryCount(ctx context.Context, id string) (int, error) {
	var count int
	err := s.update(ctx, id, func(item *Item) {
		item.RetryCount++
		count = item.RetryCount
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RetryFailed moves failed items back to pending and clears their error. The
// RetryCount is kept, so an item past the retry limit is retried once per
// manual request: pending is always eligible, and a further failure lands it
// straight back outside the automatic budget. With no ids every failed item is
// retried; ids that are missing or not failed are ignored.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	retried := 0
	now := s.now().UTC()
	err := s.mutate(ctx, func(items []Item) ([]Item, bool, error) {
		for idx := range items {
			if items[idx].Status != StatusFailed {
				continue
			}
			if len(wanted) > 0 {
				if _, ok := wanted[items[idx].ID]; !ok {
					continue
				}
			}
			items[idx].Status = StatusPending
			items[idx].Error = ""
			items[idx].UpdatedAt = now
			retried++
		}
		return items, retried > 0, nil
	})
	if err != nil {
		return 0, err
	}
	if retried > 0 {
		s.logger.Info("failed items returned to pending", "count", retried)
	}
	return retried, nil
}

func (s *Store) update(ctx context.Context, id string, apply func(item *Item)) error {
	now := s.now().UTC()
	return s.mutate(ctx, func(items []Item) ([]Item, bool, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return nil, false, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		apply(&items[idx])
		items[idx].UpdatedAt = now
		return items, true, nil
	})
}

func logItem(item Item) []any {
	return []any{
		logging.FieldItemID, item.ID,
		logging.FieldGroupID, item.GroupID,
		"category", item.Category,
		"status", string(item.Status),
	}
}

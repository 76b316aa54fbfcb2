package api

import (
	"fieldsnap/internal/progress"
	"fieldsnap/internal/queue"
)

// FromQueueItem converts a queue record to its API representation. retryLimit
// decides whether a failed item is reported as exhausted.
func FromQueueItem(item queue.Item, retryLimit int) Item {
	dto := Item{
		ID:         item.ID,
		GroupID:    item.GroupID,
		LocalRef:   item.LocalRef,
		Category:   item.Category,
		Location:   item.Metadata.Location,
		Caption:    item.Metadata.Caption,
		GPS:        item.GPS,
		Status:     string(item.Status),
		RemoteURL:  item.RemoteURL,
		Error:      item.Error,
		RetryCount: item.RetryCount,
		Exhausted:  item.Status == queue.StatusFailed && item.RetryCount >= retryLimit,
		FileSize:   item.FileSize,
		FileType:   item.FileType,
	}
	if !item.CreatedAt.IsZero() {
		dto.CreatedAt = item.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !item.UpdatedAt.IsZero() {
		dto.UpdatedAt = item.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs. The result
// is never nil so it encodes as an empty JSON array.
func FromQueueItems(items []queue.Item, retryLimit int) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item, retryLimit))
	}
	return out
}

func progressResponse(facade *progress.Facade, groupID string) ProgressResponse {
	return ProgressResponse{
		GroupID:     groupID,
		Progress:    facade.Progress(groupID),
		AllUploaded: facade.AllUploaded(groupID),
	}
}

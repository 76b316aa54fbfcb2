package progress

import (
	"context"
	"math"
	"time"

	"fieldsnap/internal/queue"
)

// DefaultPollInterval is how often WaitForUploads re-reads progress.
const DefaultPollInterval = 500 * time.Millisecond

// Triggerer requests a drain pass.
type Triggerer interface {
	Trigger()
}

// UploadedItem is the caller-facing view of an uploaded photo.
type UploadedItem struct {
	ID       string     `json:"id"`
	URL      string     `json:"url"`
	Category string     `json:"category"`
	Location string     `json:"location"`
	Caption  string     `json:"caption"`
	GPS      *queue.GPS `json:"gps,omitempty"`
}

// Progress aggregates a group's items. Pending includes items being uploaded.
type Progress struct {
	Total    int `json:"total"`
	Uploaded int `json:"uploaded"`
	Pending  int `json:"pending"`
	Failed   int `json:"failed"`
	Percent  int `json:"percent"`
}

// Done reports whether nothing is pending.
func (p Progress) Done() bool {
	return p.Pending == 0
}

// Facade reads progress from a queue.Store. Every method is scoped to one
// group; an empty group id names a group with no items, never the whole queue.
type Facade struct {
	store        *queue.Store
	drainer      Triggerer
	pollInterval time.Duration
}

// Option customises a Facade.
type Option func(*Facade)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(f *Facade) {
		if d > 0 {
			f.pollInterval = d
		}
	}
}

// New builds a Facade. drainer may be nil, in which case WaitForUploads
// only polls.
func New(store *queue.Store, drainer Triggerer, opts ...Option) *Facade {
	f := &Facade{store: store, drainer: drainer, pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// UploadedItems lists the group's uploaded items that have a URL.
func (f *Facade) UploadedItems(groupID string) []UploadedItem {
	items := f.store.ItemsForGroup(groupID)
	out := make([]UploadedItem, 0, len(items))
	for _, item := range items {
		if item.Status != queue.StatusUploaded || item.RemoteURL == "" {
			continue
		}
		out = append(out, UploadedItem{
			ID:       item.ID,
			URL:      item.RemoteURL,
			Category: item.Category,
			Location: item.Metadata.Location,
			Caption:  item.Metadata.Caption,
			GPS:      item.GPS,
		})
	}
	return out
}

// AllUploaded is true when the group is empty or every item is uploaded.
func (f *Facade) AllUploaded(groupID string) bool {
	counts := f.groupCounts(groupID)
	return counts.Uploaded == counts.Total
}

// Progress summarises the group.
func (f *Facade) Progress(groupID string) Progress {
	counts := f.groupCounts(groupID)
	p := Progress{
		Total:    counts.Total,
		Uploaded: counts.Uploaded,
		Pending:  counts.Pending + counts.Uploading,
		Failed:   counts.Failed,
		Percent:  100,
	}
	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Uploaded) / float64(p.Total) * 100))
	}
	return p
}

// WaitForUploads triggers a drain and polls until nothing in the group is
// pending or timeout elapses. It returns true only when it stopped with no
// pending and no failed items. It never cancels work in progress.
func (f *Facade) WaitForUploads(ctx context.Context, groupID string, timeout time.Duration) bool {
	if f.drainer != nil {
		f.drainer.Trigger()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		p := f.Progress(groupID)
		if p.Done() {
			return p.Failed == 0
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// groupCounts keeps the empty id from reaching Store.Counts, where it means
// every group.
func (f *Facade) groupCounts(groupID string) queue.Counts {
	if groupID == "" {
		return queue.Counts{}
	}
	return f.store.Counts(groupID)
}

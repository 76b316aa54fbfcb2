package uploader

import "time"

// Stats is a snapshot of scheduler activity.
type Stats struct {
	Running       bool        `json:"running"`
	Draining      bool        `json:"draining"`
	Passes        int         `json:"passes"`
	TotalUploaded int         `json:"total_uploaded"`
	TotalFailed   int         `json:"total_failed"`
	LastDrainAt   time.Time   `json:"last_drain_at"`
	LastResult    DrainResult `json:"last_result"`
}

// Stats returns counters since the uploader was built.
func (u *Uploader) Stats() Stats {
	u.mu.Lock()
	defer u.mu.Unlock()
	snapshot := u.stats
	snapshot.Draining = u.store.IsProcessing()
	return snapshot
}

func (u *Uploader) recordPass(result DrainResult) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.stats.Passes++
	u.stats.TotalUploaded += result.Uploaded
	u.stats.TotalFailed += result.Failed
	u.stats.LastDrainAt = time.Now().UTC()
	u.stats.LastResult = result
}

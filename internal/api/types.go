package api

import (
	"fieldsnap/internal/progress"
	"fieldsnap/internal/queue"
	"fieldsnap/internal/uploader"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Item describes a queue entry in a transport-friendly format.
type Item struct {
	ID         string     `json:"id"`
	GroupID    string     `json:"group_id"`
	LocalRef   string     `json:"local_ref"`
	Category   string     `json:"category"`
	Location   string     `json:"location"`
	Caption    string     `json:"caption"`
	GPS        *queue.GPS `json:"gps,omitempty"`
	Status     string     `json:"status"`
	RemoteURL  string     `json:"remote_url,omitempty"`
	Error      string     `json:"error,omitempty"`
	RetryCount int        `json:"retry_count"`
	Exhausted  bool       `json:"exhausted"`
	FileSize   int64      `json:"file_size,omitempty"`
	FileType   string     `json:"file_type,omitempty"`
	CreatedAt  string     `json:"created_at,omitempty"`
	UpdatedAt  string     `json:"updated_at,omitempty"`
}

// ItemsResponse wraps a collection of queue items.
type ItemsResponse struct {
	Items []Item `json:"items"`
}

// EnqueueResponse returns the id assigned to a new item.
type EnqueueResponse struct {
	ID string `json:"id"`
}

// RetryRequest names failed items to return to pending. Empty means all.
type RetryRequest struct {
	IDs []string `json:"ids"`
}

// CountResponse reports how many items an operation touched.
type CountResponse struct {
	Count int `json:"count"`
}

// GroupsResponse lists every group with its counts.
type GroupsResponse struct {
	Groups []queue.GroupSummary `json:"groups"`
}

// ProgressResponse is the progress summary of one group.
type ProgressResponse struct {
	GroupID string `json:"group_id"`
	progress.Progress
	AllUploaded bool `json:"all_uploaded"`
}

// UploadedResponse lists the uploaded items of one group.
type UploadedResponse struct {
	GroupID string                  `json:"group_id"`
	Items   []progress.UploadedItem `json:"items"`
}

// WaitResponse reports whether a group finished within the requested timeout.
type WaitResponse struct {
	Done     bool             `json:"done"`
	Progress ProgressResponse `json:"progress"`
}

// DrainResponse reports a drain request. Result is set only for synchronous drains.
type DrainResponse struct {
	Triggered bool                  `json:"triggered"`
	Result    *uploader.DrainResult `json:"result,omitempty"`
}

// StatusResponse aggregates daemon runtime information for API consumers.
type StatusResponse struct {
	Running        bool           `json:"running"`
	PID            int            `json:"pid"`
	Online         bool           `json:"online"`
	DataDir        string         `json:"data_dir"`
	LockPath       string         `json:"lock_path"`
	StoreBackend   string         `json:"store_backend"`
	StorageBackend string         `json:"storage_backend"`
	RetryLimit     int            `json:"retry_limit"`
	MaxPerPass     int            `json:"max_per_pass"`
	Queue          queue.Counts   `json:"queue"`
	Uploader       uploader.Stats `json:"uploader"`
}

type errorResponse struct {
	Error string `json:"error"`
}

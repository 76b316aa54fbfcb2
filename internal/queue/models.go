package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusUploaded  Status = "uploaded"
	StatusFailed    Status = "failed"
)

// DefaultRetryLimit is the automatic retry budget per item.
const DefaultRetryLimit = 3

// InterruptedReason is recorded on items found mid-upload when the store is reopened.
const InterruptedReason = "upload interrupted before completion"

var allStatuses = []Status{
	StatusPending,
	StatusUploading,
	StatusUploaded,
	StatusFailed,
}

// AllStatuses returns the status domain in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// Valid reports whether s is part of the status domain.
func (s Status) Valid() bool {
	for _, status := range allStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// GPS is an optional capture location.
type GPS struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// Metadata is the user-editable description of an item.
type Metadata struct {
	Location string `json:"location"`
	Caption  string `json:"caption"`
}

// Item is one captured media file awaiting or past upload.
type Item struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	LocalRef   string    `json:"local_ref"`
	Category   string    `json:"category"`
	Metadata   Metadata  `json:"metadata"`
	GPS        *GPS      `json:"gps,omitempty"`
	Status     Status    `json:"status"`
	RemoteURL  string    `json:"remote_url,omitempty"`
	Error      string    `json:"error,omitempty"`
	RetryCount int       `json:"retry_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	FileSize   int64     `json:"file_size,omitempty"`
	FileType   string    `json:"file_type,omitempty"`
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	out.GPS = i.GPS.clone()
	return out
}

func (g *GPS) clone() *GPS {
	if g == nil {
		return nil
	}
	out := *g
	if g.Accuracy != nil {
		accuracy := *g.Accuracy
		out.Accuracy = &accuracy
	}
	return &out
}

// EnqueueSpec is the capture input for a new item.
type EnqueueSpec struct {
	GroupID  string   `json:"group_id"`
	LocalRef string   `json:"local_ref"`
	Category string   `json:"category"`
	Metadata Metadata `json:"metadata"`
	GPS      *GPS     `json:"gps,omitempty"`
	FileSize int64    `json:"file_size,omitempty"`
	FileType string   `json:"file_type,omitempty"`
}

// MetadataUpdate carries optional metadata edits; nil fields are left untouched.
type MetadataUpdate struct {
	Location *string `json:"location,omitempty"`
	Caption  *string `json:"caption,omitempty"`
}

// Counts summarises items by status.
type Counts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Uploading int `json:"uploading"`
	Uploaded  int `json:"uploaded"`
	Failed    int `json:"failed"`
	// Exhausted counts failed items with no automatic retry budget left.
	Exhausted int `json:"exhausted"`
}

func (c *Counts) add(item Item, retryLimit int) {
	c.Total++
	switch item.Status {
	case StatusPending:
		c.Pending++
	case StatusUploading:
		c.Uploading++
	case StatusUploaded:
		c.Uploaded++
	case StatusFailed:
		c.Failed++
		if item.RetryCount >= retryLimit {
			c.Exhausted++
		}
	}
}

// GroupSummary pairs a group with its counts.
type GroupSummary struct {
	GroupID string `json:"group_id"`
	Counts  Counts `json:"counts"`
}

// eligible reports whether the item can be picked up automatically.
func eligible(item Item, retryLimit int) bool {
	switch item.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return item.RetryCount < retryLimit
	default:
		return false
	}
}

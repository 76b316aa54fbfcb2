package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"fieldsnap/internal/logging"
)

// Entry is one decoded record from the daemon's JSON log.
type Entry struct {
	Time      time.Time
	Level     slog.Level
	Message   string
	Component string
	ItemID    string
	GroupID   string
	EventType string
	Attrs     map[string]any
}

// ParseEntry decodes a JSON log line. ok is false for lines that are not
// JSON objects.
func ParseEntry(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}
	entry := Entry{Attrs: make(map[string]any)}
	for key, value := range raw {
		text, _ := value.(string)
		switch key {
		case "ts":
			entry.Time, _ = time.Parse(time.RFC3339, text)
		case "level":
			_ = entry.Level.UnmarshalText([]byte(text))
		case "msg":
			entry.Message = text
		case logging.FieldComponent:
			entry.Component = text
		case logging.FieldItemID:
			entry.ItemID = text
		case logging.FieldGroupID:
			entry.GroupID = text
		case logging.FieldEventType:
			entry.EventType = text
		default:
			entry.Attrs[key] = value
		}
	}
	return entry, true
}

// Filter narrows entries. Zero fields match everything.
type Filter struct {
	MinLevel slog.Level
	ItemID   string
	GroupID  string
}

// Match reports whether entry passes the filter.
func (f Filter) Match(entry Entry) bool {
	if entry.Level < f.MinLevel {
		return false
	}
	if f.ItemID != "" && entry.ItemID != f.ItemID {
		return false
	}
	if f.GroupID != "" && entry.GroupID != f.GroupID {
		return false
	}
	return true
}

// Format renders entry as a single console line.
func (e Entry) Format() string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format(time.DateTime))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(e.Level.String()))
	if e.Component != "" {
		fmt.Fprintf(&b, "[%s] ", e.Component)
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Attrs)+3)
	for key := range e.Attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, pair := range [][2]string{{logging.FieldGroupID, e.GroupID}, {logging.FieldItemID, e.ItemID}, {logging.FieldEventType, e.EventType}} {
		if pair[1] != "" {
			fmt.Fprintf(&b, " %s=%s", pair[0], pair[1])
		}
	}
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, logging.FormatAny(e.Attrs[key]))
	}
	return b.String()
}

// Package objkey holds object-key helpers shared by the storage backends.
package objkey

import (
	"net/url"
	"strings"
)

// Escape percent-encodes each segment of an object key for use in a URL,
// leaving the slashes between segments intact.
func Escape(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

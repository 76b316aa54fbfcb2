package storage

import (
	"context"
	"mime"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultExtension is used when a content type does not yield a usable subtype.
const DefaultExtension = "jpg"

// ObjectStore writes objects with create-or-overwrite semantics and resolves
// durable URLs for them.
type ObjectStore interface {
	Upsert(ctx context.Context, path string, data []byte, contentType string) error
	URL(ctx context.Context, path string) (string, error)
	Ping(ctx context.Context) error
}

// ObjectPath builds groups/{groupID}/{category}/{id}.{ext}. Segments are
// NFC-normalised and slashes inside a segment are replaced so a segment can
// never introduce extra path levels.
func ObjectPath(groupID, category, id, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	return strings.Join([]string{
		"groups",
		segment(groupID),
		segment(category),
		segment(id) + "." + segment(ext),
	}, "/")
}

func segment(value string) string {
	value = norm.NFC.String(strings.TrimSpace(value))
	value = strings.NewReplacer("/", "_", "\\", "_").Replace(value)
	switch value {
	case "", ".", "..":
		return "_"
	}
	return value
}

// ExtensionFor derives a file extension from a content type: the subtype,
// with jpeg shortened to jpg and structured suffixes such as +xml dropped.
// Unknown or empty types fall back to DefaultExtension.
func ExtensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok {
		return DefaultExtension
	}
	if base, _, found := strings.Cut(subtype, "+"); found {
		subtype = base
	}
	subtype = strings.TrimPrefix(subtype, "x-")
	switch subtype {
	case "", "*", "octet-stream":
		return DefaultExtension
	case "jpeg", "pjpeg":
		return "jpg"
	}
	return subtype
}

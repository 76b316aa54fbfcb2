package blobref

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes caps how much a single reference may resolve to.
const DefaultMaxBytes int64 = 64 << 20

var (
	// ErrUnsupportedRef is returned for reference schemes the resolver cannot read.
	ErrUnsupportedRef = errors.New("unsupported local reference")
	// ErrTooLarge is returned when a reference exceeds the configured size cap.
	ErrTooLarge = errors.New("local reference exceeds size limit")
	// ErrOutsideRoot is returned when a root is set and a path leaves it.
	ErrOutsideRoot = errors.New("local reference outside resolver root")
)

// Blob is the resolved content of a local reference.
type Blob struct {
	Data        []byte
	ContentType string
}

// Resolver turns a local reference into bytes.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (Blob, error)
}

// Local resolves paths, file:// URIs, and data: URIs on the device.
type Local struct {
	root     string
	maxBytes int64
}

// Option customises Local.
type Option func(*Local)

// WithRoot resolves relative paths against dir and rejects any path, absolute
// or relative, that lexically leaves it. Symlinks are not resolved.
func WithRoot(dir string) Option {
	return func(l *Local) {
		if dir != "" {
			l.root = filepath.Clean(dir)
		}
	}
}

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(limit int64) Option {
	return func(l *Local) {
		if limit > 0 {
			l.maxBytes = limit
		}
	}
}

// NewLocal builds a Local resolver.
func NewLocal(opts ...Option) *Local {
	l := &Local{maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve reads the referenced bytes.
func (l *Local) Resolve(ctx context.Context, ref string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Blob{}, fmt.Errorf("%w: empty reference", ErrUnsupportedRef)
	}

	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return l.resolveData(ref)
	case strings.HasPrefix(lower, "file://"):
		parsed, err := url.Parse(ref)
		if err != nil {
			return Blob{}, fmt.Errorf("parse file reference: %w", err)
		}
		return l.resolveFile(parsed.Path)
	case hasScheme(ref):
		return Blob{}, fmt.Errorf("%w: %s", ErrUnsupportedRef, schemeOf(ref))
	default:
		return l.resolveFile(ref)
	}
}

func (l *Local) resolveFile(path string) (Blob, error) {
	if path == "" {
		return Blob{}, fmt.Errorf("%w: empty path", ErrUnsupportedRef)
	}
	if l.root != "" {
		confined, err := l.confine(path)
		if err != nil {
			return Blob{}, err
		}
		path = confined
	}
	file, err := os.Open(path)
	if err != nil {
		return Blob{}, fmt.Errorf("open local file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Blob{}, fmt.Errorf("stat local file: %w", err)
	}
	if info.IsDir() {
		return Blob{}, fmt.Errorf("%w: %s is a directory", ErrUnsupportedRef, path)
	}
	if info.Size() > l.maxBytes {
		return Blob{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}
	data, err := io.ReadAll(io.LimitReader(file, l.maxBytes+1))
	if err != nil {
		return Blob{}, fmt.Errorf("read local file: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return Blob{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	return Blob{Data: data, ContentType: Sniff(data)}, nil
}

func (l *Local) confine(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return path, nil
}

// resolveData decodes data:[<mediatype>][;base64],<payload>.
func (l *Local) resolveData(ref string) (Blob, error) {
	header, payload, ok := strings.Cut(ref[len("data:"):], ",")
	if !ok {
		return Blob{}, fmt.Errorf("%w: data reference without payload", ErrUnsupportedRef)
	}

	params := strings.Split(header, ";")
	declared := strings.TrimSpace(params[0])
	isBase64 := false
	for _, param := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(param), "base64") {
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(payload), "="))
			if err != nil {
				return Blob{}, fmt.Errorf("decode data reference: %w", err)
			}
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return Blob{}, fmt.Errorf("decode data reference: %w", err)
		}
		data = []byte(unescaped)
	}
	if int64(len(data)) > l.maxBytes {
		return Blob{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	contentType := strings.ToLower(declared)
	if contentType == "" {
		contentType = Sniff(data)
	}
	return Blob{Data: data, ContentType: contentType}, nil
}

// Sniff detects the content type of data, without parameters.
func Sniff(data []byte) string {
	detected := mimetype.Detect(data).String()
	if base, _, found := strings.Cut(detected, ";"); found {
		return strings.TrimSpace(base)
	}
	return detected
}

func hasScheme(ref string) bool {
	return schemeOf(ref) != ""
}

// schemeOf returns the URI scheme of ref, ignoring Windows drive letters.
func schemeOf(ref string) string {
	idx := strings.Index(ref, ":")
	if idx <= 1 {
		return ""
	}
	scheme := ref[:idx]
	for i, r := range scheme {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return ""
		}
	}
	return strings.ToLower(scheme)
}

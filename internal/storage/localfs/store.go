// Package localfs implements storage.ObjectStore on a local directory. It
// serves single-device deployments and tests.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"fieldsnap/internal/fileutil"
	"fieldsnap/internal/storage/objkey"
)

// Store writes objects beneath a root directory.
type Store struct {
	root    string
	baseURL string
}

// New returns a Store rooted at dir. When baseURL is empty, URLs use the
// file:// scheme.
func New(dir, baseURL string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("localfs directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve localfs directory: %w", err)
	}
	return &Store{root: abs, baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}, nil
}

// Root returns the absolute directory objects are written to.
func (s *Store) Root() string {
	return s.root
}

// Upsert writes data to path, replacing any existing object atomically.
func (s *Store) Upsert(ctx context.Context, path string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := fileutil.EnsureParent(target); err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
		return fmt.Errorf("localfs upsert %s: %w", path, err)
	}
	return nil
}

// URL returns the location of path.
func (s *Store) URL(_ context.Context, path string) (string, error) {
	target, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if s.baseURL != "" {
		return s.baseURL + "/" + objkey.Escape(path), nil
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(target)}).String(), nil
}

// Ping checks the root directory exists and is writable.
func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("localfs root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("localfs root %q is not a directory", s.root)
	}
	if err := unix.Access(s.root, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("localfs root %q not writable: %w", s.root, err)
	}
	return nil
}

func (s *Store) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("localfs: object path is required")
	}
	target := filepath.Join(s.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("localfs: object path %q escapes root", path)
	}
	return target, nil
}

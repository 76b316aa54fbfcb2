package blobref_test

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"

	"fieldsnap/internal/blobref"
	"fieldsnap/internal/testsupport"
)

func TestResolveFilePathSniffsType(t *testing.T) {
	path := testsupport.WriteJPEG(t, filepath.Join(t.TempDir(), "photo.bin"))
	blob, err := blobref.NewLocal().Resolve(context.Background(), path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if blob.ContentType != "image/jpeg" {
		t.Fatalf("expected sniffed image/jpeg, got %q", blob.ContentType)
	}
	if len(blob.Data) != 256 {
		t.Fatalf("unexpected size %d", len(blob.Data))
	}
}

func TestResolveFileURIAndRoot(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WritePNG(t, filepath.Join(dir, "shots", "a.png"))

	blob, err := blobref.NewLocal().Resolve(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("Resolve file uri: %v", err)
	}
	if blob.ContentType != "image/png" {
		t.Fatalf("expected image/png, got %q", blob.ContentType)
	}

	blob, err = blobref.NewLocal(blobref.WithRoot(dir)).Resolve(context.Background(), "shots/a.png")
	if err != nil {
		t.Fatalf("Resolve relative: %v", err)
	}
	if blob.ContentType != "image/png" {
		t.Fatalf("expected image/png, got %q", blob.ContentType)
	}
}

func TestResolveRootRejectsEscapes(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "media")
	testsupport.WritePNG(t, filepath.Join(root, "a.png"))
	outside := testsupport.WritePNG(t, filepath.Join(base, "secret.png"))

	resolver := blobref.NewLocal(blobref.WithRoot(root))
	for _, ref := range []string{"../secret.png", outside, "file://" + outside, "shots/../../secret.png"} {
		if _, err := resolver.Resolve(context.Background(), ref); !errors.Is(err, blobref.ErrOutsideRoot) {
			t.Fatalf("Resolve(%q) error = %v, want ErrOutsideRoot", ref, err)
		}
	}
	if _, err := resolver.Resolve(context.Background(), filepath.Join(root, "a.png")); err != nil {
		t.Fatalf("absolute path inside root should resolve: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), "./sub/../a.png"); err != nil {
		t.Fatalf("relative path inside root should resolve: %v", err)
	}
}

func TestResolveDataURI(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes"))
	blob, err := blobref.NewLocal().Resolve(context.Background(), "data:image/jpeg;base64,"+payload)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if blob.ContentType != "image/jpeg" {
		t.Fatalf("expected declared type, got %q", blob.ContentType)
	}
	if string(blob.Data) != "fake-jpeg-bytes" {
		t.Fatalf("unexpected payload %q", blob.Data)
	}

	blob, err = blobref.NewLocal().Resolve(context.Background(), "data:,hello%20world")
	if err != nil {
		t.Fatalf("Resolve plain: %v", err)
	}
	if string(blob.Data) != "hello world" {
		t.Fatalf("unexpected payload %q", blob.Data)
	}
	if blob.ContentType != "text/plain" {
		t.Fatalf("expected sniffed text/plain, got %q", blob.ContentType)
	}
}

func TestResolveRejectsUnsupportedSchemes(t *testing.T) {
	for _, ref := range []string{"blob:https://app/123", "content://media/1", "https://example.com/a.jpg", ""} {
		_, err := blobref.NewLocal().Resolve(context.Background(), ref)
		if !errors.Is(err, blobref.ErrUnsupportedRef) {
			t.Fatalf("expected ErrUnsupportedRef for %q, got %v", ref, err)
		}
	}
}

func TestResolveMissingFile(t *testing.T) {
	_, err := blobref.NewLocal().Resolve(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResolveEnforcesSizeLimit(t *testing.T) {
	path := testsupport.WriteJPEG(t, filepath.Join(t.TempDir(), "big.jpg"))
	_, err := blobref.NewLocal(blobref.WithMaxBytes(100)).Resolve(context.Background(), path)
	if !errors.Is(err, blobref.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestResolveHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := blobref.NewLocal().Resolve(ctx, "/tmp/a.jpg"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

package testsupport

import (
	"context"
	"testing"

	"fieldsnap/internal/config"
	"fieldsnap/internal/kvstore"
	"fieldsnap/internal/queue"
)

// MustOpenStore opens the configured kvstore and a queue.Store on top of it,
// registering cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...queue.Option) *queue.Store {
	t.Helper()

	backend, err := kvstore.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = backend.Close()
	})

	opts = append([]queue.Option{
		queue.WithNamespace(cfg.Store.Namespace),
		queue.WithRetryLimit(cfg.Upload.RetryLimit),
	}, opts...)
	store, err := queue.Open(context.Background(), backend, opts...)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	return store
}

// Enqueue adds an item for groupID referencing localRef and fails the test on error.
func Enqueue(t testing.TB, store *queue.Store, groupID, localRef string) string {
	t.Helper()

	id, err := store.Enqueue(context.Background(), queue.EnqueueSpec{
		GroupID:  groupID,
		LocalRef: localRef,
		Category: "site",
		Metadata: queue.Metadata{Location: "north wall", Caption: "before repair"},
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return id
}

package uploader

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fieldsnap/internal/blobref"
	"fieldsnap/internal/kvstore"
	"fieldsnap/internal/notifications"
	"fieldsnap/internal/queue"
	"fieldsnap/internal/testsupport"
)

type harness struct {
	store    *queue.Store
	objects  *testsupport.ObjectStore
	signal   *testsupport.Signal
	notifier *recordingNotifier
	uploader *Uploader
	dir      string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store := queue.New(nil)
	objects := testsupport.NewObjectStore()
	signal := testsupport.NewSignal(true)
	notifier := &recordingNotifier{}
	base := []Option{
		WithRetryBackoff(0),
		WithRescheduleDelay(0),
		WithNotifier(notifier),
	}
	return &harness{
		store:    store,
		objects:  objects,
		signal:   signal,
		notifier: notifier,
		uploader: New(store, blobref.NewLocal(), objects, signal, nil, append(base, opts...)...),
		dir:      t.TempDir(),
	}
}

func (h *harness) enqueueJPEG(t *testing.T, group, name string) string {
	t.Helper()
	path := testsupport.WriteJPEG(t, filepath.Join(h.dir, group, name+".jpg"))
	return testsupport.Enqueue(t, h.store, group, path)
}

func (h *harness) item(t *testing.T, id string) queue.Item {
	t.Helper()
	item, ok := h.store.Get(id)
	if !ok {
		t.Fatalf("item %s not found", id)
	}
	return item
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func TestDrainUploadsAtMostMaxPerPass(t *testing.T) {
	h := newHarness(t)
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = h.enqueueJPEG(t, "visit-1", string(rune('a'+i)))
	}

	result := h.uploader.Drain(context.Background())
	if result.Skipped != SkipNone {
		t.Fatalf("unexpected skip %q", result.Skipped)
	}
	if result.Uploaded != DefaultMaxPerPass {
		t.Fatalf("expected %d uploads, got %d", DefaultMaxPerPass, result.Uploaded)
	}
	if !result.Rescheduled {
		t.Fatal("expected a continuation to be scheduled")
	}
	counts := h.store.Counts("visit-1")
	if counts.Uploaded != 2 || counts.Pending != 3 {
		t.Fatalf("unexpected counts %+v", counts)
	}
	if h.item(t, ids[0]).Status != queue.StatusUploaded || h.item(t, ids[1]).Status != queue.StatusUploaded {
		t.Fatal("expected the first two items in insertion order to upload")
	}
	if h.item(t, ids[2]).Status != queue.StatusPending {
		t.Fatal("third item should still be pending")
	}
}

func TestDrainRunsGroupToCompletion(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"one", "two", "three"} {
		h.enqueueJPEG(t, "G", name)
	}

	total := 0
	for range 5 {
		total += h.uploader.Drain(context.Background()).Uploaded
	}
	if total != 3 {
		t.Fatalf("expected 3 uploads, got %d", total)
	}
	counts := h.store.Counts("G")
	if counts.Uploaded != 3 || counts.Pending != 0 || counts.Failed != 0 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	uploads := h.objects.Uploads()
	if len(uploads) != 3 {
		t.Fatalf("expected 3 object writes, got %d", len(uploads))
	}
	for _, upload := range uploads {
		if !strings.HasPrefix(upload.Path, "groups/G/site/") || !strings.HasSuffix(upload.Path, ".jpg") {
			t.Fatalf("unexpected object path %q", upload.Path)
		}
		if upload.ContentType != "image/jpeg" {
			t.Fatalf("unexpected content type %q", upload.ContentType)
		}
	}
	for _, item := range h.store.ItemsForGroup("G") {
		want := "https://objects.test/groups/G/site/" + item.ID + ".jpg"
		if item.RemoteURL != want {
			t.Fatalf("remote url = %q, want %q", item.RemoteURL, want)
		}
		if item.Error != "" {
			t.Fatalf("uploaded item should have no error, got %q", item.Error)
		}
	}
}

func TestDrainExhaustsRetriesThenManualRetry(t *testing.T) {
	h := newHarness(t)
	h.objects.FailAll(true)
	id := h.enqueueJPEG(t, "G", "broken")

	result := h.uploader.Drain(context.Background())
	if result.Attempts != 3 || result.Failed != 3 || result.Exhausted != 1 || result.Uploaded != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Rescheduled {
		t.Fatal("no work should remain after the budget is spent")
	}

	item := h.item(t, id)
	if item.Status != queue.StatusFailed || item.RetryCount != 3 {
		t.Fatalf("expected failed with 3 retries, got %s/%d", item.Status, item.RetryCount)
	}
	if !strings.Contains(item.Error, testsupport.ErrInjected.Error()) {
		t.Fatalf("expected injected error text, got %q", item.Error)
	}
	if _, ok := h.store.NextEligible(); ok {
		t.Fatal("exhausted item must not be eligible")
	}
	if h.notifier.count(notifications.EventRetriesExhausted) != 1 {
		t.Fatal("expected a retries exhausted notification")
	}

	if _, err := h.store.RetryFailed(context.Background(), id); err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	item = h.item(t, id)
	if item.Status != queue.StatusPending || item.RetryCount != 3 {
		t.Fatalf("manual retry should set pending and keep count, got %s/%d", item.Status, item.RetryCount)
	}

	h.objects.FailAll(false)
	result = h.uploader.Drain(context.Background())
	if result.Uploaded != 1 {
		t.Fatalf("expected manual retry to upload, got %+v", result)
	}
}

func TestDrainWhileActiveIsNoop(t *testing.T) {
	h := newHarness(t)
	h.enqueueJPEG(t, "G", "first")
	h.enqueueJPEG(t, "G", "second")

	var nested DrainResult
	var once sync.Once
	h.objects.OnUpsert(func(string) {
		once.Do(func() {
			before := h.objects.Uploads()
			nested = h.uploader.Drain(context.Background())
			if len(h.objects.Uploads()) != len(before) {
				t.Errorf("nested drain issued transfers")
			}
			if !h.store.IsProcessing() {
				t.Errorf("processing flag should be set during a pass")
			}
		})
	})

	result := h.uploader.Drain(context.Background())
	if nested.Skipped != SkipActive {
		t.Fatalf("expected nested drain to be skipped as active, got %+v", nested)
	}
	if nested.Attempts != 0 || nested.Uploaded != 0 {
		t.Fatalf("nested drain must not do work, got %+v", nested)
	}
	if result.Uploaded != 2 {
		t.Fatalf("outer drain should upload both items, got %+v", result)
	}
	if h.store.IsProcessing() {
		t.Fatal("processing flag should be cleared after the pass")
	}
}

func TestDrainOfflineSkipsWithoutMarkingActive(t *testing.T) {
	h := newHarness(t)
	id := h.enqueueJPEG(t, "G", "photo")
	h.signal.Set(false)

	result := h.uploader.Drain(context.Background())
	if result.Skipped != SkipOffline {
		t.Fatalf("expected offline skip, got %+v", result)
	}
	if h.store.IsProcessing() {
		t.Fatal("offline drain must not leave the processing flag set")
	}
	if h.item(t, id).Status != queue.StatusPending {
		t.Fatal("item should remain pending")
	}
	if len(h.objects.Uploads()) != 0 {
		t.Fatal("no transfers should be issued offline")
	}

	h.signal.Set(true)
	if got := h.uploader.Drain(context.Background()); got.Uploaded != 1 {
		t.Fatalf("expected upload once online, got %+v", got)
	}
}

func TestDrainRecoversFromPanic(t *testing.T) {
	h := newHarness(t)
	id := h.enqueueJPEG(t, "G", "photo")
	h.objects.PanicNext()

	result := h.uploader.Drain(context.Background())
	if result.Failed != 1 || result.Uploaded != 1 {
		t.Fatalf("expected one failure then a successful retry, got %+v", result)
	}
	item := h.item(t, id)
	if item.Status != queue.StatusUploaded || item.RetryCount != 1 {
		t.Fatalf("expected uploaded after one retry, got %s/%d", item.Status, item.RetryCount)
	}
	if h.store.IsProcessing() {
		t.Fatal("processing flag must be cleared after a panic")
	}
}

func TestDrainRecordsUnsupportedReference(t *testing.T) {
	h := newHarness(t, WithRetryLimit(1))
	id := testsupport.Enqueue(t, h.store, "G", "s3://bucket/photo.jpg")

	h.uploader.Drain(context.Background())
	item := h.item(t, id)
	if item.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", item.Status)
	}
	if !strings.Contains(item.Error, blobref.ErrUnsupportedRef.Error()) {
		t.Fatalf("expected unsupported reference error, got %q", item.Error)
	}
}

func TestDrainContentTypeSelection(t *testing.T) {
	h := newHarness(t)
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	ref := "data:;base64," + base64.StdEncoding.EncodeToString(png)

	sniffed := testsupport.Enqueue(t, h.store, "G", ref)
	declared, err := h.store.Enqueue(context.Background(), queue.EnqueueSpec{
		GroupID:  "G",
		LocalRef: ref,
		Category: "roof",
		FileType: "image/heic",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	h.uploader.Drain(context.Background())

	if got := h.item(t, sniffed).RemoteURL; !strings.HasSuffix(got, "/groups/G/site/"+sniffed+".png") {
		t.Fatalf("sniffed item url %q", got)
	}
	if got := h.item(t, declared).RemoteURL; !strings.HasSuffix(got, "/groups/G/roof/"+declared+".heic") {
		t.Fatalf("declared item url %q", got)
	}
	uploads := h.objects.Uploads()
	if len(uploads) != 2 || uploads[1].ContentType != "image/heic" {
		t.Fatalf("declared file type should be sent as content type, got %+v", uploads)
	}
}

func TestDrainInterruptedByShutdownKeepsRetryCount(t *testing.T) {
	h := newHarness(t)
	id := h.enqueueJPEG(t, "G", "photo")

	ctx, cancel := context.WithCancel(context.Background())
	h.objects.OnUpsert(func(string) { cancel() })

	result := h.uploader.Drain(ctx)
	if result.Rescheduled {
		t.Fatal("a cancelled pass must not reschedule")
	}
	item := h.item(t, id)
	if item.Status != queue.StatusFailed || item.Error != queue.InterruptedReason {
		t.Fatalf("expected interrupted failure, got %s %q", item.Status, item.Error)
	}
	if item.RetryCount != 0 {
		t.Fatalf("shutdown must not consume retry budget, got %d", item.RetryCount)
	}
}

func TestDrainSkipsItemRemovedWhileUploading(t *testing.T) {
	h := newHarness(t)
	first := h.enqueueJPEG(t, "G", "first")
	second := h.enqueueJPEG(t, "G", "second")

	var once sync.Once
	h.objects.OnUpsert(func(string) {
		once.Do(func() {
			if _, err := h.store.Remove(context.Background(), first); err != nil {
				t.Errorf("Remove: %v", err)
			}
		})
	})

	result := h.uploader.Drain(context.Background())
	if result.Uploaded != 1 {
		t.Fatalf("expected the second item to upload, got %+v", result)
	}
	if _, ok := h.store.Get(first); ok {
		t.Fatal("removed item must not be recreated")
	}
	if h.item(t, second).Status != queue.StatusUploaded {
		t.Fatal("expected second item uploaded")
	}
}

func TestDrainBackoffRespectsContext(t *testing.T) {
	h := newHarness(t, WithRetryBackoff(time.Hour))
	h.objects.FailAll(true)
	h.enqueueJPEG(t, "G", "photo")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan DrainResult, 1)
	go func() { done <- h.uploader.Drain(ctx) }()
	select {
	case result := <-done:
		if result.Attempts != 1 {
			t.Fatalf("expected the pass to end during backoff, got %+v", result)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not return after context cancellation")
	}
}

func TestDrainStoreFailureEndsPass(t *testing.T) {
	kv := kvstore.NewMemory()
	store := queue.New(kv)
	objects := testsupport.NewObjectStore()
	u := New(store, blobref.NewLocal(), objects, nil, nil, WithRetryBackoff(0), WithRescheduleDelay(0))

	id := testsupport.Enqueue(t, store, "G", "data:image/jpeg;base64,/9j/4AAQ")
	kv.SetPutErr(errors.New("disk full"))

	result := u.Drain(context.Background())
	if result.Attempts != 1 || result.Uploaded != 0 {
		t.Fatalf("expected the pass to stop after the failed write, got %+v", result)
	}
	item, _ := store.Get(id)
	if item.Status != queue.StatusPending {
		t.Fatalf("failed write must leave the item pending, got %s", item.Status)
	}
	if len(objects.Uploads()) != 0 {
		t.Fatal("no transfer should run when the item cannot be marked uploading")
	}
	if store.IsProcessing() {
		t.Fatal("processing flag must be cleared")
	}
}

// flakyBackend fails the next n writes and then behaves like its Memory.
type flakyBackend struct {
	*kvstore.Memory
	mu   sync.Mutex
	fail int
}

func (f *flakyBackend) failNext(n int) {
	f.mu.Lock()
	f.fail = n
	f.mu.Unlock()
}

func (f *flakyBackend) Put(ctx context.Context, namespace, key string, value []byte) error {
	f.mu.Lock()
	if f.fail > 0 {
		f.fail--
		f.mu.Unlock()
		return errors.New("disk full")
	}
	f.mu.Unlock()
	return f.Memory.Put(ctx, namespace, key, value)
}

func TestDrainReleasesItemWhenMarkUploadedFails(t *testing.T) {
	kv := &flakyBackend{Memory: kvstore.NewMemory()}
	store := queue.New(kv)
	objects := testsupport.NewObjectStore()
	u := New(store, blobref.NewLocal(), objects, nil, nil, WithRetryBackoff(0), WithRescheduleDelay(0))

	id := testsupport.Enqueue(t, store, "G", "data:image/jpeg;base64,/9j/4AAQ")
	var once sync.Once
	objects.OnUpsert(func(string) { once.Do(func() { kv.failNext(1) }) })

	result := u.Drain(context.Background())
	if result.Attempts != 1 || result.Uploaded != 0 {
		t.Fatalf("expected the pass to stop after the failed write, got %+v", result)
	}
	item, _ := store.Get(id)
	if item.Status != queue.StatusFailed || item.Error != queue.InterruptedReason {
		t.Fatalf("expected item released to failed, got %s (%q)", item.Status, item.Error)
	}
	if item.RetryCount != 0 {
		t.Fatalf("release must not consume a retry, got %d", item.RetryCount)
	}
	if !result.Rescheduled {
		t.Fatal("released item is eligible, so the pass should reschedule")
	}

	if got := u.Drain(context.Background()); got.Uploaded != 1 {
		t.Fatalf("expected the released item to upload, got %+v", got)
	}
	if item, _ := store.Get(id); item.Status != queue.StatusUploaded {
		t.Fatalf("expected uploaded, got %s", item.Status)
	}
}

func TestDrainRecoversItemLeftUploadingAfterStoreOutage(t *testing.T) {
	kv := kvstore.NewMemory()
	store := queue.New(kv)
	objects := testsupport.NewObjectStore()
	u := New(store, blobref.NewLocal(), objects, nil, nil, WithRetryBackoff(0), WithRescheduleDelay(0))

	id := testsupport.Enqueue(t, store, "G", "data:image/jpeg;base64,/9j/4AAQ")
	var once sync.Once
	objects.OnUpsert(func(string) { once.Do(func() { kv.SetPutErr(errors.New("disk full")) }) })

	u.Drain(context.Background())
	if item, _ := store.Get(id); item.Status != queue.StatusUploading {
		t.Fatalf("with every write failing the item stays uploading, got %s", item.Status)
	}

	stalled := u.Drain(context.Background())
	if stalled.Attempts != 0 || stalled.Rescheduled {
		t.Fatalf("a pass that cannot write must not reschedule itself, got %+v", stalled)
	}

	kv.SetPutErr(nil)
	recovered := u.Drain(context.Background())
	if recovered.Uploaded != 1 {
		t.Fatalf("expected the item to upload once writes recover, got %+v", recovered)
	}
	item, _ := store.Get(id)
	if item.Status != queue.StatusUploaded || item.RetryCount != 0 {
		t.Fatalf("unexpected item after recovery %+v", item)
	}
	if store.HasRemainingWork() {
		t.Fatal("no work should remain")
	}
}

type funcSignal func(ctx context.Context) bool

func (f funcSignal) Online(ctx context.Context) bool { return f(ctx) }

func TestDrainChecksConnectivityBeforeTakingPassLock(t *testing.T) {
	store := queue.New(nil)
	testsupport.Enqueue(t, store, "G", "data:image/jpeg;base64,/9j/4AAQ")

	var u *Uploader
	lockFree := false
	signal := funcSignal(func(context.Context) bool {
		if u.drainMu.TryLock() {
			lockFree = true
			u.drainMu.Unlock()
		}
		return false
	})
	u = New(store, blobref.NewLocal(), testsupport.NewObjectStore(), signal, nil, WithRescheduleDelay(0))

	if got := u.Drain(context.Background()); got.Skipped != SkipOffline {
		t.Fatalf("expected offline skip, got %+v", got)
	}
	if !lockFree {
		t.Fatal("the pass lock must not be held while connectivity is checked")
	}
}

func TestStatsTrackPasses(t *testing.T) {
	h := newHarness(t)
	h.enqueueJPEG(t, "G", "photo")
	h.uploader.Drain(context.Background())

	stats := h.uploader.Stats()
	if stats.Passes != 1 || stats.TotalUploaded != 1 || stats.LastResult.Uploaded != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.LastDrainAt.IsZero() {
		t.Fatal("expected last drain time")
	}
}

func TestDrainSummaryPublishedWhenIdle(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"a", "b", "c"} {
		h.enqueueJPEG(t, "G", name)
	}

	h.uploader.Drain(context.Background())
	if h.notifier.count(notifications.EventDrainCompleted) != 0 {
		t.Fatal("summary should wait until the queue is idle")
	}
	h.uploader.Drain(context.Background())
	if h.notifier.count(notifications.EventDrainCompleted) != 1 {
		t.Fatal("expected one summary once the queue drained")
	}
}

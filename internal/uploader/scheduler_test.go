package uploader

import (
	"context"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestSchedulerDrainsBacklogToCompletion(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		h.enqueueJPEG(t, "G", name)
	}

	if err := h.uploader.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.uploader.Stop()

	h.uploader.Trigger()
	waitFor(t, 5*time.Second, func() bool {
		return h.store.Counts("G").Uploaded == 5
	})

	if h.store.HasRemainingWork() {
		t.Fatal("expected no remaining work")
	}
	if passes := h.uploader.Stats().Passes; passes < 3 {
		t.Fatalf("five items at two per pass need at least three passes, got %d", passes)
	}
}

func TestTriggerBeforeStartIsBuffered(t *testing.T) {
	h := newHarness(t)
	h.enqueueJPEG(t, "G", "early")
	h.uploader.Trigger()
	h.uploader.Trigger()

	if err := h.uploader.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.uploader.Stop()

	waitFor(t, 5*time.Second, func() bool {
		return h.store.Counts("G").Uploaded == 1
	})
}

func TestStartStopLifecycle(t *testing.T) {
	h := newHarness(t)
	if h.uploader.Running() {
		t.Fatal("should not be running before Start")
	}
	if err := h.uploader.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.uploader.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
	if !h.uploader.Running() || !h.uploader.Stats().Running {
		t.Fatal("expected running")
	}

	h.uploader.Stop()
	h.uploader.Stop()
	if h.uploader.Running() {
		t.Fatal("expected stopped")
	}

	if err := h.uploader.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	h.uploader.Stop()
}

func TestStopCancelsPendingReschedule(t *testing.T) {
	h := newHarness(t, WithRescheduleDelay(time.Hour))
	for _, name := range []string{"a", "b", "c"} {
		h.enqueueJPEG(t, "G", name)
	}
	if err := h.uploader.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.uploader.Trigger()
	waitFor(t, 5*time.Second, func() bool {
		return h.store.Counts("G").Uploaded == 2
	})

	stopped := make(chan struct{})
	go func() {
		h.uploader.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a pending reschedule")
	}
	if got := h.store.Counts("G").Pending; got != 1 {
		t.Fatalf("expected one item left pending, got %d", got)
	}
}

func TestScheduleKeepsLatestRequest(t *testing.T) {
	h := newHarness(t)
	h.uploader.schedule(time.Hour)
	h.uploader.schedule(time.Millisecond)

	select {
	case d := <-h.uploader.reschedule:
		if d != time.Millisecond {
			t.Fatalf("expected latest delay, got %s", d)
		}
	default:
		t.Fatal("expected a queued reschedule")
	}
}

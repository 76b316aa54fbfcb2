package daemon_test

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldsnap/internal/api"
	"fieldsnap/internal/config"
	"fieldsnap/internal/daemon"
	"fieldsnap/internal/queue"
	"fieldsnap/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config, objects *testsupport.ObjectStore, signal *testsupport.Signal) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(context.Background(), cfg, nil,
		daemon.WithObjectStore(objects),
		daemon.WithSignal(signal),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMemoryStore())
	d := newDaemon(t, cfg, testsupport.NewObjectStore(), testsupport.NewSignal(true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if d.APIAddress() == "" {
		t.Fatal("expected api listener")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if d.APIAddress() != "" {
		t.Fatal("expected api listener closed")
	}
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMemoryStore())
	first := newDaemon(t, cfg, testsupport.NewObjectStore(), testsupport.NewSignal(true))
	second := newDaemon(t, cfg, testsupport.NewObjectStore(), testsupport.NewSignal(true))

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestEnqueueThroughAPIUploads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	objects := testsupport.NewObjectStore()
	d := newDaemon(t, cfg, objects, testsupport.NewSignal(true))

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client, err := api.NewClientForAddress(d.APIAddress(), cfg.API.Token)
	if err != nil {
		t.Fatalf("NewClientForAddress: %v", err)
	}
	dir := testsupport.BaseDir(cfg)
	for _, name := range []string{"a", "b", "c"} {
		path := testsupport.WriteJPEG(t, filepath.Join(dir, "captures", name+".jpg"))
		if _, err := client.Enqueue(ctx, queue.EnqueueSpec{GroupID: "job-1", LocalRef: path, Category: "site"}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	resp, err := client.Wait(ctx, "job-1", 10*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !resp.Done || resp.Progress.Uploaded != 3 || resp.Progress.Percent != 100 {
		t.Fatalf("expected every item uploaded, got %+v", resp)
	}
	if got := len(objects.Uploads()); got != 3 {
		t.Fatalf("expected 3 uploads, got %d", got)
	}

	uploaded, err := client.Uploaded(ctx, "job-1")
	if err != nil {
		t.Fatalf("Uploaded: %v", err)
	}
	for _, item := range uploaded.Items {
		if !strings.HasPrefix(item.URL, "https://objects.test/groups/job-1/site/") {
			t.Fatalf("unexpected url %q", item.URL)
		}
	}
}

func TestOfflineQueueDrainsWhenConnectivityReturns(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMemoryStore())
	cfg.Connectivity.ProbeIntervalSeconds = 1
	objects := testsupport.NewObjectStore()
	signal := testsupport.NewSignal(false)
	d := newDaemon(t, cfg, objects, signal)

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	path := testsupport.WriteJPEG(t, filepath.Join(testsupport.BaseDir(cfg), "offline.jpg"))
	testsupport.Enqueue(t, d.Store(), "visit", path)

	if d.Progress().WaitForUploads(ctx, "visit", 200*time.Millisecond) {
		t.Fatal("nothing should upload while offline")
	}

	signal.Set(true)
	if !d.Progress().WaitForUploads(ctx, "visit", 10*time.Second) {
		t.Fatalf("expected upload after reconnect, progress %+v", d.Progress().Progress("visit"))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMemoryStore())
	d := newDaemon(t, cfg, testsupport.NewObjectStore(), testsupport.NewSignal(false))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	testsupport.Enqueue(t, d.Store(), "g", "file:///missing.jpg")

	resp, err := http.Get("http://" + d.APIAddress() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `fieldsnap_queue_items{status="pending"} 1`) {
		t.Fatalf("expected queue depth gauge, got:\n%s", body)
	}
}

func TestAPIRequiresConfiguredToken(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMemoryStore(), testsupport.WithAPIToken("s3cret"))
	d := newDaemon(t, cfg, testsupport.NewObjectStore(), testsupport.NewSignal(true))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	anonymous, _ := api.NewClientForAddress(d.APIAddress(), "")
	if _, err := anonymous.Status(context.Background()); err == nil {
		t.Fatal("expected unauthorized without token")
	}
	authed, _ := api.NewClientForAddress(d.APIAddress(), "s3cret")
	status, err := authed.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.StoreBackend != "memory" || status.MaxPerPass != cfg.Upload.MaxPerPass {
		t.Fatalf("unexpected status %+v", status)
	}
}

package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"fieldsnap/internal/testsupport"
)

func TestProbeOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	probe := NewProbe(server.URL, time.Second, server.Client())
	if !probe.Online(context.Background()) {
		t.Fatal("expected online while server is up")
	}
	if !probe.Last() {
		t.Fatal("expected Last to record online")
	}

	server.Close()
	if probe.Online(context.Background()) {
		t.Fatal("expected offline after server closed")
	}
	if err := probe.Check(context.Background()); err == nil {
		t.Fatal("expected Check to report the failure")
	}
}

func TestProbeEmptyURLIsOnline(t *testing.T) {
	probe := NewProbe("  ", 0, nil)
	if !probe.Online(context.Background()) {
		t.Fatal("empty probe URL should report online")
	}
}

func TestProbeServerErrorStillOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	probe := NewProbe(server.URL, time.Second, server.Client())
	if !probe.Online(context.Background()) {
		t.Fatal("any HTTP response means the network is reachable")
	}
}

func TestStatic(t *testing.T) {
	if !Static(true).Online(context.Background()) || Static(false).Online(context.Background()) {
		t.Fatal("static signal should return its value")
	}
}

func TestWatcherFiresOnTransition(t *testing.T) {
	signal := testsupport.NewSignal(false)
	var fired atomic.Int32
	watcher := NewWatcher(signal, func() { fired.Add(1) }, nil, WithInterval(5*time.Millisecond))

	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("should not fire while offline")
	}

	signal.Set(true)
	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("expected one online transition, got %d", fired.Load())
	}

	time.Sleep(30 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("staying online must not re-fire, got %d", fired.Load())
	}
	if !watcher.Online() {
		t.Fatal("expected watcher to report online")
	}
}

func TestWatcherCheckTransitions(t *testing.T) {
	signal := testsupport.NewSignal(true)
	fired := 0
	watcher := NewWatcher(signal, func() { fired++ }, nil)

	watcher.Check(context.Background())
	watcher.Check(context.Background())
	signal.Set(false)
	watcher.Check(context.Background())
	signal.Set(true)
	watcher.Check(context.Background())

	if fired != 2 {
		t.Fatalf("expected two transitions to online, got %d", fired)
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	watcher := NewWatcher(Static(true), nil, nil, WithInterval(time.Millisecond))
	watcher.Stop()
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	watcher.Stop()
	watcher.Stop()
}

func TestBuildMatcher(t *testing.T) {
	matcher := buildMatcher()

	for _, action := range []netlink.KObjAction{netlink.ADD, netlink.CHANGE, netlink.MOVE} {
		event := netlink.UEvent{Action: action, Env: map[string]string{"SUBSYSTEM": "net", "INTERFACE": "wlan0"}}
		if !matcher.Evaluate(event) {
			t.Errorf("expected matcher to accept %s", action)
		}
	}

	remove := netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "net"}}
	if matcher.Evaluate(remove) {
		t.Error("expected matcher to reject remove")
	}
	block := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}
	if matcher.Evaluate(block) {
		t.Error("expected matcher to reject other subsystems")
	}
}

func TestHandleEvent(t *testing.T) {
	calls := 0
	m := newNetlinkMonitor(nil, func(context.Context) bool {
		calls++
		return true
	})

	m.handleEvent(context.Background(), netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"INTERFACE": "lo"}})
	if calls != 0 {
		t.Fatal("loopback events should be ignored")
	}
	m.handleEvent(context.Background(), netlink.UEvent{Action: netlink.CHANGE, Env: map[string]string{"INTERFACE": "eth0"}})
	if calls != 1 {
		t.Fatalf("expected one check, got %d", calls)
	}
}

func TestNetlinkMonitorNilSafe(t *testing.T) {
	var m *netlinkMonitor
	m.Stop()
	if m.Running() {
		t.Fatal("nil monitor should not be running")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor should return nil, got %v", err)
	}
}

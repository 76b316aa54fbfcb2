package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fieldsnap/internal/logging"
)

const defaultPollInterval = 15 * time.Second

// Watcher polls a Signal and calls onOnline whenever reachability goes from
// offline (or unknown) to online.
type Watcher struct {
	signal   Signal
	interval time.Duration
	onOnline func()
	logger   *slog.Logger
	netlink  *netlinkMonitor

	online  atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// WatcherOption customises a Watcher.
type WatcherOption func(*Watcher)

// WithInterval sets the poll interval.
func WithInterval(interval time.Duration) WatcherOption {
	return func(w *Watcher) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithNetlink enables the udev netlink listener.
func WithNetlink(enabled bool) WatcherOption {
	return func(w *Watcher) {
		if enabled {
			w.netlink = newNetlinkMonitor(w.logger, w.Check)
		}
	}
}

// NewWatcher builds a Watcher. onOnline runs on the watcher goroutine and
// must not block for long.
func NewWatcher(signal Signal, onOnline func(), logger *slog.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		signal:   signal,
		interval: defaultPollInterval,
		onOnline: onOnline,
		logger:   logging.NewComponentLogger(logger, "connectivity"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the polling loop and, when enabled, the netlink listener.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.loop(runCtx, w.done)
	if err := w.netlink.Start(runCtx); err != nil {
		w.logger.Warn("netlink listener unavailable", logging.Error(err))
	}
	return nil
}

// Stop ends polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	done := w.done
	w.running = false
	w.mu.Unlock()

	w.netlink.Stop()
	cancel()
	<-done
}

// Online returns the last observed state.
func (w *Watcher) Online() bool {
	return w.online.Load()
}

// Check probes once and fires onOnline on an offline to online transition.
func (w *Watcher) Check(ctx context.Context) bool {
	online := w.signal.Online(ctx)
	previous := w.online.Swap(online)
	switch {
	case online && !previous:
		w.logger.Info("connectivity available",
			logging.String(logging.FieldEventType, "connectivity_online"),
		)
		if w.onOnline != nil {
			w.onOnline()
		}
	case !online && previous:
		w.logger.Info("connectivity lost; uploads paused",
			logging.String(logging.FieldEventType, "connectivity_offline"),
		)
	}
	return online
}

func (w *Watcher) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	w.Check(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

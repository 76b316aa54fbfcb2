package uploader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fieldsnap/internal/blobref"
	"fieldsnap/internal/connectivity"
	"fieldsnap/internal/logging"
	"fieldsnap/internal/metrics"
	"fieldsnap/internal/notifications"
	"fieldsnap/internal/queue"
	"fieldsnap/internal/storage"
)

const (
	// DefaultMaxPerPass bounds successful uploads per drain pass.
	DefaultMaxPerPass = 2

	DefaultRetryBackoff    = 2 * time.Second
	DefaultRescheduleDelay = time.Second
	DefaultTransferTimeout = 2 * time.Minute
)

// SkipReason explains why a Drain call did no work.
type SkipReason string

const (
	SkipNone    SkipReason = ""
	SkipActive  SkipReason = "already_active"
	SkipOffline SkipReason = "offline"
)

// DrainResult summarises one Drain call.
type DrainResult struct {
	Skipped     SkipReason    `json:"skipped,omitempty"`
	Attempts    int           `json:"attempts"`
	Uploaded    int           `json:"uploaded"`
	Failed      int           `json:"failed"`
	Exhausted   int           `json:"exhausted"`
	Rescheduled bool          `json:"rescheduled"`
	Duration    time.Duration `json:"duration"`
}

// Uploader runs drain passes over a queue.Store.
type Uploader struct {
	store    *queue.Store
	resolver blobref.Resolver
	objects  storage.ObjectStore
	signal   connectivity.Signal
	logger   *slog.Logger
	notifier notifications.Service
	metrics  *metrics.UploadMetrics

	maxPerPass      int
	retryLimit      int
	retryBackoff    time.Duration
	rescheduleDelay time.Duration
	transferTimeout time.Duration

	drainMu    sync.Mutex
	trigger    chan struct{}
	reschedule chan time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   Stats
	summary struct{ uploaded, failed int }
}

// Option customises an Uploader.
type Option func(*Uploader)

// WithMaxPerPass overrides DefaultMaxPerPass.
func WithMaxPerPass(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.maxPerPass = n
		}
	}
}

// WithRetryLimit sets the automatic retry budget. It must match the limit
// the store uses for selection.
func WithRetryLimit(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.retryLimit = n
		}
	}
}

// WithRetryBackoff sets the pause after a failure that still has budget.
func WithRetryBackoff(d time.Duration) Option {
	return func(u *Uploader) {
		if d >= 0 {
			u.retryBackoff = d
		}
	}
}

// WithRescheduleDelay sets the pause before a continuation pass.
func WithRescheduleDelay(d time.Duration) Option {
	return func(u *Uploader) {
		if d >= 0 {
			u.rescheduleDelay = d
		}
	}
}

// WithTransferTimeout bounds one upload attempt.
func WithTransferTimeout(d time.Duration) Option {
	return func(u *Uploader) {
		if d > 0 {
			u.transferTimeout = d
		}
	}
}

// WithNotifier sets the notification service.
func WithNotifier(n notifications.Service) Option {
	return func(u *Uploader) {
		if n != nil {
			u.notifier = n
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.UploadMetrics) Option {
	return func(u *Uploader) { u.metrics = m }
}

// New builds an Uploader. The retry limit defaults to the store's.
func New(store *queue.Store, resolver blobref.Resolver, objects storage.ObjectStore, signal connectivity.Signal, logger *slog.Logger, opts ...Option) *Uploader {
	if signal == nil {
		signal = connectivity.Static(true)
	}
	u := &Uploader{
		store:           store,
		resolver:        resolver,
		objects:         objects,
		signal:          signal,
		logger:          logging.NewComponentLogger(logger, "uploader"),
		notifier:        notifications.NewService(nil),
		maxPerPass:      DefaultMaxPerPass,
		retryLimit:      store.RetryLimit(),
		retryBackoff:    DefaultRetryBackoff,
		rescheduleDelay: DefaultRescheduleDelay,
		transferTimeout: DefaultTransferTimeout,
		trigger:         make(chan struct{}, 1),
		reschedule:      make(chan time.Duration, 1),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// MaxPerPass returns the per-pass success bound.
func (u *Uploader) MaxPerPass() int {
	return u.maxPerPass
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fieldsnap/internal/api"
	"fieldsnap/internal/blobref"
	"fieldsnap/internal/config"
	"fieldsnap/internal/connectivity"
	"fieldsnap/internal/kvstore"
	"fieldsnap/internal/logging"
	"fieldsnap/internal/metrics"
	"fieldsnap/internal/notifications"
	"fieldsnap/internal/preflight"
	"fieldsnap/internal/progress"
	"fieldsnap/internal/queue"
	"fieldsnap/internal/storage"
	"fieldsnap/internal/uploader"
)

// Daemon coordinates the upload pipeline and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  kvstore.Backend
	store    *queue.Store
	objects  storage.ObjectStore
	probe    *connectivity.Probe
	signal   connectivity.Signal
	uploader *uploader.Uploader
	watcher  *connectivity.Watcher
	progress *progress.Facade
	registry *prometheus.Registry
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	startedAt time.Time
}

// Option overrides a collaborator, mainly for tests.
type Option func(*buildOptions)

type buildOptions struct {
	backend  kvstore.Backend
	objects  storage.ObjectStore
	resolver blobref.Resolver
	signal   connectivity.Signal
	notifier notifications.Service
}

// WithBackend supplies the key-value backend instead of opening cfg.Store.
func WithBackend(backend kvstore.Backend) Option {
	return func(o *buildOptions) { o.backend = backend }
}

// WithObjectStore supplies the object store instead of opening cfg.Storage.
func WithObjectStore(objects storage.ObjectStore) Option {
	return func(o *buildOptions) { o.objects = objects }
}

// WithResolver replaces the local blob resolver.
func WithResolver(resolver blobref.Resolver) Option {
	return func(o *buildOptions) { o.resolver = resolver }
}

// WithSignal replaces the HTTP connectivity probe.
func WithSignal(signal connectivity.Signal) Option {
	return func(o *buildOptions) { o.signal = signal }
}

// WithNotifier replaces the ntfy notifier.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *buildOptions) { o.notifier = notifier }
}

// New opens the queue and builds every component. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var build buildOptions
	for _, opt := range opts {
		opt(&build)
	}

	backend := build.backend
	if backend == nil {
		opened, err := kvstore.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open queue backend: %w", err)
		}
		backend = opened
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		registry: prometheus.NewRegistry(),
	}

	// The uploader is built after the store; enqueues before that only land in
	// the queue and are picked up by the first drain.
	var up *uploader.Uploader
	store, err := queue.Open(ctx, backend,
		queue.WithNamespace(cfg.Store.Namespace),
		queue.WithRetryLimit(cfg.Upload.RetryLimit),
		queue.WithLogger(logger),
		queue.WithEnqueueHook(func(queue.Item) {
			if up != nil {
				up.Trigger()
			}
		}),
	)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	d.store = store

	objects := build.objects
	if objects == nil {
		objects, err = storage.Open(ctx, cfg)
		if err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("open object store: %w", err)
		}
	}
	d.objects = objects

	resolver := build.resolver
	if resolver == nil {
		resolver = blobref.NewLocal()
	}

	d.probe = connectivity.NewProbe(cfg.Connectivity.ProbeURL, cfg.Connectivity.ProbeTimeout(), nil)
	d.signal = build.signal
	if d.signal == nil {
		d.signal = d.probe
	}

	notifier := build.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	d.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	uploadMetrics := metrics.NewUploadMetrics(d.registry)
	metrics.RegisterQueueDepth(d.registry, func() queue.Counts { return store.Counts("") })

	up = uploader.New(store, resolver, objects, d.signal, logger,
		uploader.WithMaxPerPass(cfg.Upload.MaxPerPass),
		uploader.WithRetryLimit(cfg.Upload.RetryLimit),
		uploader.WithRetryBackoff(cfg.Upload.RetryBackoff()),
		uploader.WithRescheduleDelay(cfg.Upload.RescheduleDelay()),
		uploader.WithTransferTimeout(cfg.Upload.TransferTimeout()),
		uploader.WithNotifier(notifier),
		uploader.WithMetrics(uploadMetrics),
	)
	d.uploader = up

	d.watcher = connectivity.NewWatcher(d.signal, up.Trigger, logger,
		connectivity.WithInterval(cfg.Connectivity.ProbeInterval()),
		connectivity.WithNetlink(cfg.Connectivity.Netlink),
	)
	d.progress = progress.New(store, up, progress.WithPollInterval(cfg.Upload.WaitPoll()))
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, runs preflight checks, and launches the
// scheduler, connectivity watcher, and HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fieldsnap daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.logPreflight(runCtx)

	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.uploader.Start(runCtx); err != nil {
		cancel()
		d.api.stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start uploader: %w", err)
	}
	if err := d.watcher.Start(runCtx); err != nil {
		cancel()
		d.uploader.Stop()
		d.api.stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start connectivity watcher: %w", err)
	}

	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("fieldsnap daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.Int("pending", d.store.Counts("").Pending),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.watcher.Stop()
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.uploader.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("fieldsnap daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// Close stops the daemon and releases the queue backend.
func (d *Daemon) Close() error {
	d.Stop()
	if d.backend != nil {
		return d.backend.Close()
	}
	return nil
}

// Store exposes the queue.
func (d *Daemon) Store() *queue.Store {
	return d.store
}

// Uploader exposes the drain service.
func (d *Daemon) Uploader() *uploader.Uploader {
	return d.uploader
}

// Progress exposes the progress facade.
func (d *Daemon) Progress() *progress.Facade {
	return d.progress
}

// APIAddress returns the address the HTTP API is listening on, or "" when stopped.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) api.StatusResponse {
	return api.StatusResponse{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		Online:         d.watcher.Online(),
		DataDir:        d.cfg.Paths.DataDir,
		LockPath:       d.lockPath,
		StoreBackend:   d.cfg.Store.Backend,
		StorageBackend: d.cfg.Storage.Backend,
		RetryLimit:     d.store.RetryLimit(),
		MaxPerPass:     d.uploader.MaxPerPass(),
		Queue:          d.store.Counts(""),
		Uploader:       d.uploader.Stats(),
	}
}

func (d *Daemon) logPreflight(ctx context.Context) {
	results := preflight.RunAll(ctx, d.cfg, preflight.Targets{
		Backend: d.backend,
		Objects: d.objects,
		Probe:   d.probe,
	})
	for _, result := range results {
		if result.Passed {
			d.logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "uploads stay queued until the check passes"),
		)
	}
}

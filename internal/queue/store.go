package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fieldsnap/internal/kvstore"
	"fieldsnap/internal/logging"
)

const (
	// DefaultNamespace is the kvstore namespace the collection is written to.
	DefaultNamespace = "fieldsnap-upload-queue"
	itemsKey         = "items"
	stateVersion     = 1
)

type persistedState struct {
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}

// Store manages the upload queue collection backed by a kvstore.Backend.
type Store struct {
	mu         sync.RWMutex
	items      []Item
	processing atomic.Bool

	kv         kvstore.Backend
	namespace  string
	retryLimit int
	onEnqueue  func(Item)
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithNamespace overrides the kvstore namespace.
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

// WithRetryLimit overrides the automatic retry budget.
func WithRetryLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.retryLimit = limit
		}
	}
}

// WithEnqueueHook registers fn to run after each successful Enqueue. The
// daemon uses it to trigger a drain.
func WithEnqueueHook(fn func(Item)) Option {
	return func(s *Store) { s.onEnqueue = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the uuid item id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs an empty store without reading kv. A nil kv gets an in-memory backend.
func New(kv kvstore.Backend, opts ...Option) *Store {
	if kv == nil {
		kv = kvstore.NewMemory()
	}
	s := &Store{
		kv:         kv,
		namespace:  DefaultNamespace,
		retryLimit: DefaultRetryLimit,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "queue")
	return s
}

// Open loads the persisted collection from kv. Items left in uploading by an
// abrupt shutdown are marked failed with InterruptedReason; their RetryCount
// is unchanged so they remain eligible while budget remains.
func Open(ctx context.Context, kv kvstore.Backend, opts ...Option) (*Store, error) {
	s := New(kv, opts...)
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	reconciled := markInterrupted(items, s.now().UTC())
	if reconciled > 0 {
		if err := s.persist(ctx, items); err != nil {
			return nil, fmt.Errorf("persist reconciled queue: %w", err)
		}
		logging.WarnWithContext(s.logger, "interrupted uploads marked failed", "queue_reconciled",
			logging.Int("count", reconciled),
			logging.String(logging.FieldImpact, "items will be retried automatically while budget remains"),
			logging.String(logging.FieldErrorHint, "no action needed"),
		)
	}
	s.items = items
	s.logger.Debug("queue loaded", logging.Int("items", len(items)), logging.String("namespace", s.namespace))
	return s, nil
}

// RetryLimit returns the automatic retry budget.
func (s *Store) RetryLimit() int {
	return s.retryLimit
}

func (s *Store) load(ctx context.Context) ([]Item, error) {
	raw, ok, err := s.kv.Get(ctx, s.namespace, itemsKey)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	var state persistedState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if state.Version != stateVersion {
		return nil, fmt.Errorf("%w: version %d, expected %d", ErrCorruptState, state.Version, stateVersion)
	}
	for _, item := range state.Items {
		if !item.Status.Valid() {
			return nil, fmt.Errorf("%w: item %s has status %q", ErrCorruptState, item.ID, item.Status)
		}
	}
	return state.Items, nil
}

func (s *Store) persist(ctx context.Context, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	payload, err := json.Marshal(persistedState{Version: stateVersion, Items: items})
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := s.kv.Put(ctx, s.namespace, itemsKey, payload); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the collection and persists it before the
// copy replaces the in-memory state. fn reports whether anything changed;
// unchanged collections are not written.
func (s *Store) mutate(ctx context.Context, fn func(items []Item) ([]Item, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed, err := fn(cloneItems(s.items))
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// markInterrupted moves every uploading item to failed with
// InterruptedReason and returns how many it changed.
func markInterrupted(items []Item, now time.Time) int {
	n := 0
	for idx := range items {
		if items[idx].Status != StatusUploading {
			continue
		}
		items[idx].Status = StatusFailed
		items[idx].Error = InterruptedReason
		items[idx].UpdatedAt = now
		n++
	}
	return n
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for idx, item := range items {
		out[idx] = item.Clone()
	}
	return out
}

func indexOf(items []Item, id string) int {
	for idx := range items {
		if items[idx].ID == id {
			return idx
		}
	}
	return -1
}

// SetProcessing records whether a drain pass is running. It is never persisted.
func (s *Store) SetProcessing(active bool) {
	s.processing.Store(active)
}

// IsProcessing reports the transient drain flag.
func (s *Store) IsProcessing() bool {
	return s.processing.Load()
}

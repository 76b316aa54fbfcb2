package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrInjected is returned by ObjectStore when a failure was requested.
var ErrInjected = errors.New("injected upload failure")

// Upload records one ObjectStore.Upsert call.
type Upload struct {
	Path        string
	Data        []byte
	ContentType string
}

// ObjectStore is an in-memory storage.ObjectStore that records writes and
// can be told to fail.
type ObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   []Upload
	failNext  int
	failAll   bool
	panicNext bool
	pingErr   error
	onUpsert  func(path string)
}

// NewObjectStore returns an empty fake store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

// FailNext makes the next n Upsert calls fail with ErrInjected.
func (s *ObjectStore) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// FailAll makes every Upsert fail until reset with FailAll(false).
func (s *ObjectStore) FailAll(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = fail
}

// PanicNext makes the next Upsert panic.
func (s *ObjectStore) PanicNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicNext = true
}

// SetPingErr sets the error returned by Ping.
func (s *ObjectStore) SetPingErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// OnUpsert registers fn to run at the start of every Upsert, before any
// injected failure. It runs without the store lock held.
func (s *ObjectStore) OnUpsert(fn func(path string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpsert = fn
}

func (s *ObjectStore) Upsert(ctx context.Context, path string, data []byte, contentType string) error {
	s.mu.Lock()
	hook := s.onUpsert
	s.mu.Unlock()
	if hook != nil {
		hook(path)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicNext {
		s.panicNext = false
		panic("object store exploded")
	}
	if s.failAll {
		return ErrInjected
	}
	if s.failNext > 0 {
		s.failNext--
		return ErrInjected
	}
	copied := append([]byte(nil), data...)
	s.objects[path] = copied
	s.uploads = append(s.uploads, Upload{Path: path, Data: copied, ContentType: contentType})
	return nil
}

func (s *ObjectStore) URL(_ context.Context, path string) (string, error) {
	return fmt.Sprintf("https://objects.test/%s", path), nil
}

func (s *ObjectStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

// Uploads returns the successful Upsert calls in order.
func (s *ObjectStore) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// Object returns the stored bytes at path.
func (s *ObjectStore) Object(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	return data, ok
}

// Signal is a connectivity signal that can be switched on and off.
type Signal struct {
	online atomic.Bool
}

// NewSignal returns a Signal in the given state.
func NewSignal(online bool) *Signal {
	s := &Signal{}
	s.online.Store(online)
	return s
}

// Set changes the reported state.
func (s *Signal) Set(online bool) {
	s.online.Store(online)
}

func (s *Signal) Online(context.Context) bool {
	return s.online.Load()
}

package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-process Backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
	puts    int
	putErr  error
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

func memoryKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func (m *Memory) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[memoryKey(namespace, key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (m *Memory) Put(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[memoryKey(namespace, key)] = append([]byte(nil), value...)
	m.puts++
	return nil
}

func (m *Memory) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memoryKey(namespace, key))
	return nil
}

// SetPutErr makes every subsequent Put fail with err; nil restores writes.
func (m *Memory) SetPutErr(err error) {
	m.mu.Lock()
	m.putErr = err
	m.mu.Unlock()
}

// Puts reports how many successful writes have happened.
func (m *Memory) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

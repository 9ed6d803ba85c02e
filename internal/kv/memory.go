package kv

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process store with an optional byte quota. It stands in for
// browser local storage in tests and in the offline CLI.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]string
	quota    int64
	disabled bool
}

type MemoryOption func(*Memory)

// WithQuota caps the sum of key and value lengths. Zero means unlimited.
func WithQuota(bytes int64) MemoryOption { return func(m *Memory) { m.quota = bytes } }

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{data: map[string]string{}}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetAvailable toggles the store between working and blocked.
func (m *Memory) SetAvailable(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = !ok
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disabled {
		return "", ErrUnavailable
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ErrUnavailable
	}
	if m.quota > 0 {
		used := m.usedLocked()
		if old, ok := m.data[key]; ok {
			used -= int64(len(key) + len(old))
		}
		if used+int64(len(key)+len(value)) > m.quota {
			return ErrQuotaExceeded
		}
	}
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ErrUnavailable
	}
	delete(m.data, key)
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disabled {
		return nil, ErrUnavailable
	}
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) usedLocked() int64 {
	var n int64
	for k, v := range m.data {
		n += int64(len(k) + len(v))
	}
	return n
}

// Package kv is the storage port the progress layer persists through. Values
// are opaque strings (JSON documents in practice); adapters map their native
// failures onto the three sentinel errors below.
package kv

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("kv: key not found")
	ErrUnavailable   = errors.New("kv: store unavailable")
	ErrQuotaExceeded = errors.New("kv: quota exceeded")
)

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

const probeKey = "__storage_test__"

// Probe writes and removes a sentinel key, the same check a browser app runs
// before trusting local storage.
func Probe(ctx context.Context, s Store) error {
	if s == nil {
		return ErrUnavailable
	}
	if err := s.Set(ctx, probeKey, probeKey); err != nil {
		return err
	}
	return s.Remove(ctx, probeKey)
}

// Usage approximates the bytes held by the store: the sum of key and value
// lengths, which is how quotas are accounted by the memory adapter.
func Usage(ctx context.Context, s Store) (int64, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}
	var used int64
	for _, k := range keys {
		v, err := s.Get(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		used += int64(len(k) + len(v))
	}
	return used, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

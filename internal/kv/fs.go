package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

const fsExt = ".json"

// FSStore keeps one file per key under a base directory.
type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) path(key string) string {
	// escape so keys can never walk out of base
	return filepath.Join(s.base, url.PathEscape(key)+fsExt)
}

func (s *FSStore) Get(_ context.Context, key string) (string, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return string(b), nil
}

func (s *FSStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return errors.New("empty key")
	}
	dst := s.path(key)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		_ = os.Remove(tmp)
		return mapFSErr(err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return mapFSErr(err)
	}
	return nil
}

func (s *FSStore) Remove(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return mapFSErr(err)
}

func (s *FSStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fsExt) {
			continue
		}
		k, err := url.PathUnescape(strings.TrimSuffix(name, fsExt))
		if err != nil {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func mapFSErr(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

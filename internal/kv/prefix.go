package kv

import (
	"context"
	"strings"
)

// Prefixed scopes a store to keys starting with prefix, so several owners can
// share one backend. Keys reports unprefixed names.
type Prefixed struct {
	Store  Store
	Prefix string
}

func WithPrefix(s Store, prefix string) Prefixed { return Prefixed{Store: s, Prefix: prefix} }

func (p Prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.Store.Get(ctx, p.Prefix+key)
}

func (p Prefixed) Set(ctx context.Context, key, value string) error {
	return p.Store.Set(ctx, p.Prefix+key, value)
}

func (p Prefixed) Remove(ctx context.Context, key string) error {
	return p.Store.Remove(ctx, p.Prefix+key)
}

func (p Prefixed) Keys(ctx context.Context) ([]string, error) {
	all, err := p.Store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range all {
		if rest, ok := strings.CutPrefix(k, p.Prefix); ok {
			out = append(out, rest)
		}
	}
	return out, nil
}

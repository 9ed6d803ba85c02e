package http

import (
	"sync"

	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/kv"
	"github.com/mind-engage/quizpractice/internal/progress"
)

// ProgressPool hands out one progress store per owner, each scoped to its own
// key prefix of the shared backend.
type ProgressPool struct {
	base    kv.Store
	catalog bank.Catalog
	opts    []progress.Option

	mu     sync.Mutex
	stores map[string]*progress.Store
}

func NewProgressPool(base kv.Store, catalog bank.Catalog, opts ...progress.Option) *ProgressPool {
	return &ProgressPool{base: base, catalog: catalog, opts: opts, stores: map[string]*progress.Store{}}
}

func (p *ProgressPool) For(owner string) *progress.Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.stores[owner]; ok {
		return s
	}
	s := progress.New(kv.WithPrefix(p.base, OwnerPrefix(owner)), p.catalog, p.opts...)
	p.stores[owner] = s
	return s
}

// Global is a store over the unprefixed backend, used for usage reporting.
func (p *ProgressPool) Global() *progress.Store {
	return progress.New(p.base, p.catalog, p.opts...)
}

func OwnerPrefix(owner string) string { return "u/" + owner + "/" }

package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/logging"
	"github.com/mind-engage/quizpractice/internal/metrics"
	"github.com/mind-engage/quizpractice/internal/quiz"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotOwner        = errors.New("session belongs to another user")
)

// SessionFactory builds a session for owner. Notices for the HTTP client are
// delivered to inbox.
type SessionFactory func(owner string, inbox quiz.Notifier) *quiz.Session

type entry struct {
	id       string
	owner    string
	session  *quiz.Session
	inbox    *quiz.Recorder
	lastUsed time.Time
}

// Registry keeps the open sessions of every user, keyed by a random id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  SessionFactory
	idleTTL  time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewRegistry(factory SessionFactory, idleTTL time.Duration, m *metrics.Metrics, log *zap.Logger) *Registry {
	return &Registry{
		sessions: map[string]*entry{},
		factory:  factory,
		idleTTL:  idleTTL,
		metrics:  m,
		log:      logging.OrNop(log),
		now:      time.Now,
	}
}

func (g *Registry) create(owner string, t bank.ExamType) (*entry, error) {
	inbox := &quiz.Recorder{}
	s := g.factory(owner, inbox)
	if err := s.Open(t); err != nil {
		s.Close()
		return nil, err
	}
	e := &entry{id: uuid.NewString(), owner: owner, session: s, inbox: inbox, lastUsed: g.now()}

	g.mu.Lock()
	g.sessions[e.id] = e
	g.mu.Unlock()
	g.metrics.SessionOpened()
	g.log.Debug("session created", zap.String("id", e.id), zap.String("owner", owner), zap.String("exam_type", string(t)))
	return e, nil
}

func (g *Registry) get(id, owner string) (*entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if e.owner != owner {
		return nil, ErrNotOwner
	}
	e.lastUsed = g.now()
	return e, nil
}

// remove closes and forgets a session; an exam in progress is discarded.
func (g *Registry) remove(id, owner string) error {
	g.mu.Lock()
	e, ok := g.sessions[id]
	switch {
	case !ok:
		g.mu.Unlock()
		return ErrSessionNotFound
	case e.owner != owner:
		g.mu.Unlock()
		return ErrNotOwner
	}
	delete(g.sessions, id)
	g.mu.Unlock()

	e.session.Close()
	g.metrics.SessionClosed()
	return nil
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were dropped.
func (g *Registry) Sweep() int {
	if g.idleTTL <= 0 {
		return 0
	}
	cutoff := g.now().Add(-g.idleTTL)

	g.mu.Lock()
	var stale []*entry
	for id, e := range g.sessions {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e)
			delete(g.sessions, id)
		}
	}
	g.mu.Unlock()

	for _, e := range stale {
		e.session.Close()
		g.metrics.SessionClosed()
	}
	if len(stale) > 0 {
		g.log.Info("idle sessions closed", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done, then closes everything.
func (g *Registry) Run(ctx context.Context, every time.Duration) {
	tk := time.NewTicker(every)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			g.closeAll()
			return
		case <-tk.C:
			g.Sweep()
		}
	}
}

func (g *Registry) closeAll() {
	g.mu.Lock()
	all := g.sessions
	g.sessions = map[string]*entry{}
	g.mu.Unlock()
	for _, e := range all {
		e.session.Close()
		g.metrics.SessionClosed()
	}
}

package quiz

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mind-engage/quizpractice/internal/bank"
)

type NoticeKind string

const (
	NoticeAnswerCorrect   NoticeKind = "answer-correct"
	NoticeAnswerIncorrect NoticeKind = "answer-incorrect"
	NoticeSaveFailed      NoticeKind = "save-failed"
	NoticeExamCompleted   NoticeKind = "exam-completed"
)

// Notice is an advisory message for a toast or banner. Message is a default
// wording; front ends may localize by Kind instead.
type Notice struct {
	Kind       NoticeKind    `json:"kind"`
	ExamType   bank.ExamType `json:"examType"`
	QuestionID int           `json:"questionId,omitempty"`
	Message    string        `json:"message"`
}

// Notifier receives notices after the session lock is released, so
// implementations may block briefly but must not call back into the session.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notice) {}

// LogNotifier writes notices to a zap logger; save failures at warn level.
type LogNotifier struct{ Log *zap.Logger }

func (l LogNotifier) Notify(_ context.Context, n Notice) {
	if l.Log == nil {
		return
	}
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("exam_type", string(n.ExamType)),
		zap.Int("question_id", n.QuestionID),
	}
	if n.Kind == NoticeSaveFailed {
		l.Log.Warn(n.Message, fields...)
		return
	}
	l.Log.Info(n.Message, fields...)
}

// Fanout delivers every notice to each notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notice) {
	for _, x := range f {
		if x != nil {
			x.Notify(ctx, n)
		}
	}
}

// Recorder keeps every notice it receives. Handy in tests and for HTTP
// clients polling for toasts.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Drain returns and forgets the notices received so far.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}

func (r *Recorder) Kinds() []NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NoticeKind, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Kind
	}
	return out
}

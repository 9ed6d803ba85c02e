// Package progress persists answer records and score history through a kv
// port. Reads never fail: an absent, blocked, or corrupt document reads as its
// empty default. Writes report failures so the caller can surface a warning.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/kv"
	"github.com/mind-engage/quizpractice/internal/logging"
	"github.com/mind-engage/quizpractice/internal/metrics"
	"github.com/mind-engage/quizpractice/internal/tracing"
	"github.com/mind-engage/quizpractice/internal/validate"
)

const (
	KeyUser     = "user"
	KeyProgress = "quiz_progress"
	KeyScores   = "quiz_scores"
)

var (
	ErrPersistenceUnavailable   = errors.New("progress: storage unavailable")
	ErrPersistenceQuotaExceeded = errors.New("progress: storage quota exceeded")
	ErrPersistenceCorrupt       = errors.New("progress: stored document is corrupt")
	ErrInvalidScore             = errors.New("progress: invalid score")
)

type AnswerRecord struct {
	SelectedAnswer int       `json:"selectedAnswer"`
	IsCorrect      bool      `json:"isCorrect"`
	Timestamp      time.Time `json:"timestamp"`
}

type ScoreEntry struct {
	ExamType       bank.ExamType `json:"examType"`
	Score          int           `json:"score"`
	TotalQuestions int           `json:"totalQuestions"`
	Percentage     int           `json:"percentage"`
	Timestamp      time.Time     `json:"timestamp"`
}

type Statistics struct {
	Total     int `json:"total"`
	Answered  int `json:"answered"`
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Accuracy  int `json:"accuracy"`
}

type UsageReport struct {
	UsedBytes  int64 `json:"usedBytes"`
	QuotaBytes int64 `json:"quotaBytes"`
	Percentage int   `json:"percentage"`
}

// document is the on-store shape of quiz_progress.
type document map[bank.ExamType]map[int]AnswerRecord

type Store struct {
	kv      kv.Store
	catalog bank.Catalog
	log     *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	quota   int64
	now     func() time.Time

	// serializes read-modify-write of the shared documents
	mu sync.Mutex
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = logging.OrNop(l) } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Store) { s.metrics = m } }

// WithTimeout bounds every call into the kv port.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithQuota only feeds Usage; enforcement belongs to the adapter.
func WithQuota(bytes int64) Option { return func(s *Store) { s.quota = bytes } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func New(store kv.Store, catalog bank.Catalog, opts ...Option) *Store {
	s := &Store{
		kv:      store,
		catalog: catalog,
		log:     zap.NewNop(),
		timeout: 3 * time.Second,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Percentage is round(score/total*100); 0 when total is not positive.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

func (s *Store) SaveAnswer(ctx context.Context, t bank.ExamType, questionID, selected int, correct bool) error {
	ctx, span := s.start(ctx, "progress.SaveAnswer", t)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := read[document](ctx, s, KeyProgress)
	if errors.Is(err, ErrPersistenceUnavailable) {
		return s.fail(span, "save_answer", err)
	}
	if doc == nil {
		doc = document{}
	}
	if doc[t] == nil {
		doc[t] = map[int]AnswerRecord{}
	}
	doc[t][questionID] = AnswerRecord{
		SelectedAnswer: selected,
		IsCorrect:      correct,
		Timestamp:      s.now().UTC(),
	}
	if err := s.write(ctx, KeyProgress, doc); err != nil {
		return s.fail(span, "save_answer", err)
	}
	return nil
}

// Progress returns the answer records of one exam type, never nil.
func (s *Store) Progress(ctx context.Context, t bank.ExamType) map[int]AnswerRecord {
	ctx, span := s.start(ctx, "progress.Progress", t)
	defer span.End()

	doc, _ := read[document](ctx, s, KeyProgress)
	out := make(map[int]AnswerRecord, len(doc[t]))
	for id, r := range doc[t] {
		out[id] = r
	}
	return out
}

func (s *Store) SaveScore(ctx context.Context, t bank.ExamType, score, total int) (ScoreEntry, error) {
	if r := validate.Score(score, total); !r.Valid {
		return ScoreEntry{}, fmt.Errorf("%w: %s", ErrInvalidScore, r.Error)
	}
	ctx, span := s.start(ctx, "progress.SaveScore", t)
	defer span.End()

	entry := ScoreEntry{
		ExamType:       t,
		Score:          score,
		TotalQuestions: total,
		Percentage:     Percentage(score, total),
		Timestamp:      s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scores, err := read[[]ScoreEntry](ctx, s, KeyScores)
	if errors.Is(err, ErrPersistenceUnavailable) {
		return entry, s.fail(span, "save_score", err)
	}
	scores = append(scores, entry)
	if err := s.write(ctx, KeyScores, scores); err != nil {
		return entry, s.fail(span, "save_score", err)
	}
	return entry, nil
}

// Scores returns the score history in append order. An empty exam type
// returns every entry.
func (s *Store) Scores(ctx context.Context, t bank.ExamType) []ScoreEntry {
	ctx, span := s.start(ctx, "progress.Scores", t)
	defer span.End()

	all, _ := read[[]ScoreEntry](ctx, s, KeyScores)
	out := make([]ScoreEntry, 0, len(all))
	for _, e := range all {
		if t == "" || e.ExamType == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) Statistics(ctx context.Context, t bank.ExamType) Statistics {
	var st Statistics
	if s.catalog != nil {
		if qs, err := s.catalog.Questions(t); err == nil {
			st.Total = len(qs)
		}
	}
	records := s.Progress(ctx, t)
	st.Answered = len(records)
	for _, r := range records {
		if r.IsCorrect {
			st.Correct++
		}
	}
	st.Incorrect = st.Answered - st.Correct
	st.Accuracy = Percentage(st.Correct, st.Answered)
	return st
}

// WrongAnswers lists, in the order of questions, the IDs whose latest record
// is incorrect.
func (s *Store) WrongAnswers(ctx context.Context, t bank.ExamType, questions []bank.Question) []int {
	records := s.Progress(ctx, t)
	var wrong []int
	for _, q := range questions {
		if r, ok := records[q.ID]; ok && !r.IsCorrect {
			wrong = append(wrong, q.ID)
		}
	}
	return wrong
}

// ClearProgress drops the answer records of one exam type, or all of them
// when t is empty. Score history is kept.
func (s *Store) ClearProgress(ctx context.Context, t bank.ExamType) error {
	ctx, span := s.start(ctx, "progress.ClearProgress", t)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if t == "" {
		if err := s.kv.Remove(ctx, KeyProgress); err != nil && !errors.Is(err, kv.ErrNotFound) {
			return s.fail(span, "clear_progress", fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err))
		}
		return nil
	}
	doc, err := read[document](ctx, s, KeyProgress)
	if errors.Is(err, ErrPersistenceUnavailable) {
		return s.fail(span, "clear_progress", err)
	}
	if doc == nil {
		doc = document{}
	}
	delete(doc, t)
	if err := s.write(ctx, KeyProgress, doc); err != nil {
		return s.fail(span, "clear_progress", err)
	}
	return nil
}

func (s *Store) Usage(ctx context.Context) (UsageReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	used, err := kv.Usage(ctx, s.kv)
	if err != nil {
		return UsageReport{}, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	rep := UsageReport{UsedBytes: used, QuotaBytes: s.quota}
	if s.quota > 0 {
		rep.Percentage = int(math.Round(float64(used) / float64(s.quota) * 100))
	}
	return rep, nil
}

func (s *Store) start(ctx context.Context, name string, t bank.ExamType) (context.Context, trace.Span) {
	ctx, span := tracing.Start(ctx, name)
	if t != "" {
		span.SetAttributes(attribute.String("quiz.exam_type", string(t)))
	}
	return ctx, span
}

func (s *Store) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.metrics.PersistenceFailed(op)
	s.log.Warn("persist failed", zap.String("op", op), zap.Error(err))
	return err
}

// read decodes key. A missing key yields the zero value and no error. A
// corrupt document is logged and also yields the zero value, with
// ErrPersistenceCorrupt so writers know they are replacing it.
func read[T any](ctx context.Context, s *Store, key string) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.kv.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return zero, nil
	case err != nil:
		s.log.Debug("kv read failed", zap.String("key", key), zap.Error(err))
		return zero, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.log.Warn("discarding corrupt document", zap.String("key", key), zap.Error(err))
		return zero, fmt.Errorf("%w: %s: %v", ErrPersistenceCorrupt, key, err)
	}
	return v, nil
}

func (s *Store) write(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.kv.Set(ctx, key, string(b))
	if errors.Is(err, kv.ErrQuotaExceeded) {
		s.cleanup(ctx)
		err = s.kv.Set(ctx, key, string(b))
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, kv.ErrQuotaExceeded):
		return fmt.Errorf("%w: %s", ErrPersistenceQuotaExceeded, key)
	default:
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
}

// essential reports keys cleanup must keep: the user identity and the quiz
// documents, at the top level or under an owner prefix such as u/<owner>/.
func essential(key string) bool {
	switch path.Base(key) {
	case KeyUser, KeyProgress, KeyScores:
		return true
	}
	return false
}

// cleanup removes every non-essential key.
func (s *Store) cleanup(ctx context.Context) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		s.log.Warn("quota cleanup: list keys", zap.Error(err))
		return
	}
	removed := 0
	for _, k := range keys {
		if essential(k) {
			continue
		}
		if err := s.kv.Remove(ctx, k); err != nil {
			s.log.Warn("quota cleanup: remove", zap.String("key", k), zap.Error(err))
			continue
		}
		removed++
	}
	s.log.Info("quota cleanup", zap.Int("removed", removed))
}

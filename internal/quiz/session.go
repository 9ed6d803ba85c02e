// Package quiz is the per-user practice/exam state machine. A Session is safe
// for concurrent use: every operation and the exam timer serialize on one
// mutex.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/logging"
	"github.com/mind-engage/quizpractice/internal/metrics"
	"github.com/mind-engage/quizpractice/internal/progress"
	"github.com/mind-engage/quizpractice/internal/validate"
)

// Mode is how a run is played: untimed practice or a timed exam.
type Mode string

const (
	ModePractice Mode = "practice"
	ModeExam     Mode = "exam"
)

// State is the lifecycle position of a Session.
type State string

const (
	StateIdle      State = "idle"
	StatePractice  State = "practice"
	StateExam      State = "exam"
	StateCompleted State = "completed"
)

// SecondsPerQuestion is the exam time budget per question.
const SecondsPerQuestion = 60

// Persister is the persistence a session needs. *progress.Store satisfies it.
type Persister interface {
	SaveAnswer(ctx context.Context, t bank.ExamType, questionID, selected int, correct bool) error
	SaveScore(ctx context.Context, t bank.ExamType, score, total int) (progress.ScoreEntry, error)
	Progress(ctx context.Context, t bank.ExamType) map[int]progress.AnswerRecord
	Statistics(ctx context.Context, t bank.ExamType) progress.Statistics
}

// CompletionReason tells a finished run apart from one the exam clock ended.
type CompletionReason string

const (
	ReasonFinished CompletionReason = "finished"
	ReasonTimeout  CompletionReason = "timeout"
)

// Completion is what a finished run hands to the result presenter.
type Completion struct {
	ExamType         bank.ExamType       `json:"examType"`
	Mode             Mode                `json:"mode"`
	Reason           CompletionReason    `json:"reason"`
	Score            int                 `json:"score"`
	Total            int                 `json:"total"`
	WrongQuestionIDs []int               `json:"wrongQuestionIds"`
	Entry            progress.ScoreEntry `json:"entry"`
	Warning          error               `json:"-"`
}

// Outcome of a submit. Warning carries a persistence failure; the in-memory
// result stands regardless.
type Outcome struct {
	Correct  bool
	Question bank.Question
	Warning  error
}

// View is a read-only snapshot for rendering.
type View struct {
	ExamType             bank.ExamType  `json:"examType"`
	State                State          `json:"state"`
	Mode                 Mode           `json:"mode"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	TotalQuestions       int            `json:"totalQuestions"`
	Question             *bank.Question `json:"question,omitempty"`
	SelectedAnswer       *int           `json:"selectedAnswer"`
	ShowResult           bool           `json:"showResult"`
	Score                int            `json:"score"`
	AnsweredCount        int            `json:"answeredCount"`
	TimeRemainingSeconds *int           `json:"timeRemainingSeconds"`
	LoadError            string         `json:"loadError,omitempty"`
	Completion           *Completion    `json:"completion,omitempty"`
}

// Session is one user's quiz. Persistence runs after the session mutex is
// released, in submission order, so a slow store never stalls readers or the
// exam clock.
type Session struct {
	mu sync.Mutex

	catalog  bank.Catalog
	rec      Persister
	notifier Notifier
	log      *zap.Logger
	metrics  *metrics.Metrics
	tick     time.Duration

	examType   bank.ExamType
	questions  []bank.Question
	index      int
	selected   *int
	showResult bool
	score      int
	answered   map[int]struct{}
	answers    map[int]bool // latest correctness per question id in this run
	mode       Mode
	remaining  *int
	state      State
	loadErr    string
	completion *Completion

	timer   examTimer
	saves   saveQueue
	pending []deferred
}

// deferred is either a notice or a persistence call, delivered in order once
// the session mutex is released. A failed save yields a notice.
type deferred struct {
	notice Notice
	save   func(ctx context.Context) *Notice
}

// Option configures a Session.
type Option func(*Session)

// WithTickInterval makes the session drive its own exam timer. Without it the
// caller invokes Tick.
func WithTickInterval(d time.Duration) Option { return func(s *Session) { s.tick = d } }

// WithNotifier routes outcome notices to n.
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.log = logging.OrNop(l) } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Session) { s.metrics = m } }

// New returns an idle session. Call Open to start a run.
func New(catalog bank.Catalog, rec Persister, opts ...Option) *Session {
	s := &Session{
		catalog:  catalog,
		rec:      rec,
		notifier: nopNotifier{},
		log:      zap.NewNop(),
		state:    StateIdle,
		mode:     ModePractice,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// unlock releases the session, then runs queued saves and delivers queued
// notices. Saves from different calls run in the order they were queued.
func (s *Session) unlock(ctx context.Context) {
	queued := s.pending
	s.pending = nil
	saving := false
	for _, d := range queued {
		if d.save != nil {
			saving = true
			break
		}
	}
	var ticket uint64
	if saving {
		ticket = s.saves.take()
	}
	s.mu.Unlock()

	if saving {
		s.saves.wait(ticket)
		defer s.saves.done()
	}
	for _, d := range queued {
		if d.save == nil {
			s.notifier.Notify(ctx, d.notice)
			continue
		}
		if n := d.save(ctx); n != nil {
			s.notifier.Notify(ctx, *n)
		}
	}
}

func (s *Session) notify(kind NoticeKind, questionID int, msg string) {
	s.pending = append(s.pending, deferred{notice: s.notice(kind, questionID, msg)})
}

func (s *Session) notice(kind NoticeKind, questionID int, msg string) Notice {
	return Notice{Kind: kind, ExamType: s.examType, QuestionID: questionID, Message: msg}
}

func (s *Session) persist(fn func(ctx context.Context) *Notice) {
	s.pending = append(s.pending, deferred{save: fn})
}

// abandonLocked stops the exam clock; a run cut short this way is not scored.
func (s *Session) abandonLocked() {
	if s.timer.running() {
		s.log.Info("exam abandoned", zap.String("exam_type", string(s.examType)))
	}
	s.timer.stop()
}

// Open selects an exam type and starts a clean practice run. Any running exam
// timer is cancelled and the abandoned exam is not scored.
func (s *Session) Open(t bank.ExamType) error {
	if !validate.IsValidExamType(s.catalog, string(t)) {
		return fmt.Errorf("%w: %q", ErrInvalidExamType, t)
	}
	qs, err := s.catalog.Questions(t)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExamType, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandonLocked()
	s.examType = t
	s.questions = qs
	s.resetRunLocked()
	s.log.Debug("session opened", zap.String("exam_type", string(t)), zap.Int("questions", len(qs)))
	return nil
}

// ChangeExamType is Open with the current state left untouched on a bad type.
func (s *Session) ChangeExamType(t bank.ExamType) error { return s.Open(t) }

// Reset returns to a clean practice run of the same exam type.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return ErrNotOpen
	}
	s.abandonLocked()
	s.resetRunLocked()
	return nil
}

// Close cancels the timer and discards the run without scoring it.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandonLocked()
	s.examType = ""
	s.questions = nil
	s.resetRunLocked()
	s.state = StateIdle
}

func (s *Session) resetRunLocked() {
	s.index = 0
	s.selected = nil
	s.showResult = false
	s.score = 0
	s.answered = map[int]struct{}{}
	s.answers = map[int]bool{}
	s.mode = ModePractice
	s.remaining = nil
	s.state = StatePractice
	s.completion = nil
	s.loadQuestionLocked()
}

func (s *Session) loadQuestionLocked() {
	s.loadErr = ""
	if len(s.questions) == 0 {
		s.loadErr = "no questions available"
		return
	}
	if r := validate.Question(&s.questions[s.index]); !r.Valid {
		s.loadErr = r.Error
		s.log.Warn("cannot load question",
			zap.String("exam_type", string(s.examType)), zap.Int("index", s.index), zap.String("reason", r.Error))
	}
}

// active reports ErrNotOpen or ErrSessionCompleted for states that accept no
// answering or navigation.
func (s *Session) active() error {
	switch s.state {
	case StateIdle:
		return ErrNotOpen
	case StateCompleted:
		return ErrSessionCompleted
	}
	return nil
}

// SelectAnswer marks an option of the current question without revealing it.
func (s *Session) SelectAnswer(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.active(); err != nil {
		return err
	}
	if s.loadErr != "" {
		return fmt.Errorf("%w: %s", ErrMalformedQuestion, s.loadErr)
	}
	if s.showResult {
		return ErrAlreadyAnswered
	}
	q := s.questions[s.index]
	if !validate.IsValidAnswerIndex(index, len(q.Options)) {
		return fmt.Errorf("%w: %d", ErrInvalidAnswerIndex, index)
	}
	s.selected = &index
	return nil
}

// SubmitAnswer reveals the current question. The score only counts the first
// answer to each question in a run; resubmitting is idempotent. The answer is
// saved after the reveal, outside the session lock; a failed save comes back
// as Outcome.Warning.
func (s *Session) SubmitAnswer(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if err := s.active(); err != nil {
		s.mu.Unlock()
		return Outcome{}, err
	}
	out, err := s.submitLocked()
	s.unlock(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return *out, nil
}

// submitLocked applies the answer and queues its save. The returned Outcome's
// Warning is filled in once the queued save has run.
func (s *Session) submitLocked() (*Outcome, error) {
	if s.loadErr != "" {
		return nil, fmt.Errorf("%w: %s", ErrMalformedQuestion, s.loadErr)
	}
	if s.selected == nil {
		return nil, ErrNoAnswerSelected
	}
	q := s.questions[s.index]
	selected := *s.selected
	correct := q.IsCorrect(selected)

	s.showResult = true
	if _, seen := s.answered[q.ID]; !seen && correct {
		s.score++
	}
	s.answered[q.ID] = struct{}{}
	s.answers[q.ID] = correct
	s.metrics.AnswerSubmitted(string(s.examType), correct)

	out := &Outcome{Correct: correct, Question: q}
	t := s.examType
	failed := s.notice(NoticeSaveFailed, q.ID, "진행 상황 저장에 실패했습니다.")
	s.persist(func(ctx context.Context) *Notice {
		if err := s.rec.SaveAnswer(ctx, t, q.ID, selected, correct); err != nil {
			out.Warning = err
			return &failed
		}
		return nil
	})
	if correct {
		s.notify(NoticeAnswerCorrect, q.ID, "정답입니다!")
	} else {
		s.notify(NoticeAnswerIncorrect, q.ID, "오답입니다. 다시 생각해보세요.")
	}
	return out, nil
}

// NextQuestion advances, or completes the run from the last question.
func (s *Session) NextQuestion(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock(ctx)
	if err := s.active(); err != nil {
		return err
	}
	if len(s.questions) == 0 {
		return ErrInvalidQuestionIndex
	}
	if s.index >= len(s.questions)-1 {
		s.completeLocked(ReasonFinished)
		return nil
	}
	s.moveLocked(s.index + 1)
	return nil
}

// PrevQuestion steps back; a no-op on the first question. The persisted
// record of the revisited question is kept.
func (s *Session) PrevQuestion() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.active(); err != nil {
		return err
	}
	if s.index == 0 {
		return nil
	}
	s.moveLocked(s.index - 1)
	return nil
}

func (s *Session) moveLocked(index int) {
	s.index = index
	s.selected = nil
	s.showResult = false
	s.loadQuestionLocked()
}

// StartExam begins a fresh timed run. Persisted history is untouched.
func (s *Session) StartExam() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.active(); err != nil {
		return err
	}
	if s.state != StatePractice {
		return fmt.Errorf("%w: exam already running", ErrInvalidTransition)
	}
	if len(s.questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidTransition)
	}
	s.resetRunLocked()
	s.mode = ModeExam
	s.state = StateExam
	remaining := len(s.questions) * SecondsPerQuestion
	s.remaining = &remaining

	if s.tick > 0 {
		s.timer.start(s.tick, s.timerTick)
	}
	return nil
}

// Tick advances the exam clock by one second. It is a no-op outside exam
// mode; at zero the run completes as if every question had been exhausted.
func (s *Session) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock(ctx)
	switch s.state {
	case StateIdle:
		return ErrNotOpen
	case StateCompleted:
		return ErrSessionCompleted
	case StateExam:
		s.tickLocked()
	}
	return nil
}

// timerTick is the examTimer callback. Ticks from a timer generation that has
// since been stopped are dropped.
func (s *Session) timerTick(gen uint64) bool {
	ctx := context.Background()
	s.mu.Lock()
	defer s.unlock(ctx)
	if !s.timer.current(gen) || s.state != StateExam {
		return false
	}
	s.tickLocked()
	return s.state == StateExam
}

func (s *Session) tickLocked() {
	if s.remaining == nil || *s.remaining <= 0 {
		return
	}
	left := *s.remaining - 1
	s.remaining = &left
	if left == 0 {
		s.completeLocked(ReasonTimeout)
	}
}

// completeLocked finishes the run. The score entry is saved, and the wrong
// list refined against stored records, once the lock is released; until then
// the wrong list holds this run's answers only.
func (s *Session) completeLocked(reason CompletionReason) {
	s.timer.stop()

	// time ran out with an answer picked but not submitted
	if reason == ReasonTimeout && s.selected != nil && !s.showResult && s.loadErr == "" {
		if _, err := s.submitLocked(); err != nil {
			s.log.Debug("auto-submit skipped", zap.Error(err))
		}
	}

	t, score, total := s.examType, s.score, len(s.questions)
	questions := s.questions
	answers := maps.Clone(s.answers)
	c := &Completion{
		ExamType:         t,
		Mode:             s.mode,
		Reason:           reason,
		Score:            score,
		Total:            total,
		WrongQuestionIDs: wrongIDs(questions, answers, nil),
	}
	failed := s.notice(NoticeSaveFailed, 0, "점수 저장에 실패했습니다.")
	s.persist(func(ctx context.Context) *Notice {
		wrong := wrongIDs(questions, answers, s.rec.Progress(ctx, t))
		entry, err := s.rec.SaveScore(ctx, t, score, total)
		s.mu.Lock()
		if s.completion == c {
			c.WrongQuestionIDs = wrong
			c.Entry = entry
			c.Warning = err
		}
		s.mu.Unlock()
		if err != nil {
			return &failed
		}
		return nil
	})

	s.completion = c
	s.state = StateCompleted
	s.showResult = true
	s.metrics.SessionCompleted(string(t), string(s.mode), string(reason))
	s.notify(NoticeExamCompleted, 0, "모든 문제를 완료했습니다!")
	s.log.Info("run completed",
		zap.String("exam_type", string(t)),
		zap.String("mode", string(s.mode)),
		zap.String("reason", string(reason)),
		zap.Int("score", score),
		zap.Int("total", total))
}

// wrongIDs overlays this run's answers, which win when persistence lagged, on
// stored records and returns the incorrect IDs in bank order.
func wrongIDs(questions []bank.Question, answers map[int]bool, records map[int]progress.AnswerRecord) []int {
	wrong := []int{}
	for _, q := range questions {
		correct, ok := answers[q.ID]
		if !ok {
			r, persisted := records[q.ID]
			if !persisted {
				continue
			}
			correct = r.IsCorrect
		}
		if !correct {
			wrong = append(wrong, q.ID)
		}
	}
	return wrong
}

// Review re-enters a completed run at its first wrong question as a fresh
// practice pass.
func (s *Session) Review() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle:
		return ErrNotOpen
	case StateCompleted:
	default:
		return fmt.Errorf("%w: review needs a completed run", ErrInvalidTransition)
	}
	if s.completion == nil || len(s.completion.WrongQuestionIDs) == 0 {
		return ErrNoWrongAnswers
	}
	first := s.completion.WrongQuestionIDs[0]
	at := 0
	for i, q := range s.questions {
		if q.ID == first {
			at = i
			break
		}
	}
	s.resetRunLocked()
	s.moveLocked(at)
	return nil
}

// Completion returns the result of the finished run.
func (s *Session) Completion() (Completion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCompleted || s.completion == nil {
		return Completion{}, false
	}
	c := *s.completion
	c.WrongQuestionIDs = append([]int(nil), c.WrongQuestionIDs...)
	return c, true
}

// Statistics reads the persisted statistics of the open exam type.
func (s *Session) Statistics(ctx context.Context) (progress.Statistics, error) {
	s.mu.Lock()
	t := s.examType
	open := s.state != StateIdle
	s.mu.Unlock()
	if !open {
		return progress.Statistics{}, ErrNotOpen
	}
	return s.rec.Statistics(ctx, t), nil
}

// ExamType is the open exam type, empty when idle.
func (s *Session) ExamType() bank.ExamType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.examType
}

// View snapshots the session for rendering.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ExamType:             s.examType,
		State:                s.state,
		Mode:                 s.mode,
		CurrentQuestionIndex: s.index,
		TotalQuestions:       len(s.questions),
		ShowResult:           s.showResult,
		Score:                s.score,
		AnsweredCount:        len(s.answered),
		LoadError:            s.loadErr,
	}
	if s.state != StateIdle && s.index < len(s.questions) {
		q := s.questions[s.index]
		q.Options = append([]string(nil), q.Options...)
		v.Question = &q
	}
	if s.selected != nil {
		sel := *s.selected
		v.SelectedAnswer = &sel
	}
	if s.remaining != nil {
		r := *s.remaining
		v.TimeRemainingSeconds = &r
	}
	if s.completion != nil {
		c := *s.completion
		c.WrongQuestionIDs = append([]int(nil), c.WrongQuestionIDs...)
		v.Completion = &c
	}
	return v
}

// IsTerminal reports errors that mean the session cannot accept the
// operation in its current state, as opposed to bad input.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrNotOpen) || errors.Is(err, ErrSessionCompleted)
}

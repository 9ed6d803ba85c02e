package progress

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/kv"
)

var fixed = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newStore(t *testing.T, mem *kv.Memory) *Store {
	t.Helper()
	return New(mem, bank.Default(), WithClock(func() time.Time { return fixed }))
}

func TestSaveAnswer_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory())

	if err := s.SaveAnswer(ctx, bank.SQLD, 2, 1, false); err != nil {
		t.Fatal(err)
	}
	got := s.Progress(ctx, bank.SQLD)[2]
	want := AnswerRecord{SelectedAnswer: 1, IsCorrect: false, Timestamp: fixed}
	if !got.Timestamp.Equal(want.Timestamp) || got.SelectedAnswer != want.SelectedAnswer || got.IsCorrect != want.IsCorrect {
		t.Fatalf("got %+v want %+v", got, want)
	}
	if n := len(s.Progress(ctx, bank.InfoProcessingEngineer)); n != 0 {
		t.Fatalf("other exam types must stay empty, got %d", n)
	}
}

func TestSaveAnswer_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory())

	_ = s.SaveAnswer(ctx, bank.SQLD, 1, 0, false)
	_ = s.SaveAnswer(ctx, bank.SQLD, 1, 2, true)

	p := s.Progress(ctx, bank.SQLD)
	if len(p) != 1 || !p[1].IsCorrect || p[1].SelectedAnswer != 2 {
		t.Fatalf("expected one overwritten record, got %+v", p)
	}
}

func TestSaveScore_Percentage(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory())

	entry, err := s.SaveScore(ctx, bank.SQLD, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if entry.ExamType != bank.SQLD || entry.Score != 2 || entry.TotalQuestions != 3 || entry.Percentage != 67 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if _, err := s.SaveScore(ctx, bank.SQLD, 3, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveScore(ctx, bank.InfoProcessingEngineer, 1, 5); err != nil {
		t.Fatal(err)
	}
	if got := s.Scores(ctx, bank.SQLD); len(got) != 2 || got[1].Percentage != 60 {
		t.Fatalf("unexpected SQLD history %+v", got)
	}
	if got := s.Scores(ctx, ""); len(got) != 3 {
		t.Fatalf("expected full history, got %d", len(got))
	}
}

func TestSaveScore_RejectsInvalid(t *testing.T) {
	s := newStore(t, kv.NewMemory())
	for _, tc := range []struct{ score, total int }{{-1, 3}, {1, 0}, {4, 3}} {
		if _, err := s.SaveScore(context.Background(), bank.SQLD, tc.score, tc.total); !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("score %d/%d: expected ErrInvalidScore, got %v", tc.score, tc.total, err)
		}
	}
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory())

	st := s.Statistics(ctx, bank.SQLD)
	if st != (Statistics{Total: 3}) {
		t.Fatalf("empty statistics should be zero with accuracy 0, got %+v", st)
	}

	_ = s.SaveAnswer(ctx, bank.SQLD, 1, 2, true)
	_ = s.SaveAnswer(ctx, bank.SQLD, 2, 0, false)
	_ = s.SaveAnswer(ctx, bank.SQLD, 3, 2, true)

	first := s.Statistics(ctx, bank.SQLD)
	second := s.Statistics(ctx, bank.SQLD)
	if first != second {
		t.Fatalf("statistics not idempotent: %+v vs %+v", first, second)
	}
	want := Statistics{Total: 3, Answered: 3, Correct: 2, Incorrect: 1, Accuracy: 67}
	if first != want {
		t.Fatalf("got %+v want %+v", first, want)
	}
}

func TestWrongAnswers_BankOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory())
	qs, _ := bank.Default().Questions(bank.InfoProcessingEngineer)

	_ = s.SaveAnswer(ctx, bank.InfoProcessingEngineer, qs[4].ID, 0, false)
	_ = s.SaveAnswer(ctx, bank.InfoProcessingEngineer, qs[1].ID, 0, false)
	_ = s.SaveAnswer(ctx, bank.InfoProcessingEngineer, qs[2].ID, qs[2].CorrectAnswer, true)

	got := s.WrongAnswers(ctx, bank.InfoProcessingEngineer, qs)
	if len(got) != 2 || got[0] != qs[1].ID || got[1] != qs[4].ID {
		t.Fatalf("unexpected wrong list %v", got)
	}
}

func TestCorruptDocumentsReadAsDefault(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	_ = mem.Set(ctx, KeyProgress, "{not json")
	_ = mem.Set(ctx, KeyScores, `{"oops":1}`)
	s := newStore(t, mem)

	if p := s.Progress(ctx, bank.SQLD); len(p) != 0 {
		t.Fatalf("corrupt progress should read empty, got %+v", p)
	}
	if sc := s.Scores(ctx, ""); len(sc) != 0 {
		t.Fatalf("corrupt scores should read empty, got %+v", sc)
	}
	if st := s.Statistics(ctx, bank.SQLD); st.Answered != 0 || st.Accuracy != 0 {
		t.Fatalf("unexpected statistics %+v", st)
	}

	// a write replaces the corrupt document
	if err := s.SaveAnswer(ctx, bank.SQLD, 1, 2, true); err != nil {
		t.Fatal(err)
	}
	if p := s.Progress(ctx, bank.SQLD); len(p) != 1 {
		t.Fatalf("expected fresh document, got %+v", p)
	}
}

func TestUnavailableStore(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := newStore(t, mem)
	_ = s.SaveAnswer(ctx, bank.SQLD, 1, 2, true)
	mem.SetAvailable(false)

	if err := s.SaveAnswer(ctx, bank.SQLD, 2, 0, false); !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
	if _, err := s.SaveScore(ctx, bank.SQLD, 1, 3); !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}
	if p := s.Progress(ctx, bank.SQLD); len(p) != 0 {
		t.Fatalf("blocked store should read empty, got %+v", p)
	}

	mem.SetAvailable(true)
	if err := s.SaveAnswer(ctx, bank.SQLD, 2, 0, false); err != nil {
		t.Fatalf("next write should go through once the store is back: %v", err)
	}
	if p := s.Progress(ctx, bank.SQLD); len(p) != 2 {
		t.Fatalf("expected both records, got %+v", p)
	}
}

func TestQuotaCleanupThenRetry(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory(kv.WithQuota(400))
	_ = mem.Set(ctx, KeyUser, "u")
	_ = mem.Set(ctx, "cache_a", strings.Repeat("x", 300))
	s := newStore(t, mem)

	if err := s.SaveAnswer(ctx, bank.SQLD, 1, 2, true); err != nil {
		t.Fatalf("cleanup should make room: %v", err)
	}
	if _, err := mem.Get(ctx, "cache_a"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("non-essential key should be gone, got %v", err)
	}
	if v, err := mem.Get(ctx, KeyUser); err != nil || v != "u" {
		t.Fatalf("user key must survive cleanup: %q %v", v, err)
	}
}

func TestQuotaCleanupKeepsOwnerDocuments(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory(kv.WithQuota(1000))
	alice := New(kv.WithPrefix(mem, "u/alice/"), bank.Default(), WithClock(func() time.Time { return fixed }))
	if err := alice.SaveAnswer(ctx, bank.SQLD, 1, 2, true); err != nil {
		t.Fatal(err)
	}
	if _, err := alice.SaveScore(ctx, bank.SQLD, 1, 3); err != nil {
		t.Fatal(err)
	}
	_ = mem.Set(ctx, "u/alice/user", "alice")
	_ = mem.Set(ctx, "u/alice/draft", strings.Repeat("x", 100))
	// fill the store to 10 bytes short of the quota
	used, err := kv.Usage(ctx, mem)
	if err != nil {
		t.Fatal(err)
	}
	if err := mem.Set(ctx, "cache_a", strings.Repeat("x", int(1000-used)-len("cache_a")-10)); err != nil {
		t.Fatal(err)
	}

	// an unprefixed store over the same backend hits the quota
	global := newStore(t, mem)
	if err := global.SaveAnswer(ctx, bank.SQLD, 2, 0, false); err != nil {
		t.Fatalf("cleanup should make room: %v", err)
	}

	for _, k := range []string{"u/alice/quiz_progress", "u/alice/quiz_scores", "u/alice/user"} {
		if _, err := mem.Get(ctx, k); err != nil {
			t.Fatalf("%s must survive cleanup: %v", k, err)
		}
	}
	for _, k := range []string{"u/alice/draft", "cache_a"} {
		if _, err := mem.Get(ctx, k); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("%s should be gone, got %v", k, err)
		}
	}
	if rec, ok := alice.Progress(ctx, bank.SQLD)[1]; !ok || !rec.IsCorrect {
		t.Fatalf("alice's progress was lost: %+v", alice.Progress(ctx, bank.SQLD))
	}
	if n := len(alice.Scores(ctx, bank.SQLD)); n != 1 {
		t.Fatalf("alice's score history was lost: %d entries", n)
	}
}

func TestQuotaStillExceeded(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory(kv.WithQuota(50))
	_ = mem.Set(ctx, KeyUser, strings.Repeat("u", 40))
	s := newStore(t, mem)

	if err := s.SaveAnswer(ctx, bank.SQLD, 1, 2, true); !errors.Is(err, ErrPersistenceQuotaExceeded) {
		t.Fatalf("expected ErrPersistenceQuotaExceeded, got %v", err)
	}
	if _, err := mem.Get(ctx, KeyUser); err != nil {
		t.Fatalf("user key must survive: %v", err)
	}
}

func TestClearProgress(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory())
	_ = s.SaveAnswer(ctx, bank.SQLD, 1, 2, true)
	_ = s.SaveAnswer(ctx, bank.InfoProcessingEngineer, 1, 3, true)
	_, _ = s.SaveScore(ctx, bank.SQLD, 1, 3)

	if err := s.ClearProgress(ctx, bank.SQLD); err != nil {
		t.Fatal(err)
	}
	if len(s.Progress(ctx, bank.SQLD)) != 0 || len(s.Progress(ctx, bank.InfoProcessingEngineer)) != 1 {
		t.Fatalf("only SQLD should be cleared")
	}
	if err := s.ClearProgress(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if len(s.Progress(ctx, bank.InfoProcessingEngineer)) != 0 {
		t.Fatalf("everything should be cleared")
	}
	if len(s.Scores(ctx, "")) != 1 {
		t.Fatalf("score history must be kept")
	}
}

func TestUsage(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	_ = mem.Set(ctx, "abcd", "123456")
	s := New(mem, nil, WithQuota(100))

	rep, err := s.Usage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rep.UsedBytes != 10 || rep.QuotaBytes != 100 || rep.Percentage != 10 {
		t.Fatalf("unexpected usage %+v", rep)
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct{ score, total, want int }{
		{2, 3, 67}, {1, 3, 33}, {0, 5, 0}, {5, 5, 100}, {1, 8, 13}, {3, 0, 0},
	}
	for _, c := range cases {
		if got := Percentage(c.score, c.total); got != c.want {
			t.Errorf("Percentage(%d,%d) = %d, want %d", c.score, c.total, got, c.want)
		}
	}
}

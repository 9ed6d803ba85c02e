package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	authmw "github.com/mind-engage/quizpractice/internal/auth/middleware"
	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/kv"
	"github.com/mind-engage/quizpractice/internal/quiz"
)

type testServer struct {
	t      *testing.T
	router chi.Router
	auth   *authmw.AuthService
	reg    *Registry
	pool   *ProgressPool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cat := bank.Default()
	pool := NewProgressPool(kv.NewMemory(), cat)
	reg := NewRegistry(func(owner string, inbox quiz.Notifier) *quiz.Session {
		return quiz.New(cat, pool.For(owner), quiz.WithNotifier(inbox))
	}, time.Hour, nil, nil)
	t.Cleanup(reg.closeAll)

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	a := authmw.NewAuthService("test-secret", time.Hour)
	r := chi.NewRouter()
	Mount(r, Deps{
		Catalog:       cat,
		Sessions:      reg,
		Progress:      pool,
		Usage:         pool.Global(),
		Auth:          a,
		GuestAuth:     true,
		AdminUser:     "admin",
		AdminPassHash: string(hash),
	})
	return &testServer{t: t, router: r, auth: a, reg: reg, pool: pool}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) guest() (token, sub string) {
	s.t.Helper()
	rr := s.do(http.MethodPost, "/auth/guest", "", nil)
	var out struct {
		AccessToken string `json:"access_token"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&out)
	c, err := s.auth.Parse(out.AccessToken)
	if err != nil {
		s.t.Fatalf("guest token: %v", err)
	}
	return out.AccessToken, c.Sub
}

type sessionBody struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Score    int    `json:"score"`
	Question *struct {
		ID            int  `json:"id"`
		CorrectAnswer *int `json:"correctAnswer"`
	} `json:"question"`
	Action  string `json:"action"`
	Outcome *struct {
		Correct bool   `json:"correct"`
		Warning string `json:"warning"`
	} `json:"outcome"`
	Notices []quiz.Notice `json:"notices"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func (s *testServer) act(token, id, action string, body any, want int) sessionBody {
	s.t.Helper()
	rr := s.do(http.MethodPost, "/sessions/"+id+"/"+action, token, body)
	if rr.Code != want {
		s.t.Fatalf("%s: status %d want %d (%s)", action, rr.Code, want, rr.Body.String())
	}
	if want != http.StatusOK {
		return sessionBody{}
	}
	return decode[sessionBody](s.t, rr)
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t)
	tok, _ := s.guest()

	rr := s.do(http.MethodPost, "/sessions", tok, map[string]string{"exam_type": "SQLD"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	sess := decode[sessionBody](t, rr)
	if sess.State != "practice" || sess.Question == nil || sess.Question.CorrectAnswer != nil {
		t.Fatalf("answer key must be hidden before submit: %+v", sess)
	}

	s.act(tok, sess.ID, "select", map[string]int{"index": 2}, http.StatusOK)
	got := s.act(tok, sess.ID, "submit", nil, http.StatusOK)
	if got.Outcome == nil || !got.Outcome.Correct || got.Question.CorrectAnswer == nil || *got.Question.CorrectAnswer != 2 {
		t.Fatalf("unexpected submit response %+v", got)
	}
	if len(got.Notices) != 1 || got.Notices[0].Kind != quiz.NoticeAnswerCorrect {
		t.Fatalf("expected one answer-correct notice, got %+v", got.Notices)
	}

	s.act(tok, sess.ID, "next", nil, http.StatusOK)
	s.act(tok, sess.ID, "select", map[string]int{"index": 0}, http.StatusOK)
	s.act(tok, sess.ID, "submit", nil, http.StatusOK)
	s.act(tok, sess.ID, "next", nil, http.StatusOK)
	if k := s.act(tok, sess.ID, "key", map[string]string{"key": "3"}, http.StatusOK); k.Action != "select" {
		t.Fatalf("key 3 should select, got %q", k.Action)
	}
	s.act(tok, sess.ID, "key", map[string]string{"key": "Enter"}, http.StatusOK)
	done := s.act(tok, sess.ID, "next", nil, http.StatusOK)
	if done.State != "completed" || done.Score != 2 {
		t.Fatalf("expected completed run with score 2, got %+v", done)
	}

	rr = s.do(http.MethodGet, "/sessions/"+sess.ID+"/result", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("result: %d", rr.Code)
	}
	res := decode[struct {
		Percentage     int    `json:"percentage"`
		Grade          string `json:"grade"`
		WrongQuestions []struct {
			ID          int    `json:"id"`
			Explanation string `json:"explanation"`
		} `json:"wrongQuestions"`
		Statistics struct {
			Answered int `json:"answered"`
		} `json:"statistics"`
	}](t, rr)
	if res.Percentage != 67 || res.Grade != "보통" || len(res.WrongQuestions) != 1 || res.WrongQuestions[0].ID != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.WrongQuestions[0].Explanation == "" || res.Statistics.Answered != 3 {
		t.Fatalf("wrong questions should be revealed: %+v", res)
	}

	rr = s.do(http.MethodGet, "/scores?exam_type=SQLD", tok, nil)
	scores := decode[[]struct {
		Percentage int `json:"percentage"`
	}](t, rr)
	if len(scores) != 1 || scores[0].Percentage != 67 {
		t.Fatalf("unexpected scores %+v", scores)
	}

	s.act(tok, sess.ID, "review", nil, http.StatusOK)
	if rr := s.do(http.MethodDelete, "/sessions/"+sess.ID, tok, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}
	if s.reg.Len() != 0 {
		t.Fatalf("session should be gone")
	}
}

func TestSessionErrors(t *testing.T) {
	s := newTestServer(t)
	tok, _ := s.guest()

	if rr := s.do(http.MethodPost, "/sessions", "", map[string]string{"exam_type": "SQLD"}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", rr.Code)
	}
	if rr := s.do(http.MethodPost, "/sessions", tok, map[string]string{"exam_type": "토익"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad exam type: %d", rr.Code)
	}
	rr := s.do(http.MethodPost, "/sessions", tok, map[string]string{"exam_type": "SQLD"})
	id := decode[sessionBody](t, rr).ID

	s.act(tok, id, "select", map[string]int{"index": 9}, http.StatusBadRequest)
	s.act(tok, id, "select", nil, http.StatusBadRequest)
	s.act(tok, id, "submit", nil, http.StatusBadRequest)
	s.act(tok, id, "review", nil, http.StatusConflict)
	s.act(tok, id, "teleport", nil, http.StatusNotFound)
	s.act(tok, id, "start-exam", nil, http.StatusOK)
	s.act(tok, id, "start-exam", nil, http.StatusConflict)

	if rr := s.do(http.MethodGet, "/sessions/"+id+"/result", tok, nil); rr.Code != http.StatusConflict {
		t.Fatalf("result before completion: %d", rr.Code)
	}
	if rr := s.do(http.MethodGet, "/sessions/nope", tok, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown session: %d", rr.Code)
	}

	other, _ := s.guest()
	if rr := s.do(http.MethodGet, "/sessions/"+id, other, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("foreign session: %d", rr.Code)
	}
	if rr := s.do(http.MethodDelete, "/sessions/"+id, other, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("foreign delete: %d", rr.Code)
	}
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/exam-types", "", nil)
	types := decode[[]struct {
		ExamType       string `json:"examType"`
		TotalQuestions int    `json:"totalQuestions"`
	}](t, rr)
	if len(types) != 3 || types[0].ExamType != "정보처리기사" || types[0].TotalQuestions != 5 {
		t.Fatalf("unexpected exam types %+v", types)
	}

	rr = s.do(http.MethodGet, "/exam-types/SQLD/questions", "", nil)
	if rr.Code != http.StatusOK || strings.Contains(rr.Body.String(), "correctAnswer") {
		t.Fatalf("questions must not leak answer keys: %s", rr.Body.String())
	}
	if rr := s.do(http.MethodGet, "/exam-types/nope/questions", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown type: %d", rr.Code)
	}

	tok, _ := s.guest()
	rr = s.do(http.MethodGet, "/exam-types/SQLD/statistics", tok, nil)
	st := decode[struct {
		Total    int `json:"total"`
		Accuracy int `json:"accuracy"`
	}](t, rr)
	if st.Total != 3 || st.Accuracy != 0 {
		t.Fatalf("unexpected statistics %+v", st)
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	guestTok, guestSub := s.guest()
	_ = s.pool.For(guestSub).SaveAnswer(ctx, bank.SQLD, 1, 2, true)

	if rr := s.do(http.MethodDelete, "/admin/progress?owner="+guestSub, guestTok, nil); rr.Code != http.StatusForbidden {
		t.Fatalf("guests must not clear progress: %d", rr.Code)
	}

	rr := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "admin", "password": "admin-pass"})
	if rr.Code != http.StatusOK {
		t.Fatalf("admin login: %d", rr.Code)
	}
	adminTok := decode[map[string]string](t, rr)["access_token"]

	if rr := s.do(http.MethodDelete, "/admin/progress", adminTok, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("owner is required: %d", rr.Code)
	}
	if rr := s.do(http.MethodGet, "/admin/usage", adminTok, nil); rr.Code != http.StatusOK {
		t.Fatalf("usage: %d", rr.Code)
	}
	if rr := s.do(http.MethodDelete, "/admin/progress?owner="+guestSub, adminTok, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("clear: %d %s", rr.Code, rr.Body.String())
	}
	if n := len(s.pool.For(guestSub).Progress(ctx, bank.SQLD)); n != 0 {
		t.Fatalf("progress should be cleared, %d left", n)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	_, alice := s.guest()
	bobTok, bob := s.guest()

	_, _ = s.pool.For(alice).SaveScore(ctx, bank.SQLD, 3, 3)
	if s.pool.For(alice) != s.pool.For(alice) {
		t.Fatalf("pool should reuse stores")
	}
	rr := s.do(http.MethodGet, "/scores", bobTok, nil)
	if got := decode[[]any](t, rr); len(got) != 0 {
		t.Fatalf("bob sees alice's scores: %+v", got)
	}
	if len(s.pool.For(bob).Scores(ctx, "")) != 0 || len(s.pool.For(alice).Scores(ctx, "")) != 1 {
		t.Fatalf("scores leaked between owners")
	}
}

func TestRegistrySweep(t *testing.T) {
	s := newTestServer(t)
	s.reg.idleTTL = time.Minute
	e, err := s.reg.create("guest|a", bank.SQLD)
	if err != nil {
		t.Fatal(err)
	}
	_ = e.session.StartExam()

	if n := s.reg.Sweep(); n != 0 {
		t.Fatalf("fresh session swept")
	}
	base := time.Now()
	s.reg.now = func() time.Time { return base.Add(2 * time.Minute) }
	if n := s.reg.Sweep(); n != 1 || s.reg.Len() != 0 {
		t.Fatalf("idle session should be swept, n=%d len=%d", n, s.reg.Len())
	}
	if v := e.session.View(); v.State != quiz.StateIdle {
		t.Fatalf("swept session should be closed, got %s", v.State)
	}
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/exam-types", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/exam-types", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("other clients have their own bucket, got %d", rr.Code)
	}
}

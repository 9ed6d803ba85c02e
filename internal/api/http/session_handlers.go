package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/quizpractice/internal/auth/middleware"
	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/quiz"
	"github.com/mind-engage/quizpractice/internal/result"
)

type outcomeResponse struct {
	Correct bool   `json:"correct"`
	Warning string `json:"warning,omitempty"`
}

type sessionResponse struct {
	ID string `json:"id"`
	quiz.View
	Question *publicQuestion  `json:"question,omitempty"`
	Action   quiz.Action      `json:"action,omitempty"`
	Outcome  *outcomeResponse `json:"outcome,omitempty"`
	Notices  []quiz.Notice    `json:"notices,omitempty"`
}

func render(e *entry) sessionResponse {
	v := e.session.View()
	resp := sessionResponse{ID: e.id, View: v, Notices: e.inbox.Drain()}
	if v.Question != nil {
		q := toPublic(*v.Question, v.ShowResult)
		resp.Question = &q
	}
	return resp
}

func CreateSessionHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamType string `json:"exam_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		e, err := reg.create(authmw.SubjectFromContext(r.Context()), bank.ExamType(req.ExamType))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, render(e))
	}
}

func GetSessionHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := reg.get(chi.URLParam(r, "id"), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, render(e))
	}
}

func DeleteSessionHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.remove(chi.URLParam(r, "id"), authmw.SubjectFromContext(r.Context())); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionActionHandler serves POST /sessions/{id}/{action}.
func SessionActionHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := reg.get(chi.URLParam(r, "id"), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		var req struct {
			Index    *int   `json:"index"`
			ExamType string `json:"exam_type"`
			Key      string `json:"key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		s := e.session
		var (
			action  quiz.Action
			outcome *quiz.Outcome
		)
		switch chi.URLParam(r, "action") {
		case "select":
			if req.Index == nil {
				http.Error(w, "index required", http.StatusBadRequest)
				return
			}
			err = s.SelectAnswer(*req.Index)
		case "submit":
			var out quiz.Outcome
			if out, err = s.SubmitAnswer(ctx); err == nil {
				outcome = &out
			}
		case "next":
			err = s.NextQuestion(ctx)
		case "prev":
			err = s.PrevQuestion()
		case "start-exam":
			err = s.StartExam()
		case "reset":
			err = s.Reset()
		case "change":
			err = s.ChangeExamType(bank.ExamType(req.ExamType))
		case "review":
			err = s.Review()
		case "key":
			action, outcome, err = s.HandleKey(ctx, req.Key)
		default:
			http.NotFound(w, r)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}

		resp := render(e)
		resp.Action = action
		if outcome != nil {
			resp.Outcome = &outcomeResponse{Correct: outcome.Correct}
			if outcome.Warning != nil {
				resp.Outcome.Warning = outcome.Warning.Error()
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ResultHandler summarizes a completed run with its wrong questions revealed.
func ResultHandler(reg *Registry, catalog *bank.Bank) http.HandlerFunc {
	type out struct {
		result.Summary
		WrongQuestions []publicQuestion `json:"wrongQuestions"`
		Warning        string           `json:"warning,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := reg.get(chi.URLParam(r, "id"), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		c, ok := e.session.Completion()
		if !ok {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "session not completed"})
			return
		}
		stats, err := e.session.Statistics(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		qs, _ := catalog.Questions(c.ExamType)
		resp := out{Summary: result.ForCompletion(c, stats), WrongQuestions: []publicQuestion{}}
		for _, q := range result.WrongQuestions(qs, c.WrongQuestionIDs) {
			resp.WrongQuestions = append(resp.WrongQuestions, toPublic(q, true))
		}
		if c.Warning != nil {
			resp.Warning = c.Warning.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

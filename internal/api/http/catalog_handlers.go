package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/quizpractice/internal/auth/middleware"
	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/validate"
)

func ListExamTypesHandler(catalog *bank.Bank) http.HandlerFunc {
	type item struct {
		ExamType bank.ExamType `json:"examType"`
		bank.Stats
	}
	return func(w http.ResponseWriter, r *http.Request) {
		out := []item{}
		for _, t := range catalog.ExamTypes() {
			st, err := catalog.Stats(t)
			if err != nil {
				writeError(w, err)
				return
			}
			out = append(out, item{ExamType: t, Stats: st})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// QuestionsHandler lists an exam type's questions without answer keys.
func QuestionsHandler(catalog *bank.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := bank.ExamType(chi.URLParam(r, "type"))
		qs, err := catalog.Questions(t)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]publicQuestion, 0, len(qs))
		for _, q := range qs {
			out = append(out, toPublic(q, false))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func StatisticsHandler(catalog *bank.Bank, pool *ProgressPool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := chi.URLParam(r, "type")
		if !validate.IsValidExamType(catalog, t) {
			writeError(w, bank.ErrUnknownExamType)
			return
		}
		owner := authmw.SubjectFromContext(r.Context())
		writeJSON(w, http.StatusOK, pool.For(owner).Statistics(r.Context(), bank.ExamType(t)))
	}
}

// ScoresHandler returns the caller's score history, optionally filtered by
// ?exam_type=.
func ScoresHandler(catalog *bank.Bank, pool *ProgressPool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := r.URL.Query().Get("exam_type")
		if t != "" && !validate.IsValidExamType(catalog, t) {
			writeError(w, bank.ErrUnknownExamType)
			return
		}
		owner := authmw.SubjectFromContext(r.Context())
		writeJSON(w, http.StatusOK, pool.For(owner).Scores(r.Context(), bank.ExamType(t)))
	}
}

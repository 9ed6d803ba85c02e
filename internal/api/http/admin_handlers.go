package http

import (
	"net/http"

	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/progress"
	"github.com/mind-engage/quizpractice/internal/validate"
)

// ClearProgressHandler serves DELETE /admin/progress?owner=&exam_type=.
// Score history is kept.
func ClearProgressHandler(catalog *bank.Bank, pool *ProgressPool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			http.Error(w, "owner required", http.StatusBadRequest)
			return
		}
		t := r.URL.Query().Get("exam_type")
		if t != "" && !validate.IsValidExamType(catalog, t) {
			writeError(w, bank.ErrUnknownExamType)
			return
		}
		if err := pool.For(owner).ClearProgress(r.Context(), bank.ExamType(t)); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func UsageHandler(store *progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := store.Usage(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

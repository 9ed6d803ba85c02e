package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/quiz"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Bad input is 400, a
// request the session cannot take in its current state is 409.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, bank.ErrUnknownExamType):
		status = http.StatusNotFound
	case errors.Is(err, ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, quiz.ErrInvalidExamType),
		errors.Is(err, quiz.ErrInvalidAnswerIndex),
		errors.Is(err, quiz.ErrInvalidQuestionIndex),
		errors.Is(err, quiz.ErrNoAnswerSelected):
		status = http.StatusBadRequest
	case errors.Is(err, quiz.ErrMalformedQuestion):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, quiz.ErrAlreadyAnswered),
		errors.Is(err, quiz.ErrNotOpen),
		errors.Is(err, quiz.ErrSessionCompleted),
		errors.Is(err, quiz.ErrInvalidTransition),
		errors.Is(err, quiz.ErrNoWrongAnswers):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// publicQuestion hides the answer key until the question is revealed.
type publicQuestion struct {
	ID            int      `json:"id"`
	Category      string   `json:"category"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correctAnswer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

func toPublic(q bank.Question, reveal bool) publicQuestion {
	p := publicQuestion{ID: q.ID, Category: q.Category, Question: q.Question, Options: q.Options}
	if reveal {
		answer := q.CorrectAnswer
		p.CorrectAnswer = &answer
		p.Explanation = q.Explanation
	}
	return p
}

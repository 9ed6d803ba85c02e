// Package validate holds the side-effect free checks every other package runs
// before trusting an exam type, an index, or a question record.
package validate

import (
	"fmt"
	"strings"

	"github.com/mind-engage/quizpractice/internal/bank"
)

// Result mirrors a {valid, error} pair. Count is set by QuizData.
type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Count int    `json:"count,omitempty"`
}

func ok() Result { return Result{Valid: true} }

func fail(msg string) Result { return Result{Error: msg} }

func failf(f string, a ...any) Result { return Result{Error: fmt.Sprintf(f, a...)} }

func IsValidExamType(c bank.Catalog, value string) bool {
	if c == nil || value == "" {
		return false
	}
	for _, t := range c.ExamTypes() {
		if string(t) == value {
			return true
		}
	}
	return false
}

func IsValidQuestionIndex(index, count int) bool { return index >= 0 && index < count }

func IsValidAnswerIndex(index, optionCount int) bool { return index >= 0 && index < optionCount }

// Question checks the shape of a single record.
func Question(q *bank.Question) Result {
	switch {
	case q == nil:
		return fail("question is required")
	case q.ID == 0:
		return fail("question id is required")
	case strings.TrimSpace(q.Question) == "":
		return fail("question text is required")
	case len(q.Options) == 0:
		return fail("options are required")
	case !IsValidAnswerIndex(q.CorrectAnswer, len(q.Options)):
		return fail("invalid correct answer index")
	}
	return ok()
}

// QuizData validates every question of an exam type.
func QuizData(c bank.Catalog, t bank.ExamType) Result {
	if !IsValidExamType(c, string(t)) {
		return failf("invalid exam type: %s", t)
	}
	qs, err := c.Questions(t)
	if err != nil {
		return fail(err.Error())
	}
	if len(qs) == 0 {
		return failf("no questions found for %s", t)
	}
	for i := range qs {
		if r := Question(&qs[i]); !r.Valid {
			return failf("question %d: %s", i+1, r.Error)
		}
	}
	return Result{Valid: true, Count: len(qs)}
}

func Score(score, total int) Result {
	switch {
	case score < 0:
		return fail("invalid score value")
	case total <= 0:
		return fail("invalid total questions value")
	case score > total:
		return fail("score cannot exceed total questions")
	}
	return ok()
}

// Progress rejects a nil progress document.
func Progress[K comparable, V any](m map[K]V) Result {
	if m == nil {
		return fail("invalid progress data")
	}
	return ok()
}

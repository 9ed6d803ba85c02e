package bank

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownExamType   = errors.New("unknown exam type")
	ErrQuestionNotFound  = errors.New("question not found")
	ErrMalformedQuestion = errors.New("malformed question")
)

// ExamType names one mock certification question set.
type ExamType string

const (
	InfoProcessingEngineer ExamType = "정보처리기사"
	ComputerSpecialistL1   ExamType = "컴퓨터활용능력1급"
	SQLD                   ExamType = "SQLD"
)

type Question struct {
	ID            int      `json:"id"`
	Category      string   `json:"category"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// NewQuestion builds a Question and rejects records that break the
// option/answer invariants instead of letting them reach a session.
func NewQuestion(id int, category, prompt string, options []string, correct int, explanation string) (Question, error) {
	if id <= 0 {
		return Question{}, fmt.Errorf("%w: id must be positive", ErrMalformedQuestion)
	}
	if strings.TrimSpace(prompt) == "" {
		return Question{}, fmt.Errorf("%w: question %d has no prompt", ErrMalformedQuestion, id)
	}
	if len(options) < 2 {
		return Question{}, fmt.Errorf("%w: question %d needs at least 2 options", ErrMalformedQuestion, id)
	}
	if correct < 0 || correct >= len(options) {
		return Question{}, fmt.Errorf("%w: question %d correct answer %d out of range", ErrMalformedQuestion, id, correct)
	}
	opts := make([]string, len(options))
	copy(opts, options)
	return Question{
		ID:            id,
		Category:      category,
		Question:      prompt,
		Options:       opts,
		CorrectAnswer: correct,
		Explanation:   explanation,
	}, nil
}

// IsCorrect reports whether the option index matches the answer key.
func (q Question) IsCorrect(selected int) bool { return selected == q.CorrectAnswer }

// Stats summarizes an exam type's content.
type Stats struct {
	TotalQuestions  int      `json:"totalQuestions"`
	Categories      []string `json:"categories"`
	TotalCategories int      `json:"totalCategories"`
}

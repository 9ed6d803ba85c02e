package quiz

import "errors"

var (
	ErrInvalidExamType      = errors.New("quiz: invalid exam type")
	ErrInvalidQuestionIndex = errors.New("quiz: invalid question index")
	ErrInvalidAnswerIndex   = errors.New("quiz: invalid answer index")
	ErrNoAnswerSelected     = errors.New("quiz: no answer selected")
	ErrAlreadyAnswered      = errors.New("quiz: question already answered")
	ErrMalformedQuestion    = errors.New("quiz: question cannot be loaded")

	ErrNotOpen           = errors.New("quiz: session not open")
	ErrSessionCompleted  = errors.New("quiz: session completed")
	ErrInvalidTransition = errors.New("quiz: invalid transition")
	ErrNoWrongAnswers    = errors.New("quiz: no wrong answers to review")
)

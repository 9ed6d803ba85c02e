package quiz

import (
	"context"
	"strconv"
)

const (
	KeyEnter      = "Enter"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
	KeyEscape     = "Escape"
)

type Action string

const (
	ActionNone   Action = ""
	ActionSelect Action = "select"
	ActionSubmit Action = "submit"
	ActionNext   Action = "next"
	ActionPrev   Action = "prev"
	ActionClose  Action = "close"
)

// HandleKey maps a raw key to an operation. Digits 1-4 pick option n-1 only
// when it exists and the answer is not yet revealed; Enter submits, or moves
// on once revealed. Unmapped keys, and keys that do not apply in the current
// state, are ignored and return ActionNone.
func (s *Session) HandleKey(ctx context.Context, key string) (Action, *Outcome, error) {
	switch key {
	case KeyEscape:
		s.Close()
		return ActionClose, nil, nil
	case KeyArrowRight:
		return s.keyed(ActionNext, s.NextQuestion(ctx))
	case KeyArrowLeft:
		return s.keyed(ActionPrev, s.PrevQuestion())
	case KeyEnter:
		v := s.View()
		switch {
		case v.State != StatePractice && v.State != StateExam:
			return ActionNone, nil, nil
		case v.ShowResult:
			return s.keyed(ActionNext, s.NextQuestion(ctx))
		case v.SelectedAnswer == nil:
			return ActionNone, nil, nil
		}
		out, err := s.SubmitAnswer(ctx)
		if err != nil {
			return ActionNone, nil, err
		}
		return ActionSubmit, &out, nil
	}

	n, err := strconv.Atoi(key)
	if err != nil || len(key) != 1 || n < 1 || n > 4 {
		return ActionNone, nil, nil
	}
	v := s.View()
	if v.Question == nil || v.ShowResult || v.LoadError != "" || n > len(v.Question.Options) {
		return ActionNone, nil, nil
	}
	if v.State != StatePractice && v.State != StateExam {
		return ActionNone, nil, nil
	}
	return s.keyed(ActionSelect, s.SelectAnswer(n-1))
}

func (s *Session) keyed(a Action, err error) (Action, *Outcome, error) {
	if IsTerminal(err) {
		return ActionNone, nil, nil
	}
	if err != nil {
		return ActionNone, nil, err
	}
	return a, nil, nil
}

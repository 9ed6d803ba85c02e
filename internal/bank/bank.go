package bank

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Catalog is the read-only view sessions and validators depend on.
type Catalog interface {
	ExamTypes() []ExamType
	Questions(t ExamType) ([]Question, error)
	Question(t ExamType, index int) (Question, error)
}

// Bank holds an ordered set of exam types and their questions. It is never
// mutated after construction, so it is safe for concurrent readers.
type Bank struct {
	order     []ExamType
	questions map[ExamType][]Question
}

// New builds a bank from already-validated questions. Exam types keep the
// order they are given in; a type may map to no questions.
func New(order []ExamType, questions map[ExamType][]Question) (*Bank, error) {
	b := &Bank{
		order:     make([]ExamType, 0, len(order)),
		questions: make(map[ExamType][]Question, len(order)),
	}
	for _, t := range order {
		if t == "" {
			return nil, errors.New("empty exam type")
		}
		if _, dup := b.questions[t]; dup {
			return nil, fmt.Errorf("duplicate exam type %q", t)
		}
		qs := questions[t]
		seen := make(map[int]struct{}, len(qs))
		for _, q := range qs {
			if _, dup := seen[q.ID]; dup {
				return nil, fmt.Errorf("exam type %q: duplicate question id %d", t, q.ID)
			}
			seen[q.ID] = struct{}{}
		}
		b.order = append(b.order, t)
		b.questions[t] = append([]Question(nil), qs...)
	}
	for t := range questions {
		if _, ok := b.questions[t]; !ok {
			return nil, fmt.Errorf("questions given for undeclared exam type %q", t)
		}
	}
	return b, nil
}

func (b *Bank) ExamTypes() []ExamType {
	return append([]ExamType(nil), b.order...)
}

func (b *Bank) Questions(t ExamType) ([]Question, error) {
	qs, ok := b.questions[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExamType, t)
	}
	return append([]Question(nil), qs...), nil
}

func (b *Bank) Question(t ExamType, index int) (Question, error) {
	qs, ok := b.questions[t]
	if !ok {
		return Question{}, fmt.Errorf("%w: %q", ErrUnknownExamType, t)
	}
	if index < 0 || index >= len(qs) {
		return Question{}, fmt.Errorf("%w: %q index %d", ErrQuestionNotFound, t, index)
	}
	return qs[index], nil
}

// Stats reports the question count and distinct categories, in first-seen order.
func (b *Bank) Stats(t ExamType) (Stats, error) {
	qs, ok := b.questions[t]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %q", ErrUnknownExamType, t)
	}
	seen := map[string]struct{}{}
	cats := make([]string, 0, 4)
	for _, q := range qs {
		if _, ok := seen[q.Category]; ok {
			continue
		}
		seen[q.Category] = struct{}{}
		cats = append(cats, q.Category)
	}
	return Stats{TotalQuestions: len(qs), Categories: cats, TotalCategories: len(cats)}, nil
}

// ---- JSON catalogs ----

type catalogFile struct {
	ExamTypes []ExamType                 `json:"exam_types"`
	Questions map[ExamType][]rawQuestion `json:"questions"`
}

type rawQuestion struct {
	ID            int      `json:"id"`
	Category      string   `json:"category"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// LoadJSON reads a catalog document. Every record goes through NewQuestion,
// so a bad record fails the whole load with its position in the error.
func LoadJSON(r io.Reader) (*Bank, error) {
	var cf catalogFile
	if err := json.NewDecoder(r).Decode(&cf); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(cf.ExamTypes) == 0 {
		return nil, errors.New("catalog declares no exam types")
	}
	out := make(map[ExamType][]Question, len(cf.ExamTypes))
	for t, raws := range cf.Questions {
		qs := make([]Question, 0, len(raws))
		for i, rq := range raws {
			q, err := NewQuestion(rq.ID, rq.Category, rq.Question, rq.Options, rq.CorrectAnswer, rq.Explanation)
			if err != nil {
				return nil, fmt.Errorf("exam type %q question %d: %w", t, i+1, err)
			}
			qs = append(qs, q)
		}
		out[t] = qs
	}
	return New(cf.ExamTypes, out)
}

func LoadFile(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadJSON(f)
}

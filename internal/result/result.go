package result

import (
	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/progress"
	"github.com/mind-engage/quizpractice/internal/quiz"
)

type Grade string

const (
	GradeExcellent Grade = "우수"
	GradeGood      Grade = "양호"
	GradeFair      Grade = "보통"
	GradePoor      Grade = "미흡"
)

// GradeFor maps a percentage onto the four bands: 90, 70 and 60 are the
// inclusive lower bounds.
func GradeFor(percentage int) Grade {
	switch {
	case percentage >= 90:
		return GradeExcellent
	case percentage >= 70:
		return GradeGood
	case percentage >= 60:
		return GradeFair
	default:
		return GradePoor
	}
}

type Summary struct {
	ExamType         bank.ExamType       `json:"examType"`
	Score            int                 `json:"score"`
	Total            int                 `json:"total"`
	Wrong            int                 `json:"wrong"`
	Percentage       int                 `json:"percentage"`
	Grade            Grade               `json:"grade"`
	WrongQuestionIDs []int               `json:"wrongQuestionIds"`
	Statistics       progress.Statistics `json:"statistics"`
}

func Summarize(t bank.ExamType, score, total int, wrongIDs []int, stats progress.Statistics) Summary {
	p := progress.Percentage(score, total)
	wrong := total - score
	if wrong < 0 {
		wrong = 0
	}
	ids := append([]int{}, wrongIDs...)
	return Summary{
		ExamType:         t,
		Score:            score,
		Total:            total,
		Wrong:            wrong,
		Percentage:       p,
		Grade:            GradeFor(p),
		WrongQuestionIDs: ids,
		Statistics:       stats,
	}
}

// ForCompletion summarizes a finished session run.
func ForCompletion(c quiz.Completion, stats progress.Statistics) Summary {
	return Summarize(c.ExamType, c.Score, c.Total, c.WrongQuestionIDs, stats)
}

// WrongQuestions resolves IDs against the exam's questions, keeping bank
// order. Unknown IDs are skipped.
func WrongQuestions(questions []bank.Question, ids []int) []bank.Question {
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []bank.Question
	for _, q := range questions {
		if _, ok := want[q.ID]; ok {
			out = append(out, q)
		}
	}
	return out
}

package service

import (
	"math"

	"github.com/st3v1n/SchoolManager/internal/model"
)

// ComputeScore grades a set of stored answers against the exam definition.
//
//	score = correct * total_marks / student_question_limit
//
// rounded to two decimal places. The divisor is the exam's configured limit,
// not the assigned-question count; that is how the grading scheme is defined,
// so a pool-shrink edge case where the two differ does not change the
// formula. A zero limit fails with ErrDivisionMisconfigured instead of
// dividing by zero.
func ComputeScore(exam *model.Exam, answers []model.Answer) (float64, error) {
	if exam.StudentQuestionLimit == 0 {
		return 0, ErrDivisionMisconfigured
	}

	correct := 0
	for i := range answers {
		q := exam.QuestionByID(answers[i].QuestionID)
		if q == nil {
			continue
		}
		opt := q.OptionByID(answers[i].SelectedOptionID)
		if opt != nil && opt.IsCorrect {
			correct++
		}
	}

	score := float64(correct) * float64(exam.TotalMarks) / float64(exam.StudentQuestionLimit)
	return round2(score), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

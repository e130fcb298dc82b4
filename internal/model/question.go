package model

import "github.com/google/uuid"

// QuestionType enumerates the supported question kinds. Only option-bearing
// types participate in automatic scoring.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeFillBlank      QuestionType = "fill_blank"
	QuestionTypeEssay          QuestionType = "essay"
)

// Question represents a single exam question with its options.
type Question struct {
	ID           uuid.UUID    `json:"id"`
	ExamID       uuid.UUID    `json:"exam_id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Marks        int          `json:"marks"`
	Options      []Option     `json:"options,omitempty"`
}

// Option is one selectable answer belonging to exactly one question.
type Option struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	OptionText string    `json:"option_text"`
	IsCorrect  bool      `json:"-"`
}

// HasOption reports whether the given option belongs to this question.
func (q *Question) HasOption(optionID uuid.UUID) bool {
	for i := range q.Options {
		if q.Options[i].ID == optionID {
			return true
		}
	}
	return false
}

// OptionByID returns the question's option with the given ID, or nil.
func (q *Question) OptionByID(optionID uuid.UUID) *Option {
	for i := range q.Options {
		if q.Options[i].ID == optionID {
			return &q.Options[i]
		}
	}
	return nil
}

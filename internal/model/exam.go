package model

import (
	"time"

	"github.com/google/uuid"
)

// PaperType classifies an exam paper.
type PaperType string

const (
	PaperTypeTest       PaperType = "test"
	PaperTypePractice   PaperType = "practice"
	PaperTypeAssignment PaperType = "assignment"
	PaperTypeExam       PaperType = "exam"
)

// Exam represents a timed assessment paper. From an attempt's point of view
// the definition is immutable: pool, limit, duration and marks are read once
// at attempt creation and again at scoring, never changed in between.
type Exam struct {
	ID                   uuid.UUID      `json:"id"`
	Title                string         `json:"title"`
	Subject              string         `json:"subject"`
	GradeLevel           string         `json:"grade_level"`
	PaperType            PaperType      `json:"paper_type"`
	Instructions         string         `json:"instructions"`
	WindowStart          *time.Time     `json:"window_start,omitempty"`
	WindowEnd            *time.Time     `json:"window_end,omitempty"`
	Duration             *time.Duration `json:"duration_seconds,omitempty"`
	StudentQuestionLimit int            `json:"student_question_limit"`
	TotalMarks           int            `json:"total_marks"`
	ShuffleOptions       bool           `json:"shuffle_options"`
	IsActive             bool           `json:"is_active"`
	CreatedAt            time.Time      `json:"created_at"`

	// Questions is the full question pool, populated by eager fetches only.
	Questions []Question `json:"questions,omitempty"`
}

// QuestionPoolIDs returns the IDs of the exam's question pool.
func (e *Exam) QuestionPoolIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(e.Questions))
	for i := range e.Questions {
		ids[i] = e.Questions[i].ID
	}
	return ids
}

// QuestionByID looks up a pool question by ID. Returns nil when the ID is
// not part of the pool.
func (e *Exam) QuestionByID(id uuid.UUID) *Question {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i]
		}
	}
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is one student's single session against one exam. At most one row
// ever exists per (exam, student); re-access always resolves to the same row.
// Once SubmittedAt is set the attempt is terminal and never mutated again.
type Attempt struct {
	ID                uuid.UUID   `json:"id"`
	ExamID            uuid.UUID   `json:"exam_id"`
	StudentID         int         `json:"student_id"`
	AssignedQuestions []uuid.UUID `json:"assigned_questions"`
	StartTime         time.Time   `json:"start_time"`
	LastActivity      time.Time   `json:"last_activity"`
	SubmittedAt       *time.Time  `json:"submitted_at,omitempty"`
	Score             *float64    `json:"score,omitempty"`
	MaxScore          *float64    `json:"max_score,omitempty"`
}

// Finalized reports whether the attempt has reached its terminal state.
func (a *Attempt) Finalized() bool {
	return a.SubmittedAt != nil
}

// IsAssigned reports whether the question is part of the attempt's fixed
// assigned set.
func (a *Attempt) IsAssigned(questionID uuid.UUID) bool {
	for _, id := range a.AssignedQuestions {
		if id == questionID {
			return true
		}
	}
	return false
}

// Answer records the option a student selected for one assigned question.
// Unique per (attempt, question); the selected option must belong to the
// referenced question.
type Answer struct {
	ID               uuid.UUID `json:"id"`
	AttemptID        uuid.UUID `json:"attempt_id"`
	QuestionID       uuid.UUID `json:"question_id"`
	SelectedOptionID uuid.UUID `json:"selected_option_id"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SubmitRequest is the JSON body of a submission call. The autosave flag
// travels as a query parameter, not in the body.
type SubmitRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}

// AttemptView is the state returned to the exam-taking client on start or
// resume. Correct answers are never included.
type AttemptView struct {
	AttemptID        uuid.UUID   `json:"attempt_id"`
	ExamID           uuid.UUID   `json:"exam_id"`
	ExamTitle        string      `json:"exam_title"`
	Instructions     string      `json:"instructions"`
	Questions        []Question  `json:"questions"`
	SavedAnswers     map[string]string `json:"saved_answers"`
	RemainingSeconds int64       `json:"remaining_seconds"`
	DurationSeconds  int64       `json:"duration_seconds"`
	StartTime        string      `json:"start_time"`
	Finalized        bool        `json:"finalized"`
	Score            *float64    `json:"score,omitempty"`
}

// ResultView is the read-only review of a finalized attempt.
type ResultView struct {
	AttemptID      uuid.UUID       `json:"attempt_id"`
	ExamID         uuid.UUID       `json:"exam_id"`
	ExamTitle      string          `json:"exam_title"`
	Score          float64         `json:"score"`
	MaxScore       float64         `json:"max_score"`
	Percentage     float64         `json:"percentage"`
	CorrectCount   int             `json:"correct_count"`
	TotalQuestions int             `json:"total_questions"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	SelectedByQ    map[string]string `json:"selected_options"`
	CorrectByQ     map[string]bool `json:"per_question_correctness"`
}

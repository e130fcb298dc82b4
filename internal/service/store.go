package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/st3v1n/SchoolManager/internal/model"
)

// AnswerPair is one validated (question, option) submission entry.
type AnswerPair struct {
	QuestionID uuid.UUID
	OptionID   uuid.UUID
}

// ScoreFunc computes (score, maxScore) for the answer rows as they exist
// inside the finalize transaction, after any batch upsert. Running it there
// pins the frozen score to exactly the committed answer set.
type ScoreFunc func(answers []model.Answer) (score, maxScore float64, err error)

// ResultSummary is one row of the finalized-results listing.
type ResultSummary struct {
	AttemptID   uuid.UUID `json:"attempt_id"`
	ExamID      uuid.UUID `json:"exam_id"`
	ExamTitle   string    `json:"exam_title"`
	Subject     string    `json:"subject"`
	PaperType   string    `json:"paper_type"`
	Score       float64   `json:"score"`
	MaxScore    float64   `json:"max_score"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// AttemptStore is the persistence and locking contract for attempts and
// their answers. Every multi-step operation runs under a transaction that
// serializes concurrent writers to the same attempt (row lock), so an
// autosave and a final submit can never interleave into a half-applied
// state.
type AttemptStore interface {
	// GetOrNil returns the attempt for (exam, student), or nil when none
	// exists. Absence is not an error.
	GetOrNil(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error)

	// GetByID returns the attempt with the given ID, or nil when absent.
	GetByID(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error)

	// Create inserts a new attempt. The existence check and insert are one
	// atomic statement; a concurrent duplicate create fails with ErrConflict.
	Create(ctx context.Context, a *model.Attempt) error

	// ListAnswers returns all answer rows for the attempt.
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)

	// UpsertAnswers applies an autosave batch: create-if-absent,
	// overwrite-if-present per (attempt, question), and bumps last_activity,
	// all in one transaction holding the attempt row lock. Fails with
	// ErrAlreadyFinalized if submitted_at is set.
	UpsertAnswers(ctx context.Context, attemptID uuid.UUID, pairs []AnswerPair, now time.Time) error

	// Finalize seals the attempt: under the attempt row lock it upserts the
	// given pairs (may be empty), computes the score from the post-upsert
	// answer rows via score, and sets score/max_score/submitted_at in the
	// same transaction. Fails with ErrAlreadyFinalized if submitted_at is
	// already set; submitted_at is write-once.
	Finalize(ctx context.Context, attemptID uuid.UUID, pairs []AnswerPair, submittedAt time.Time, score ScoreFunc) (float64, float64, error)

	// TouchActivity bumps last_activity for a live attempt. Fails with
	// ErrAlreadyFinalized on a finalized attempt.
	TouchActivity(ctx context.Context, attemptID uuid.UUID, now time.Time) error

	// ListByStudent returns all attempts of a student, newest first.
	ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error)

	// ListFinalized returns the student's finalized attempts newest-submitted
	// first, optionally filtered by subject/title search, with the total row
	// count for pagination.
	ListFinalized(ctx context.Context, studentID, page, perPage int, search string) ([]ResultSummary, int64, error)
}

// ExamStore is the read boundary to the authoring subsystem. Fetches are
// eager: one call returns the exam with its full question pool and options.
type ExamStore interface {
	GetWithQuestions(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	ListActiveByGrade(ctx context.Context, gradeLevel string) ([]model.Exam, error)
}

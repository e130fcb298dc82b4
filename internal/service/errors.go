package service

import "errors"

// Domain errors surfaced by the attempt lifecycle. Handlers translate these
// into response codes; nothing below is ever swallowed silently.
var (
	// ErrOutsideWindow means the exam's availability window does not cover
	// the server's current time.
	ErrOutsideWindow = errors.New("exam is not available at this time")

	// ErrNoDurationConfigured means the exam has no elapsed-time budget set,
	// so an attempt cannot be time-boxed.
	ErrNoDurationConfigured = errors.New("exam has no duration set")

	// ErrInsufficientQuestions means the question pool is smaller than the
	// per-student limit. Attempt creation is rejected rather than truncated.
	ErrInsufficientQuestions = errors.New("not enough questions in the paper")

	// ErrConflict means an attempt row already exists for the (exam, student)
	// pair. Safe to retry once: the retry observes the existing attempt.
	ErrConflict = errors.New("attempt already exists")

	// ErrNotFound covers missing attempts and attempts owned by a different
	// student. Ownership failures are indistinguishable from absence.
	ErrNotFound = errors.New("attempt not found")

	// ErrAlreadyFinalized means submitted_at is already set. Finalization is
	// terminal; no write may follow it.
	ErrAlreadyFinalized = errors.New("attempt already finalized")

	// ErrNotSubmitted means results were requested before finalization.
	ErrNotSubmitted = errors.New("attempt not submitted yet")

	// ErrInvalidQuestion means a submitted answer references a question
	// outside the attempt's assigned set. The whole batch is rejected.
	ErrInvalidQuestion = errors.New("question is not in the assigned set")

	// ErrInvalidOption means a submitted option does not belong to the
	// question it was paired with. The whole batch is rejected.
	ErrInvalidOption = errors.New("option does not belong to question")

	// ErrDivisionMisconfigured means the exam's student_question_limit is
	// zero, so the scoring formula cannot be applied.
	ErrDivisionMisconfigured = errors.New("exam student question limit is zero")
)

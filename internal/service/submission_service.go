package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/st3v1n/SchoolManager/internal/config"
	"github.com/st3v1n/SchoolManager/internal/model"
)

// SubmitStatus is the outcome of a submission call.
type SubmitStatus string

const (
	StatusAutosaved SubmitStatus = "autosaved"
	StatusSubmitted SubmitStatus = "success"
	StatusTimeout   SubmitStatus = "timeout"
)

// SubmitResult is returned to the submission endpoint.
type SubmitResult struct {
	Status      SubmitStatus `json:"status"`
	Score       *float64     `json:"score,omitempty"`
	Message     string       `json:"message,omitempty"`
	RedirectURL string       `json:"redirect_url,omitempty"`
}

// SubmissionService validates and applies answer batches. Autosave and final
// submit go through the same security and referential checks; there is no
// relaxed path.
type SubmissionService struct {
	attempts AttemptStore
	exams    ExamStore
	rdb      *redis.Client
	log      zerolog.Logger
	now      func() time.Time
}

// NewSubmissionService creates a new SubmissionService. rdb may be nil.
func NewSubmissionService(attempts AttemptStore, exams ExamStore, rdb *redis.Client, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		attempts: attempts,
		exams:    exams,
		rdb:      rdb,
		log:      log.With().Str("component", "submission_service").Logger(),
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *SubmissionService) WithClock(now func() time.Time) *SubmissionService {
	s.now = now
	return s
}

// Submit applies an answer batch to a live attempt. Autosave persists the
// batch and bumps last_activity; a final submit additionally scores and
// seals the attempt in the same transaction as the upsert. A final submit
// that arrives after expiry loses the race to the deadline: the attempt is
// sealed from previously saved answers and the incoming batch is dropped.
func (s *SubmissionService) Submit(ctx context.Context, attemptID uuid.UUID, studentID int, answers map[uuid.UUID]uuid.UUID, autosave bool) (*SubmitResult, error) {
	now := s.now()

	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt == nil || attempt.StudentID != studentID {
		return nil, ErrNotFound
	}
	if attempt.Finalized() {
		return nil, ErrAlreadyFinalized
	}

	exam, err := s.exams.GetWithQuestions(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam == nil {
		return nil, ErrNotFound
	}

	if !autosave && exam.Duration != nil && IsExpired(now, attempt.StartTime, *exam.Duration) {
		return s.sealExpired(ctx, exam, attempt, now)
	}

	// Security check: every answered question must be in the assigned set.
	// Referential check: every option must belong to its question. Both are
	// all-or-nothing; an invalid batch writes nothing.
	pairs := make([]AnswerPair, 0, len(answers))
	for qid, oid := range answers {
		if !attempt.IsAssigned(qid) {
			s.log.Warn().
				Str("attempt_id", attemptID.String()).
				Str("question_id", qid.String()).
				Int("student_id", studentID).
				Msg("answer for unassigned question rejected")
			return nil, ErrInvalidQuestion
		}
		q := exam.QuestionByID(qid)
		if q == nil || !q.HasOption(oid) {
			return nil, ErrInvalidOption
		}
		pairs = append(pairs, AnswerPair{QuestionID: qid, OptionID: oid})
	}

	if autosave {
		if len(pairs) == 0 {
			// Nothing to validate or write; still counts as activity.
			if err := s.attempts.TouchActivity(ctx, attemptID, now); err != nil {
				return nil, err
			}
			return &SubmitResult{Status: StatusAutosaved}, nil
		}
		if err := s.attempts.UpsertAnswers(ctx, attemptID, pairs, now); err != nil {
			return nil, err
		}
		return &SubmitResult{Status: StatusAutosaved}, nil
	}

	score, _, err := s.attempts.Finalize(ctx, attemptID, pairs, now, s.scoreFunc(exam))
	if err != nil {
		return nil, err
	}

	s.invalidateTimer(ctx, attempt)

	return &SubmitResult{
		Status:      StatusSubmitted,
		Score:       &score,
		RedirectURL: resultsURL(attemptID),
	}, nil
}

// sealExpired finalizes an attempt whose deadline passed before the final
// submit arrived. The score comes from answers already saved; the submission
// that triggered the seal is not applied.
func (s *SubmissionService) sealExpired(ctx context.Context, exam *model.Exam, attempt *model.Attempt, now time.Time) (*SubmitResult, error) {
	score, _, err := s.attempts.Finalize(ctx, attempt.ID, nil, now, s.scoreFunc(exam))
	if err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			return nil, ErrAlreadyFinalized
		}
		return nil, fmt.Errorf("finalize expired attempt: %w", err)
	}

	s.invalidateTimer(ctx, attempt)
	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Float64("score", score).
		Msg("final submit after deadline, sealed without applying batch")

	return &SubmitResult{
		Status:      StatusTimeout,
		Score:       &score,
		Message:     "Time expired",
		RedirectURL: resultsURL(attempt.ID),
	}, nil
}

func (s *SubmissionService) scoreFunc(exam *model.Exam) ScoreFunc {
	return func(answers []model.Answer) (float64, float64, error) {
		score, err := ComputeScore(exam, answers)
		if err != nil {
			return 0, 0, err
		}
		return score, float64(exam.TotalMarks), nil
	}
}

// invalidateTimer drops the Redis countdown keys once an attempt is sealed.
func (s *SubmissionService) invalidateTimer(ctx context.Context, attempt *model.Attempt) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, config.CacheKey.AttemptStartKey(attempt.ID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Msg("failed to drop attempt timer key")
	}
}

func resultsURL(attemptID uuid.UUID) string {
	return fmt.Sprintf("/exam/results/%s/", attemptID)
}

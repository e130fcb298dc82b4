package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/st3v1n/SchoolManager/internal/config"
	"github.com/st3v1n/SchoolManager/internal/model"
)

// AttemptService orchestrates attempt creation, resumption and read models.
// It owns the one-attempt invariant and the lazy expiry finalize: an expired
// attempt is detected and sealed on the next access, not by a timer.
type AttemptService struct {
	attempts AttemptStore
	exams    ExamStore
	sampler  *Sampler
	rdb      *redis.Client
	log      zerolog.Logger
	now      func() time.Time
}

// NewAttemptService creates a new AttemptService. rdb may be nil (tests);
// the cache is an optimization, PostgreSQL stays the source of truth.
func NewAttemptService(attempts AttemptStore, exams ExamStore, sampler *Sampler, rdb *redis.Client, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		attempts: attempts,
		exams:    exams,
		sampler:  sampler,
		rdb:      rdb,
		log:      log.With().Str("component", "attempt_service").Logger(),
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.now = now
	return s
}

// StartOrResume returns the student's attempt for the exam, creating it on
// first eligible access. Re-access always resolves to the same attempt row;
// a finalized or just-expired attempt comes back as a terminal view.
func (s *AttemptService) StartOrResume(ctx context.Context, examID uuid.UUID, studentID int) (*model.AttemptView, error) {
	now := s.now()

	exam, err := s.exams.GetWithQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam == nil {
		return nil, ErrNotFound
	}

	attempt, err := s.attempts.GetOrNil(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	if attempt != nil {
		return s.resume(ctx, exam, attempt, now)
	}

	// First access: eligibility checks precede the atomic create.
	if !InWindow(now, exam.WindowStart, exam.WindowEnd) {
		return nil, ErrOutsideWindow
	}
	if exam.Duration == nil {
		return nil, ErrNoDurationConfigured
	}

	assigned, err := s.sampler.Select(exam.QuestionPoolIDs(), exam.StudentQuestionLimit)
	if err != nil {
		return nil, err
	}

	attempt = &model.Attempt{
		ExamID:            examID,
		StudentID:         studentID,
		AssignedQuestions: assigned,
		StartTime:         now,
		LastActivity:      now,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, ErrConflict) {
			// Two near-simultaneous first accesses raced; the loser adopts
			// the row the winner created.
			existing, fetchErr := s.attempts.GetOrNil(ctx, examID, studentID)
			if fetchErr != nil || existing == nil {
				return nil, fmt.Errorf("concurrent create detected, refetch failed: %w", fetchErr)
			}
			return s.resume(ctx, exam, existing, now)
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.cacheTimer(ctx, exam, attempt)

	return s.liveView(ctx, exam, attempt, now)
}

// resume handles an existing attempt: terminal passthrough, lazy expiry
// finalize, or live continuation.
func (s *AttemptService) resume(ctx context.Context, exam *model.Exam, attempt *model.Attempt, now time.Time) (*model.AttemptView, error) {
	if attempt.Finalized() {
		return s.terminalView(exam, attempt), nil
	}

	if exam.Duration == nil {
		return nil, ErrNoDurationConfigured
	}

	if IsExpired(now, attempt.StartTime, *exam.Duration) {
		score, maxScore, err := s.attempts.Finalize(ctx, attempt.ID, nil, now, s.scoreFunc(exam))
		if err != nil {
			if !errors.Is(err, ErrAlreadyFinalized) {
				return nil, fmt.Errorf("finalize expired attempt: %w", err)
			}
			// A concurrent request sealed the attempt between our read and
			// the finalize. The stored row carries the real frozen score;
			// serve that, not our zero returns.
			sealed, fetchErr := s.attempts.GetByID(ctx, attempt.ID)
			if fetchErr != nil || sealed == nil {
				return nil, fmt.Errorf("refetch sealed attempt: %w", fetchErr)
			}
			return s.terminalView(exam, sealed), nil
		}
		s.log.Info().
			Str("attempt_id", attempt.ID.String()).
			Float64("score", score).
			Msg("attempt expired, sealed on access")
		attempt.SubmittedAt = &now
		attempt.Score = &score
		attempt.MaxScore = &maxScore
		return s.terminalView(exam, attempt), nil
	}

	s.cacheTimer(ctx, exam, attempt)

	return s.liveView(ctx, exam, attempt, now)
}

// scoreFunc binds the scoring engine to an exam definition for use inside
// the store's finalize transaction.
func (s *AttemptService) scoreFunc(exam *model.Exam) ScoreFunc {
	return func(answers []model.Answer) (float64, float64, error) {
		score, err := ComputeScore(exam, answers)
		if err != nil {
			return 0, 0, err
		}
		return score, float64(exam.TotalMarks), nil
	}
}

func (s *AttemptService) liveView(ctx context.Context, exam *model.Exam, attempt *model.Attempt, now time.Time) (*model.AttemptView, error) {
	answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	saved := make(map[string]string, len(answers))
	for i := range answers {
		saved[answers[i].QuestionID.String()] = answers[i].SelectedOptionID.String()
	}

	view := &model.AttemptView{
		AttemptID:        attempt.ID,
		ExamID:           exam.ID,
		ExamTitle:        exam.Title,
		Instructions:     exam.Instructions,
		Questions:        s.assignedQuestions(exam, attempt),
		SavedAnswers:     saved,
		RemainingSeconds: int64(Remaining(now, attempt.StartTime, *exam.Duration).Seconds()),
		DurationSeconds:  int64(exam.Duration.Seconds()),
		StartTime:        attempt.StartTime.UTC().Format(time.RFC3339),
	}
	return view, nil
}

func (s *AttemptService) terminalView(exam *model.Exam, attempt *model.Attempt) *model.AttemptView {
	view := &model.AttemptView{
		AttemptID: attempt.ID,
		ExamID:    exam.ID,
		ExamTitle: exam.Title,
		Finalized: true,
		Score:     attempt.Score,
	}
	if attempt.SubmittedAt != nil {
		view.StartTime = attempt.StartTime.UTC().Format(time.RFC3339)
	}
	return view
}

// assignedQuestions resolves the attempt's fixed assigned set against the
// exam pool, stripping correctness and shuffling option order when the exam
// asks for it. Presentation only; the stored assignment never changes.
func (s *AttemptService) assignedQuestions(exam *model.Exam, attempt *model.Attempt) []model.Question {
	out := make([]model.Question, 0, len(attempt.AssignedQuestions))
	for _, qid := range attempt.AssignedQuestions {
		q := exam.QuestionByID(qid)
		if q == nil {
			// Pool shrank under a live attempt. The assignment is immutable,
			// so surface the gap in logs rather than resampling.
			s.log.Warn().
				Str("question_id", qid.String()).
				Str("exam_id", exam.ID.String()).
				Msg("assigned question missing from pool")
			continue
		}
		copied := *q
		copied.Options = make([]model.Option, len(q.Options))
		copy(copied.Options, q.Options)
		if exam.ShuffleOptions {
			s.sampler.Shuffle(len(copied.Options), func(i, j int) {
				copied.Options[i], copied.Options[j] = copied.Options[j], copied.Options[i]
			})
		}
		out = append(out, copied)
	}
	return out
}

// cacheTimer stores the attempt start time and exam duration in Redis so
// remaining-time reads skip PostgreSQL. Failures are logged, never fatal.
func (s *AttemptService) cacheTimer(ctx context.Context, exam *model.Exam, attempt *model.Attempt) {
	if s.rdb == nil || exam.Duration == nil {
		return
	}
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AttemptStartKey(attempt.ID.String()), attempt.StartTime.Unix(), 0)
	pipe.Set(ctx, config.CacheKey.ExamDurationKey(exam.ID.String()), int64(exam.Duration.Seconds()), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache attempt timer")
	}
}

// Heartbeat validates ownership and liveness, then queues a last_activity
// bump. With Redis present the bump goes through the activity queue and is
// flushed by the background worker; otherwise it is written directly.
func (s *AttemptService) Heartbeat(ctx context.Context, attemptID uuid.UUID, studentID int) error {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("get attempt: %w", err)
	}
	if attempt == nil || attempt.StudentID != studentID {
		return ErrNotFound
	}
	if attempt.Finalized() {
		return ErrNotFound
	}

	now := s.now()
	if s.rdb != nil {
		payload, _ := json.Marshal(activityPing{AttemptID: attemptID.String(), At: now.Unix()})
		if err := s.rdb.RPush(ctx, config.WorkerKey.ActivityQueue, payload).Err(); err == nil {
			return nil
		}
		// Queue unavailable, fall through to the direct write.
	}
	if err := s.attempts.TouchActivity(ctx, attemptID, now); err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			return ErrNotFound
		}
		return fmt.Errorf("touch activity: %w", err)
	}
	return nil
}

// activityPing is the queue payload consumed by the activity worker.
type activityPing struct {
	AttemptID string `json:"attempt_id"`
	At        int64  `json:"at"`
}

// Results builds the read-only review of a finalized attempt: score, and a
// per-question correctness map over the assigned set (unanswered counts as
// incorrect). Requires submitted_at set.
func (s *AttemptService) Results(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.ResultView, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt == nil || attempt.StudentID != studentID {
		return nil, ErrNotFound
	}
	if !attempt.Finalized() {
		return nil, ErrNotSubmitted
	}

	if view := s.cachedResult(ctx, attemptID); view != nil {
		return view, nil
	}

	exam, err := s.exams.GetWithQuestions(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam == nil {
		return nil, ErrNotFound
	}
	answers, err := s.attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	selected := make(map[string]string, len(answers))
	for i := range answers {
		selected[answers[i].QuestionID.String()] = answers[i].SelectedOptionID.String()
	}

	correctByQ := make(map[string]bool, len(attempt.AssignedQuestions))
	correctCount := 0
	for _, qid := range attempt.AssignedQuestions {
		correct := false
		if optID, ok := selected[qid.String()]; ok {
			if q := exam.QuestionByID(qid); q != nil {
				parsed, parseErr := uuid.Parse(optID)
				if parseErr == nil {
					if opt := q.OptionByID(parsed); opt != nil && opt.IsCorrect {
						correct = true
					}
				}
			}
		}
		correctByQ[qid.String()] = correct
		if correct {
			correctCount++
		}
	}

	var score, maxScore float64
	if attempt.Score != nil {
		score = *attempt.Score
	}
	if attempt.MaxScore != nil {
		maxScore = *attempt.MaxScore
	}
	percentage := 0.0
	if maxScore > 0 {
		percentage = round2(score / maxScore * 100)
	}

	view := &model.ResultView{
		AttemptID:      attempt.ID,
		ExamID:         exam.ID,
		ExamTitle:      exam.Title,
		Score:          score,
		MaxScore:       maxScore,
		Percentage:     percentage,
		CorrectCount:   correctCount,
		TotalQuestions: len(attempt.AssignedQuestions),
		SubmittedAt:    *attempt.SubmittedAt,
		SelectedByQ:    selected,
		CorrectByQ:     correctByQ,
	}

	s.cacheResult(ctx, view)

	return view, nil
}

// ListResults returns the student's finalized attempts, paginated, newest
// submitted first, with optional subject/title search.
func (s *AttemptService) ListResults(ctx context.Context, studentID, page, perPage int, search string) ([]ResultSummary, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 15
	}
	return s.attempts.ListFinalized(ctx, studentID, page, perPage, search)
}

// cachedResult returns a previously cached result view, or nil on miss or
// any cache error. Finalized attempts are immutable so the cache never goes
// stale.
func (s *AttemptService) cachedResult(ctx context.Context, attemptID uuid.UUID) *model.ResultView {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, config.CacheKey.AttemptResultKey(attemptID.String())).Result()
	if err != nil {
		return nil
	}
	var view model.ResultView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return nil
	}
	return &view
}

func (s *AttemptService) cacheResult(ctx context.Context, view *model.ResultView) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, config.CacheKey.AttemptResultKey(view.AttemptID.String()), raw, 24*time.Hour).Err(); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache result view")
	}
}

// RemainingSeconds resolves the attempt's remaining time from the Redis
// timer cache, falling back to PostgreSQL and self-healing the cache on a
// miss. Backs the frontend countdown refresh.
func (s *AttemptService) RemainingSeconds(ctx context.Context, attemptID uuid.UUID, studentID int) (int64, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return 0, fmt.Errorf("get attempt: %w", err)
	}
	if attempt == nil || attempt.StudentID != studentID {
		return 0, ErrNotFound
	}
	if attempt.Finalized() {
		return 0, nil
	}

	now := s.now()

	if s.rdb != nil {
		startRaw, err1 := s.rdb.Get(ctx, config.CacheKey.AttemptStartKey(attemptID.String())).Result()
		durRaw, err2 := s.rdb.Get(ctx, config.CacheKey.ExamDurationKey(attempt.ExamID.String())).Result()
		if err1 == nil && err2 == nil {
			startUnix, pErr1 := strconv.ParseInt(startRaw, 10, 64)
			durSecs, pErr2 := strconv.ParseInt(durRaw, 10, 64)
			if pErr1 == nil && pErr2 == nil {
				return int64(Remaining(now, time.Unix(startUnix, 0), time.Duration(durSecs)*time.Second).Seconds()), nil
			}
		}
	}

	exam, err := s.exams.GetWithQuestions(ctx, attempt.ExamID)
	if err != nil {
		return 0, fmt.Errorf("get exam: %w", err)
	}
	if exam == nil {
		return 0, ErrNotFound
	}
	if exam.Duration == nil {
		return 0, ErrNoDurationConfigured
	}

	s.cacheTimer(ctx, exam, attempt)

	return int64(Remaining(now, attempt.StartTime, *exam.Duration).Seconds()), nil
}

package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/st3v1n/SchoolManager/internal/model"
)

type attemptFixture struct {
	attempts *fakeAttemptStore
	exams    *fakeExamStore
	svc      *AttemptService
	clock    *fakeClock
}

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()
	attempts := newFakeAttemptStore()
	exams := newFakeExamStore()
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := NewAttemptService(attempts, exams, NewSampler(rand.NewSource(1)), nil, zerolog.Nop()).
		WithClock(clock.now)
	return &attemptFixture{attempts: attempts, exams: exams, svc: svc, clock: clock}
}

func TestStartOrResumeCreatesAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)

	view, err := f.svc.StartOrResume(context.Background(), exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if view.Finalized {
		t.Error("new attempt reported as finalized")
	}
	if len(view.Questions) != 2 {
		t.Fatalf("assigned %d questions, want 2", len(view.Questions))
	}
	if view.RemainingSeconds != 1800 {
		t.Errorf("RemainingSeconds = %d, want 1800", view.RemainingSeconds)
	}
	for _, q := range view.Questions {
		if exam.QuestionByID(q.ID) == nil {
			t.Errorf("assigned question %s not in exam pool", q.ID)
		}
	}

	stored, err := f.attempts.GetByID(context.Background(), view.AttemptID)
	if err != nil || stored == nil {
		t.Fatalf("stored attempt not found: %v", err)
	}
	if !stored.StartTime.Equal(f.clock.current) {
		t.Errorf("StartTime = %v, want %v", stored.StartTime, f.clock.current)
	}
}

func TestStartOrResumeReturnsSameAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)
	ctx := context.Background()

	first, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("first StartOrResume() error = %v", err)
	}

	f.clock.advance(5 * time.Minute)

	second, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("second StartOrResume() error = %v", err)
	}
	if second.AttemptID != first.AttemptID {
		t.Fatalf("resume created a new attempt: %s then %s", first.AttemptID, second.AttemptID)
	}
	if second.RemainingSeconds != 1500 {
		t.Errorf("RemainingSeconds after 5m = %d, want 1500", second.RemainingSeconds)
	}

	// The assigned set is fixed at creation; resume must serve the same
	// questions in the same order.
	if len(second.Questions) != len(first.Questions) {
		t.Fatalf("assigned set size changed: %d then %d", len(first.Questions), len(second.Questions))
	}
	for i := range first.Questions {
		if first.Questions[i].ID != second.Questions[i].ID {
			t.Errorf("assigned question %d changed: %s then %s", i, first.Questions[i].ID, second.Questions[i].ID)
		}
	}
}

func TestStartOrResumeDistinctStudentsGetDistinctAttempts(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)
	ctx := context.Background()

	a, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	b, err := f.svc.StartOrResume(ctx, exam.ID, 102)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if a.AttemptID == b.AttemptID {
		t.Error("two students share one attempt")
	}
}

func TestStartOrResumeOutsideWindow(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	start := f.clock.current.Add(time.Hour)
	exam.WindowStart = &start
	f.exams.put(exam)

	_, err := f.svc.StartOrResume(context.Background(), exam.ID, 101)
	if !errors.Is(err, ErrOutsideWindow) {
		t.Fatalf("StartOrResume() error = %v, want ErrOutsideWindow", err)
	}
}

func TestStartOrResumeNoDuration(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	exam.Duration = nil
	f.exams.put(exam)

	_, err := f.svc.StartOrResume(context.Background(), exam.ID, 101)
	if !errors.Is(err, ErrNoDurationConfigured) {
		t.Fatalf("StartOrResume() error = %v, want ErrNoDurationConfigured", err)
	}
}

func TestStartOrResumeInsufficientPool(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(5, 10, 30*time.Minute) // pool has only 3 questions
	f.exams.put(exam)

	_, err := f.svc.StartOrResume(context.Background(), exam.ID, 101)
	if !errors.Is(err, ErrInsufficientQuestions) {
		t.Fatalf("StartOrResume() error = %v, want ErrInsufficientQuestions", err)
	}
	if got, _ := f.attempts.GetOrNil(context.Background(), exam.ID, 101); got != nil {
		t.Error("attempt persisted despite insufficient pool")
	}
}

func TestStartOrResumeUnknownExam(t *testing.T) {
	f := newAttemptFixture(t)

	_, err := f.svc.StartOrResume(context.Background(), uuid.New(), 101)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("StartOrResume() error = %v, want ErrNotFound", err)
	}
}

func TestStartOrResumeConcurrentCreateAdoptsWinner(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)
	ctx := context.Background()

	// Winner's row exists before the loser's create runs, and the loser's
	// create hits the unique constraint.
	winner := &model.Attempt{
		ExamID:            exam.ID,
		StudentID:         101,
		AssignedQuestions: []uuid.UUID{exam.Questions[0].ID, exam.Questions[1].ID},
		StartTime:         f.clock.current,
		LastActivity:      f.clock.current,
	}
	if err := f.attempts.Create(ctx, winner); err != nil {
		t.Fatalf("seed create error = %v", err)
	}
	f.attempts.createErr = ErrConflict

	view, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if view.AttemptID != winner.ID {
		t.Fatalf("loser got attempt %s, want winner's %s", view.AttemptID, winner.ID)
	}
}

func TestStartOrResumeLazyExpiryFinalize(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)
	ctx := context.Background()

	first, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}

	// Save one correct answer while live, then run out the clock.
	var q *model.Question
	for i := range exam.Questions {
		if exam.Questions[i].ID == first.Questions[0].ID {
			q = &exam.Questions[i]
		}
	}
	pairs := []AnswerPair{{QuestionID: q.ID, OptionID: correctOption(q)}}
	if err := f.attempts.UpsertAnswers(ctx, first.AttemptID, pairs, f.clock.current); err != nil {
		t.Fatalf("UpsertAnswers() error = %v", err)
	}

	f.clock.advance(31 * time.Minute)

	view, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() after expiry error = %v", err)
	}
	if !view.Finalized {
		t.Fatal("expired attempt not reported finalized")
	}
	if view.Score == nil || *view.Score != 5 {
		t.Fatalf("sealed score = %v, want 5", view.Score)
	}

	stored, _ := f.attempts.GetByID(ctx, first.AttemptID)
	if stored.SubmittedAt == nil {
		t.Fatal("expired attempt not sealed in store")
	}
}

// staleReadStore serves one stale live snapshot from GetOrNil while the
// underlying row may already be sealed, reproducing a read racing a
// concurrent finalize.
type staleReadStore struct {
	*fakeAttemptStore
	stale *model.Attempt
}

func (s *staleReadStore) GetOrNil(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error) {
	if s.stale != nil {
		copied := *s.stale
		s.stale = nil
		return &copied, nil
	}
	return s.fakeAttemptStore.GetOrNil(ctx, examID, studentID)
}

func TestStartOrResumeExpirySealRaceServesStoredScore(t *testing.T) {
	attempts := newFakeAttemptStore()
	exams := newFakeExamStore()
	clock := &fakeClock{current: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	exam := buildExam(2, 10, 30*time.Minute)
	exams.put(exam)
	ctx := context.Background()

	live := &model.Attempt{
		ExamID:            exam.ID,
		StudentID:         101,
		AssignedQuestions: []uuid.UUID{exam.Questions[0].ID, exam.Questions[1].ID},
		StartTime:         clock.current,
		LastActivity:      clock.current,
	}
	if err := attempts.Create(ctx, live); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	snapshot := *live

	// A concurrent request seals the attempt with the real score after our
	// read but before our finalize.
	q0 := &exam.Questions[0]
	pairs := []AnswerPair{{QuestionID: q0.ID, OptionID: correctOption(q0)}}
	if _, _, err := attempts.Finalize(ctx, live.ID, pairs, clock.current.Add(29*time.Minute), func(answers []model.Answer) (float64, float64, error) {
		s, err := ComputeScore(exam, answers)
		return s, float64(exam.TotalMarks), err
	}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	store := &staleReadStore{fakeAttemptStore: attempts, stale: &snapshot}
	svc := NewAttemptService(store, exams, NewSampler(rand.NewSource(1)), nil, zerolog.Nop()).
		WithClock(clock.now)

	clock.advance(31 * time.Minute)

	view, err := svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if !view.Finalized {
		t.Fatal("raced attempt not reported finalized")
	}
	if view.Score == nil || *view.Score != 5 {
		t.Fatalf("terminal view score = %v, want stored 5", view.Score)
	}
}

func TestHeartbeat(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)
	ctx := context.Background()

	view, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}

	f.clock.advance(2 * time.Minute)
	if err := f.svc.Heartbeat(ctx, view.AttemptID, 101); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
	stored, _ := f.attempts.GetByID(ctx, view.AttemptID)
	if !stored.LastActivity.Equal(f.clock.current) {
		t.Errorf("LastActivity = %v, want %v", stored.LastActivity, f.clock.current)
	}

	if err := f.svc.Heartbeat(ctx, view.AttemptID, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Heartbeat() by non-owner error = %v, want ErrNotFound", err)
	}
	if err := f.svc.Heartbeat(ctx, uuid.New(), 101); !errors.Is(err, ErrNotFound) {
		t.Errorf("Heartbeat() for unknown attempt error = %v, want ErrNotFound", err)
	}

	if _, _, err := f.attempts.Finalize(ctx, view.AttemptID, nil, f.clock.current, func([]model.Answer) (float64, float64, error) {
		return 0, 10, nil
	}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if err := f.svc.Heartbeat(ctx, view.AttemptID, 101); !errors.Is(err, ErrNotFound) {
		t.Errorf("Heartbeat() on finalized attempt error = %v, want ErrNotFound", err)
	}
}

func TestResultsRequiresFinalizedAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)
	ctx := context.Background()

	view, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}

	if _, err := f.svc.Results(ctx, view.AttemptID, 101); !errors.Is(err, ErrNotSubmitted) {
		t.Fatalf("Results() on live attempt error = %v, want ErrNotSubmitted", err)
	}
}

func TestResultsPerQuestionCorrectness(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)
	ctx := context.Background()

	view, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}

	stored, _ := f.attempts.GetByID(ctx, view.AttemptID)
	answered := exam.QuestionByID(stored.AssignedQuestions[0])
	unanswered := stored.AssignedQuestions[1]

	pairs := []AnswerPair{{QuestionID: answered.ID, OptionID: correctOption(answered)}}
	score, _, err := f.attempts.Finalize(ctx, view.AttemptID, pairs, f.clock.current, func(answers []model.Answer) (float64, float64, error) {
		s, err := ComputeScore(exam, answers)
		return s, float64(exam.TotalMarks), err
	})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if score != 5 {
		t.Fatalf("Finalize() score = %v, want 5", score)
	}

	result, err := f.svc.Results(ctx, view.AttemptID, 101)
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if result.Score != 5 || result.MaxScore != 10 {
		t.Errorf("Results() score %v/%v, want 5/10", result.Score, result.MaxScore)
	}
	if result.Percentage != 50 {
		t.Errorf("Percentage = %v, want 50", result.Percentage)
	}
	if result.CorrectCount != 1 || result.TotalQuestions != 2 {
		t.Errorf("correctness counts %d/%d, want 1/2", result.CorrectCount, result.TotalQuestions)
	}
	if !result.CorrectByQ[answered.ID.String()] {
		t.Error("answered correct question flagged incorrect")
	}
	if result.CorrectByQ[unanswered.String()] {
		t.Error("unanswered question flagged correct")
	}

	if _, err := f.svc.Results(ctx, view.AttemptID, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Results() by non-owner error = %v, want ErrNotFound", err)
	}
}

func TestResultsAndStateSurviveMissingExam(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)
	ctx := context.Background()

	view, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if _, _, err := f.attempts.Finalize(ctx, view.AttemptID, nil, f.clock.current, func([]model.Answer) (float64, float64, error) {
		return 0, 10, nil
	}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	delete(f.exams.exams, exam.ID)

	if _, err := f.svc.Results(ctx, view.AttemptID, 101); !errors.Is(err, ErrNotFound) {
		t.Errorf("Results() without exam error = %v, want ErrNotFound", err)
	}
}

func TestRemainingSecondsSurvivesMissingExam(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)
	ctx := context.Background()

	view, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}

	delete(f.exams.exams, exam.ID)

	if _, err := f.svc.RemainingSeconds(ctx, view.AttemptID, 101); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemainingSeconds() without exam error = %v, want ErrNotFound", err)
	}
}

func TestListResults(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)
	f.attempts.exams[exam.ID] = exam
	ctx := context.Background()

	view, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}

	// Live attempts never appear in the listing.
	rows, total, err := f.svc.ListResults(ctx, 101, 1, 15, "")
	if err != nil {
		t.Fatalf("ListResults() error = %v", err)
	}
	if total != 0 || len(rows) != 0 {
		t.Fatalf("ListResults() returned %d rows (total %d) for live-only attempts", len(rows), total)
	}

	if _, _, err := f.attempts.Finalize(ctx, view.AttemptID, nil, f.clock.current, func([]model.Answer) (float64, float64, error) {
		return 7.5, 10, nil
	}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	rows, total, err = f.svc.ListResults(ctx, 101, 1, 15, "")
	if err != nil {
		t.Fatalf("ListResults() error = %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("ListResults() returned %d rows (total %d), want 1", len(rows), total)
	}
	if rows[0].Score != 7.5 || rows[0].ExamTitle != exam.Title {
		t.Errorf("ListResults() row = %+v", rows[0])
	}

	// Search that matches nothing.
	rows, total, err = f.svc.ListResults(ctx, 101, 1, 15, "chemistry")
	if err != nil {
		t.Fatalf("ListResults() error = %v", err)
	}
	if total != 0 || len(rows) != 0 {
		t.Errorf("search returned %d rows (total %d), want none", len(rows), total)
	}

	// Subject search matches.
	_, total, err = f.svc.ListResults(ctx, 101, 1, 15, "mathem")
	if err != nil {
		t.Fatalf("ListResults() error = %v", err)
	}
	if total != 1 {
		t.Errorf("subject search total = %d, want 1", total)
	}
}

func TestRemainingSecondsFallsBackToStore(t *testing.T) {
	f := newAttemptFixture(t)
	exam := buildExam(2, 10, 30*time.Minute)
	f.exams.put(exam)
	ctx := context.Background()

	view, err := f.svc.StartOrResume(ctx, exam.ID, 101)
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}

	f.clock.advance(10 * time.Minute)

	got, err := f.svc.RemainingSeconds(ctx, view.AttemptID, 101)
	if err != nil {
		t.Fatalf("RemainingSeconds() error = %v", err)
	}
	if got != 1200 {
		t.Errorf("RemainingSeconds() = %d, want 1200", got)
	}

	if _, err := f.svc.RemainingSeconds(ctx, view.AttemptID, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemainingSeconds() by non-owner error = %v, want ErrNotFound", err)
	}
}

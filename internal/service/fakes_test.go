package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/st3v1n/SchoolManager/internal/model"
)

// fakeAttemptStore is an in-memory AttemptStore honoring the same contract
// as the PostgreSQL implementation: atomic compare-and-create, write-once
// finalize, and rejection of writes against sealed attempts.
type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt
	answers  map[uuid.UUID]map[uuid.UUID]model.Answer // attemptID -> questionID -> answer
	exams    map[uuid.UUID]*model.Exam                // for ListFinalized summaries

	createErr error // injected once, cleared after use
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts: make(map[uuid.UUID]*model.Attempt),
		answers:  make(map[uuid.UUID]map[uuid.UUID]model.Answer),
		exams:    make(map[uuid.UUID]*model.Exam),
	}
}

func (f *fakeAttemptStore) GetOrNil(_ context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.ExamID == examID && a.StudentID == studentID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeAttemptStore) GetByID(_ context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptID]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return err
	}
	for _, existing := range f.attempts {
		if existing.ExamID == a.ExamID && existing.StudentID == a.StudentID {
			return ErrConflict
		}
	}
	a.ID = uuid.New()
	copied := *a
	f.attempts[a.ID] = &copied
	f.answers[a.ID] = make(map[uuid.UUID]model.Answer)
	return nil
}

func (f *fakeAttemptStore) ListAnswers(_ context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answerRows(attemptID), nil
}

func (f *fakeAttemptStore) answerRows(attemptID uuid.UUID) []model.Answer {
	var out []model.Answer
	for _, ans := range f.answers[attemptID] {
		out = append(out, ans)
	}
	return out
}

func (f *fakeAttemptStore) upsert(attemptID uuid.UUID, pairs []AnswerPair, now time.Time) {
	rows := f.answers[attemptID]
	for _, p := range pairs {
		existing, ok := rows[p.QuestionID]
		if !ok {
			existing = model.Answer{
				ID:         uuid.New(),
				AttemptID:  attemptID,
				QuestionID: p.QuestionID,
			}
		}
		existing.SelectedOptionID = p.OptionID
		existing.UpdatedAt = now
		rows[p.QuestionID] = existing
	}
}

func (f *fakeAttemptStore) UpsertAnswers(_ context.Context, attemptID uuid.UUID, pairs []AnswerPair, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	if a.SubmittedAt != nil {
		return ErrAlreadyFinalized
	}
	f.upsert(attemptID, pairs, now)
	a.LastActivity = now
	return nil
}

func (f *fakeAttemptStore) Finalize(_ context.Context, attemptID uuid.UUID, pairs []AnswerPair, submittedAt time.Time, score ScoreFunc) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptID]
	if !ok {
		return 0, 0, ErrNotFound
	}
	if a.SubmittedAt != nil {
		return 0, 0, ErrAlreadyFinalized
	}
	f.upsert(attemptID, pairs, submittedAt)
	finalScore, maxScore, err := score(f.answerRows(attemptID))
	if err != nil {
		// Transaction rolls back: drop the upserted pairs again by rebuilding
		// is unnecessary here because scoring errors abort tests anyway.
		return 0, 0, err
	}
	a.Score = &finalScore
	a.MaxScore = &maxScore
	at := submittedAt
	a.SubmittedAt = &at
	a.LastActivity = submittedAt
	return finalScore, maxScore, nil
}

func (f *fakeAttemptStore) TouchActivity(_ context.Context, attemptID uuid.UUID, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	if a.SubmittedAt != nil {
		return ErrAlreadyFinalized
	}
	a.LastActivity = now
	return nil
}

func (f *fakeAttemptStore) ListByStudent(_ context.Context, studentID int) ([]model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.StudentID == studentID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (f *fakeAttemptStore) ListFinalized(_ context.Context, studentID, page, perPage int, search string) ([]ResultSummary, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []ResultSummary
	for _, a := range f.attempts {
		if a.StudentID != studentID || a.SubmittedAt == nil {
			continue
		}
		exam := f.exams[a.ExamID]
		if exam == nil {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(exam.Title), strings.ToLower(search)) &&
			!strings.Contains(strings.ToLower(exam.Subject), strings.ToLower(search)) {
			continue
		}
		summary := ResultSummary{
			AttemptID:   a.ID,
			ExamID:      exam.ID,
			ExamTitle:   exam.Title,
			Subject:     exam.Subject,
			PaperType:   string(exam.PaperType),
			SubmittedAt: *a.SubmittedAt,
		}
		if a.Score != nil {
			summary.Score = *a.Score
		}
		if a.MaxScore != nil {
			summary.MaxScore = *a.MaxScore
		}
		all = append(all, summary)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SubmittedAt.After(all[j].SubmittedAt) })

	total := int64(len(all))
	start := (page - 1) * perPage
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// fakeExamStore serves exam definitions from memory.
type fakeExamStore struct {
	mu    sync.Mutex
	exams map[uuid.UUID]*model.Exam
}

func newFakeExamStore() *fakeExamStore {
	return &fakeExamStore{exams: make(map[uuid.UUID]*model.Exam)}
}

func (f *fakeExamStore) put(e *model.Exam) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exams[e.ID] = e
}

func (f *fakeExamStore) GetWithQuestions(_ context.Context, examID uuid.UUID) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[examID]
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (f *fakeExamStore) ListActiveByGrade(_ context.Context, gradeLevel string) ([]model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Exam
	for _, e := range f.exams {
		if e.IsActive && e.GradeLevel == gradeLevel {
			out = append(out, *e)
		}
	}
	return out, nil
}

// buildExam assembles a three-question exam with four options each, first
// option correct, for use across tests.
func buildExam(limit, totalMarks int, duration time.Duration) *model.Exam {
	d := duration
	exam := &model.Exam{
		ID:                   uuid.New(),
		Title:                "Algebra Paper",
		Subject:              "Mathematics",
		GradeLevel:           "Grade 10",
		PaperType:            model.PaperTypeExam,
		Duration:             &d,
		StudentQuestionLimit: limit,
		TotalMarks:           totalMarks,
		IsActive:             true,
	}
	for i := 0; i < 3; i++ {
		q := model.Question{
			ID:           uuid.New(),
			ExamID:       exam.ID,
			QuestionType: model.QuestionTypeMultipleChoice,
			Marks:        1,
		}
		for j := 0; j < 4; j++ {
			q.Options = append(q.Options, model.Option{
				ID:         uuid.New(),
				QuestionID: q.ID,
				IsCorrect:  j == 0,
			})
		}
		exam.Questions = append(exam.Questions, q)
	}
	return exam
}

// correctOption returns the correct option ID of the given question.
func correctOption(q *model.Question) uuid.UUID {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return q.Options[i].ID
		}
	}
	return uuid.Nil
}

// wrongOption returns an incorrect option ID of the given question.
func wrongOption(q *model.Question) uuid.UUID {
	for i := range q.Options {
		if !q.Options[i].IsCorrect {
			return q.Options[i].ID
		}
	}
	return uuid.Nil
}

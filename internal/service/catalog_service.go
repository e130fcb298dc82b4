package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/st3v1n/SchoolManager/internal/model"
)

// CatalogStatus is the state of an exam as shown in the student's paper list.
type CatalogStatus string

const (
	CatalogStatusUpcoming   CatalogStatus = "UPCOMING"
	CatalogStatusAvailable  CatalogStatus = "AVAILABLE"
	CatalogStatusInProgress CatalogStatus = "IN_PROGRESS"
	CatalogStatusCompleted  CatalogStatus = "COMPLETED"
)

// CatalogExam is an exam entry in the student's active-papers list: the exam
// definition overlaid with the student's own attempt state.
type CatalogExam struct {
	model.Exam
	CatalogStatus CatalogStatus `json:"catalog_status"`
	AttemptID     *uuid.UUID    `json:"attempt_id,omitempty"`
	Score         *float64      `json:"score,omitempty"`
}

// CatalogService builds the student-facing exam list.
type CatalogService struct {
	exams    ExamStore
	attempts AttemptStore
	now      func() time.Time
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(exams ExamStore, attempts AttemptStore) *CatalogService {
	return &CatalogService{exams: exams, attempts: attempts, now: time.Now}
}

// WithClock overrides the service clock. Test hook.
func (s *CatalogService) WithClock(now func() time.Time) *CatalogService {
	s.now = now
	return s
}

// ListOpenForStudent returns active exams for the student's grade with the
// student's attempt status overlaid. Exams whose window has fully passed and
// were never attempted are omitted.
func (s *CatalogService) ListOpenForStudent(ctx context.Context, gradeLevel string, studentID int) ([]CatalogExam, error) {
	now := s.now()

	exams, err := s.exams.ListActiveByGrade(ctx, gradeLevel)
	if err != nil {
		return nil, fmt.Errorf("list active exams: %w", err)
	}

	attempts, err := s.attempts.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	byExam := make(map[uuid.UUID]*model.Attempt, len(attempts))
	for i := range attempts {
		byExam[attempts[i].ExamID] = &attempts[i]
	}

	catalog := make([]CatalogExam, 0, len(exams))
	for i := range exams {
		exam := exams[i]
		entry := CatalogExam{Exam: exam}

		if attempt, ok := byExam[exam.ID]; ok {
			entry.AttemptID = &attempt.ID
			if attempt.Finalized() {
				entry.CatalogStatus = CatalogStatusCompleted
				entry.Score = attempt.Score
			} else {
				entry.CatalogStatus = CatalogStatusInProgress
			}
		} else {
			switch {
			case exam.WindowStart != nil && now.Before(*exam.WindowStart):
				entry.CatalogStatus = CatalogStatusUpcoming
			case exam.WindowEnd != nil && now.After(*exam.WindowEnd):
				continue // window closed, nothing to show
			default:
				entry.CatalogStatus = CatalogStatusAvailable
			}
		}

		catalog = append(catalog, entry)
	}

	return catalog, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/st3v1n/SchoolManager/internal/model"
	"github.com/st3v1n/SchoolManager/internal/service"
)

// AttemptRepository is the PostgreSQL implementation of service.AttemptStore.
// Every read-modify-write touching one attempt runs in a transaction holding
// the attempt row lock (SELECT ... FOR UPDATE), so concurrent autosaves and
// finalizes for the same attempt serialize at the database.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, exam_id, student_id, assigned_questions,
       start_time, last_activity, submitted_at, score, max_score`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.AssignedQuestions,
		&a.StartTime, &a.LastActivity, &a.SubmittedAt, &a.Score, &a.MaxScore)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetOrNil retrieves the attempt for an (exam, student) pair, nil if absent.
func (r *AttemptRepository) GetOrNil(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// GetByID retrieves an attempt by ID, nil if absent.
func (r *AttemptRepository) GetByID(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1`, attemptID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// Create inserts a new attempt. The unique (exam_id, student_id) constraint
// plus ON CONFLICT DO NOTHING makes compare-and-create a single atomic
// statement: the loser of a duplicate race gets no row back and a Conflict.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (exam_id, student_id, assigned_questions, start_time, last_activity)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id`,
		a.ExamID, a.StudentID, a.AssignedQuestions, a.StartTime,
	).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.ErrConflict
	}
	return err
}

// ListAnswers returns all answer rows for an attempt.
func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, question_id, selected_option_id, updated_at
		 FROM exam_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var ans model.Answer
		if err := rows.Scan(&ans.ID, &ans.AttemptID, &ans.QuestionID, &ans.SelectedOptionID, &ans.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, ans)
	}
	return answers, rows.Err()
}

// lockLive acquires the attempt row lock inside tx and verifies the attempt
// is still live. Once any reader observes submitted_at set, no writer can
// slip in: the lock serializes them.
func lockLive(ctx context.Context, tx pgx.Tx, attemptID uuid.UUID) error {
	var submittedAt *time.Time
	err := tx.QueryRow(ctx,
		`SELECT submitted_at FROM exam_attempts WHERE id = $1 FOR UPDATE`,
		attemptID,
	).Scan(&submittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.ErrNotFound
	}
	if err != nil {
		return err
	}
	if submittedAt != nil {
		return service.ErrAlreadyFinalized
	}
	return nil
}

// upsertPairs writes a batch in a single UNNEST round trip: create-if-absent,
// overwrite-if-present per (attempt, question). Idempotent by construction.
func upsertPairs(ctx context.Context, tx pgx.Tx, attemptID uuid.UUID, pairs []service.AnswerPair, now time.Time) error {
	if len(pairs) == 0 {
		return nil
	}
	questionIDs := make([]uuid.UUID, len(pairs))
	optionIDs := make([]uuid.UUID, len(pairs))
	for i, p := range pairs {
		questionIDs[i] = p.QuestionID
		optionIDs[i] = p.OptionID
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO exam_answers (attempt_id, question_id, selected_option_id, updated_at)
		 SELECT $1, t.question_id, t.option_id, $4
		 FROM UNNEST($2::uuid[], $3::uuid[]) AS t (question_id, option_id)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected_option_id = EXCLUDED.selected_option_id,
		     updated_at = EXCLUDED.updated_at`,
		attemptID, questionIDs, optionIDs, now)
	return err
}

// UpsertAnswers applies an autosave batch and bumps last_activity under the
// attempt row lock.
func (r *AttemptRepository) UpsertAnswers(ctx context.Context, attemptID uuid.UUID, pairs []service.AnswerPair, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockLive(ctx, tx, attemptID); err != nil {
		return err
	}
	if err := upsertPairs(ctx, tx, attemptID, pairs, now); err != nil {
		return fmt.Errorf("upsert answers: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE exam_attempts SET last_activity = $2 WHERE id = $1`,
		attemptID, now); err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}

	return tx.Commit(ctx)
}

// Finalize seals an attempt: upserts the final batch (possibly empty),
// scores the answer rows as they exist post-upsert, and sets score,
// max_score and submitted_at, all under the attempt row lock in one
// transaction. submitted_at is write-once; a second finalize fails with
// AlreadyFinalized before writing anything.
func (r *AttemptRepository) Finalize(ctx context.Context, attemptID uuid.UUID, pairs []service.AnswerPair, submittedAt time.Time, score service.ScoreFunc) (float64, float64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockLive(ctx, tx, attemptID); err != nil {
		return 0, 0, err
	}
	if err := upsertPairs(ctx, tx, attemptID, pairs, submittedAt); err != nil {
		return 0, 0, fmt.Errorf("upsert answers: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT id, attempt_id, question_id, selected_option_id, updated_at
		 FROM exam_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return 0, 0, err
	}
	var answers []model.Answer
	for rows.Next() {
		var ans model.Answer
		if err := rows.Scan(&ans.ID, &ans.AttemptID, &ans.QuestionID, &ans.SelectedOptionID, &ans.UpdatedAt); err != nil {
			rows.Close()
			return 0, 0, err
		}
		answers = append(answers, ans)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	finalScore, maxScore, err := score(answers)
	if err != nil {
		return 0, 0, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE exam_attempts
		 SET score = $2, max_score = $3, submitted_at = $4, last_activity = $4
		 WHERE id = $1`,
		attemptID, finalScore, maxScore, submittedAt); err != nil {
		return 0, 0, fmt.Errorf("seal attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return finalScore, maxScore, nil
}

// TouchActivity bumps last_activity for a live attempt only.
func (r *AttemptRepository) TouchActivity(ctx context.Context, attemptID uuid.UUID, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts SET last_activity = $2
		 WHERE id = $1 AND submitted_at IS NULL`,
		attemptID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAlreadyFinalized
	}
	return nil
}

// ListByStudent retrieves all attempts of a student, newest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE student_id = $1
		 ORDER BY start_time DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// ListFinalized retrieves a student's finalized attempts with pagination and
// optional title/subject search.
func (r *AttemptRepository) ListFinalized(ctx context.Context, studentID, page, perPage int, search string) ([]service.ResultSummary, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := `
		FROM exam_attempts a
		JOIN exams e ON a.exam_id = e.id
		WHERE a.student_id = $1 AND a.submitted_at IS NOT NULL
	`
	args := []any{studentID}

	if search != "" {
		args = append(args, "%"+search+"%")
		baseQuery += fmt.Sprintf(" AND (e.title ILIKE $%d OR e.subject ILIKE $%d)", len(args), len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT a.id, e.id, e.title, e.subject, e.paper_type,
		       a.score, a.max_score, a.submitted_at
		` + baseQuery + `
		ORDER BY a.submitted_at DESC
		LIMIT $` + fmt.Sprintf("%d", len(args)+1) + ` OFFSET $` + fmt.Sprintf("%d", len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []service.ResultSummary
	for rows.Next() {
		var s service.ResultSummary
		if err := rows.Scan(&s.AttemptID, &s.ExamID, &s.ExamTitle, &s.Subject,
			&s.PaperType, &s.Score, &s.MaxScore, &s.SubmittedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, s)
	}
	return results, total, rows.Err()
}

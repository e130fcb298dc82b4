package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/st3v1n/SchoolManager/internal/model"
)

// ExamRepository handles exam, question and option data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, subject, grade_level, paper_type, instructions,
       window_start, window_end, duration_seconds, student_question_limit,
       total_marks, shuffle_options, is_active, created_at`

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	var durationSeconds *int64
	err := row.Scan(&e.ID, &e.Title, &e.Subject, &e.GradeLevel, &e.PaperType,
		&e.Instructions, &e.WindowStart, &e.WindowEnd, &durationSeconds,
		&e.StudentQuestionLimit, &e.TotalMarks, &e.ShuffleOptions,
		&e.IsActive, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if durationSeconds != nil {
		d := time.Duration(*durationSeconds) * time.Second
		e.Duration = &d
	}
	return e, nil
}

// GetWithQuestions retrieves an exam with its full question pool and all
// options in three fixed queries. No per-question round trips.
func (r *ExamRepository) GetWithQuestions(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, examID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, question_type, marks
		 FROM questions WHERE exam_id = $1
		 ORDER BY id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.QuestionType, &q.Marks); err != nil {
			return nil, err
		}
		index[q.ID] = len(exam.Questions)
		exam.Questions = append(exam.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	optRows, err := r.pool.Query(ctx,
		`SELECT o.id, o.question_id, o.option_text, o.is_correct
		 FROM question_options o
		 JOIN questions q ON o.question_id = q.id
		 WHERE q.exam_id = $1
		 ORDER BY o.id`, examID)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		var o model.Option
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.OptionText, &o.IsCorrect); err != nil {
			return nil, err
		}
		if i, ok := index[o.QuestionID]; ok {
			exam.Questions[i].Options = append(exam.Questions[i].Options, o)
		}
	}
	return exam, optRows.Err()
}

// ListActiveByGrade retrieves active exams for a grade level, newest first.
// Question pools are not loaded; the catalog never needs them.
func (r *ExamRepository) ListActiveByGrade(ctx context.Context, gradeLevel string) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE is_active = TRUE AND grade_level = $1
		 ORDER BY created_at DESC`, gradeLevel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// Create inserts a new exam. Used by seed tooling; authoring proper lives in
// a separate subsystem.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	var durationSeconds *int64
	if e.Duration != nil {
		secs := int64(e.Duration.Seconds())
		durationSeconds = &secs
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, subject, grade_level, paper_type, instructions,
		                    window_start, window_end, duration_seconds,
		                    student_question_limit, total_marks, shuffle_options, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at`,
		e.Title, e.Subject, e.GradeLevel, e.PaperType, e.Instructions,
		e.WindowStart, e.WindowEnd, durationSeconds,
		e.StudentQuestionLimit, e.TotalMarks, e.ShuffleOptions, e.IsActive,
	).Scan(&e.ID, &e.CreatedAt)
}

// CreateQuestion inserts a question with its options in one transaction.
func (r *ExamRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO questions (exam_id, question_text, question_type, marks)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		q.ExamID, q.QuestionText, q.QuestionType, q.Marks,
	).Scan(&q.ID); err != nil {
		return err
	}

	for i := range q.Options {
		q.Options[i].QuestionID = q.ID
		if err := tx.QueryRow(ctx,
			`INSERT INTO question_options (question_id, option_text, is_correct)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			q.ID, q.Options[i].OptionText, q.Options[i].IsCorrect,
		).Scan(&q.Options[i].ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

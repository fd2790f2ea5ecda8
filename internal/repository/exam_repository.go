package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grader/internal/model"
)

const examColumns = `id, title, description, author_id, duration_minutes, total_marks,
	passing_marks, status, created_at, updated_at, published_at`

const questionColumns = `id, exam_id, text, type, option1, option2, option3, option4,
	correct_answer, points, explanation, order_num`

// ExamRepository handles exam and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row, e *model.Exam) error {
	return row.Scan(&e.ID, &e.Title, &e.Description, &e.AuthorID, &e.DurationMinutes, &e.TotalMarks,
		&e.PassingMarks, &e.Status, &e.CreatedAt, &e.UpdatedAt, &e.PublishedAt)
}

// GetByID retrieves an exam by its UUID, without questions.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id), e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// FindWithQuestions retrieves an exam together with its full question set.
func (r *ExamRepository) FindWithQuestions(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	questions, err := r.ListQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	e.Questions = questions
	return e, nil
}

// ListQuestions retrieves all questions for an exam, ordered by order_num.
func (r *ExamRepository) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.Type, &q.Option1, &q.Option2, &q.Option3, &q.Option4,
			&q.CorrectAnswer, &q.Points, &q.Explanation, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (id, title, description, author_id, duration_minutes, total_marks, passing_marks, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		e.ID, e.Title, e.Description, e.AuthorID, e.DurationMinutes, e.TotalMarks, e.PassingMarks, e.Status,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

// AddQuestion inserts a question into a DRAFT exam. The exam row is locked
// for the insert, so a concurrent Publish either sees the question in its
// total or makes this call fail with ErrStatusConflict.
func (r *ExamRepository) AddQuestion(ctx context.Context, q *model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockDraft(ctx, tx, q.ExamID); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO questions (`+questionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		q.ID, q.ExamID, q.Text, q.Type, q.Option1, q.Option2, q.Option3, q.Option4,
		q.CorrectAnswer, q.Points, q.Explanation, q.OrderNum,
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return tx.Commit(ctx)
}

// Publish moves a DRAFT exam with at least one question to PUBLISHED and
// freezes total_marks at the sum of its question points, computed under the
// same row lock. It returns the frozen total.
func (r *ExamRepository) Publish(ctx context.Context, id uuid.UUID, publishedAt time.Time) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockDraft(ctx, tx, id); err != nil {
		return 0, err
	}

	var totalMarks int
	err = tx.QueryRow(ctx,
		`UPDATE exams
		 SET status = $1, published_at = $2, updated_at = NOW(),
		     total_marks = (SELECT COALESCE(SUM(points), 0) FROM questions WHERE exam_id = $3)
		 WHERE id = $3 AND EXISTS (SELECT 1 FROM questions WHERE exam_id = $3)
		 RETURNING total_marks`,
		model.ExamStatusPublished, publishedAt, id).Scan(&totalMarks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrStatusConflict
		}
		return 0, fmt.Errorf("publish exam: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return totalMarks, nil
}

// lockDraft takes the exam row lock and requires the exam to be DRAFT.
func lockDraft(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var status model.ExamStatus
	err := tx.QueryRow(ctx, `SELECT status FROM exams WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock exam: %w", err)
	}
	if status != model.ExamStatusDraft {
		return ErrStatusConflict
	}
	return nil
}

// UpdateStatus updates an exam's status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPublished returns all exams with PUBLISHED status, without questions.
// Used for cache prewarming on startup and by the periodic refresher.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`
		 FROM exams WHERE status = $1
		 ORDER BY created_at DESC`, model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

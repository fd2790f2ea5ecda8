package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grader/internal/model"
)

const resultColumns = `r.id, r.exam_id, e.title, r.student_id, r.score, r.total_marks,
	r.percentage, r.status, r.time_taken, r.submitted_at`

// ResultRepository handles exam result and student answer data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

func scanResult(row pgx.Row, res *model.ExamResult) error {
	return row.Scan(&res.ID, &res.ExamID, &res.ExamTitle, &res.StudentID, &res.Score, &res.TotalMarks,
		&res.Percentage, &res.Status, &res.TimeTaken, &res.SubmittedAt)
}

// isUniqueResultViolation reports whether err is the unique index on
// (exam_id, student_id) rejecting a second result.
func isUniqueResultViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == UniqueResultIndex
}

// FindByExamAndStudent retrieves the result of one student for one exam.
func (r *ResultRepository) FindByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	err := scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM exam_results r
		 JOIN exams e ON e.id = r.exam_id
		 WHERE r.exam_id = $1 AND r.student_id = $2`, examID, studentID), res)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

// SaveWithAnswers persists a result and all of its answers in one transaction.
// A second result for the same (exam, student) returns ErrDuplicateResult and
// an exam that is not PUBLISHED returns ErrStatusConflict; both leave no rows
// behind.
func (r *ResultRepository) SaveWithAnswers(ctx context.Context, res *model.ExamResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The share lock holds off a concurrent close until this result commits,
	// and the status read here is authoritative even when the caller graded
	// against a cached copy of the exam.
	var status model.ExamStatus
	err = tx.QueryRow(ctx, `SELECT status FROM exams WHERE id = $1 FOR SHARE`, res.ExamID).Scan(&status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrStatusConflict
	case err != nil:
		return fmt.Errorf("lock exam: %w", err)
	case status != model.ExamStatusPublished:
		return ErrStatusConflict
	}

	// Concurrent inserts for the same pair wait on the index; the loser gets no row back.
	err = tx.QueryRow(ctx,
		`INSERT INTO exam_results (id, exam_id, student_id, score, total_marks, percentage, status, time_taken, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id`,
		res.ID, res.ExamID, res.StudentID, res.Score, res.TotalMarks, res.Percentage,
		res.Status, res.TimeTaken, res.SubmittedAt,
	).Scan(&res.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueResultViolation(err) {
			return ErrDuplicateResult
		}
		return fmt.Errorf("insert result: %w", err)
	}

	if len(res.Answers) > 0 {
		batch := &pgx.Batch{}
		for i := range res.Answers {
			a := &res.Answers[i]
			a.ExamResultID = res.ID
			batch.Queue(
				`INSERT INTO student_answers (id, exam_result_id, question_id, answer, is_correct, points_awarded)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				a.ID, a.ExamResultID, a.QuestionID, a.Answer, a.IsCorrect, a.PointsAwarded)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert answers: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueResultViolation(err) {
			return ErrDuplicateResult
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID retrieves a result with its answers.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	err := scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM exam_results r
		 JOIN exams e ON e.id = r.exam_id
		 WHERE r.id = $1`, id), res)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	answers, err := r.listAnswers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	res.Answers = answers
	return res, nil
}

func (r *ResultRepository) listAnswers(ctx context.Context, resultID uuid.UUID) ([]model.StudentAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.exam_result_id, a.question_id, a.answer, a.is_correct, a.points_awarded
		 FROM student_answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE a.exam_result_id = $1
		 ORDER BY q.order_num, q.id`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.StudentAnswer
	for rows.Next() {
		var a model.StudentAnswer
		if err := rows.Scan(&a.ID, &a.ExamResultID, &a.QuestionID, &a.Answer, &a.IsCorrect, &a.PointsAwarded); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ListByStudent retrieves all results of a student, newest first.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID int) ([]model.ExamResult, error) {
	return r.list(ctx,
		`SELECT `+resultColumns+`
		 FROM exam_results r
		 JOIN exams e ON e.id = r.exam_id
		 WHERE r.student_id = $1
		 ORDER BY r.submitted_at DESC`, studentID)
}

// ListByExam retrieves all results of an exam, best score first.
func (r *ResultRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamResult, error) {
	return r.list(ctx,
		`SELECT `+resultColumns+`
		 FROM exam_results r
		 JOIN exams e ON e.id = r.exam_id
		 WHERE r.exam_id = $1
		 ORDER BY r.score DESC, r.submitted_at ASC`, examID)
}

func (r *ResultRepository) list(ctx context.Context, query string, args ...any) ([]model.ExamResult, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ExamResult
	for rows.Next() {
		var res model.ExamResult
		if err := scanResult(rows, &res); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

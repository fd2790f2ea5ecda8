package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/repository"
)

const resultColumns = `r.id, r.exam_id, e.title, r.student_id, r.score, r.total_marks,
	r.percentage, r.status, r.time_taken, r.submitted_at`

// ResultStore handles exam result and student answer data access.
type ResultStore struct {
	db *sql.DB
}

// NewResultStore creates a new ResultStore.
func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db}
}

func scanResult(row scanner, res *model.ExamResult) error {
	var submittedAt int64
	if err := row.Scan(&res.ID, &res.ExamID, &res.ExamTitle, &res.StudentID, &res.Score, &res.TotalMarks,
		&res.Percentage, &res.Status, &res.TimeTaken, &submittedAt); err != nil {
		return err
	}
	res.SubmittedAt = fromMillis(submittedAt)
	return nil
}

// FindByExamAndStudent retrieves the result of one student for one exam.
func (s *ResultStore) FindByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	err := scanResult(s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+`
		 FROM exam_results r
		 JOIN exams e ON e.id = r.exam_id
		 WHERE r.exam_id = ? AND r.student_id = ?`, examID, studentID), res)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

// SaveWithAnswers persists a result and all of its answers in one transaction.
// A second result for the same (exam, student) returns
// repository.ErrDuplicateResult and an exam that is not PUBLISHED returns
// repository.ErrStatusConflict; both leave no rows behind.
func (s *ResultStore) SaveWithAnswers(ctx context.Context, res *model.ExamResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// The exam must still be PUBLISHED when the row is written, whatever copy
	// of the exam the caller graded against.
	inserted, err := tx.ExecContext(ctx,
		`INSERT INTO exam_results (id, exam_id, student_id, score, total_marks, percentage, status, time_taken, submitted_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM exams WHERE id = ? AND status = ?)
		 ON CONFLICT (exam_id, student_id) DO NOTHING`,
		res.ID, res.ExamID, res.StudentID, res.Score, res.TotalMarks, res.Percentage,
		res.Status, res.TimeTaken, toMillis(res.SubmittedAt),
		res.ExamID, model.ExamStatusPublished)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	n, err := inserted.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	if n == 0 {
		return rejectedInsert(ctx, tx, res.ExamID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO student_answers (id, exam_result_id, question_id, answer, is_correct, points_awarded)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare answers: %w", err)
	}
	defer stmt.Close()

	for i := range res.Answers {
		a := &res.Answers[i]
		a.ExamResultID = res.ID
		if _, err := stmt.ExecContext(ctx, a.ID, a.ExamResultID, a.QuestionID, a.Answer, a.IsCorrect, a.PointsAwarded); err != nil {
			return fmt.Errorf("insert answer %s: %w", a.QuestionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// rejectedInsert tells a closed exam apart from a duplicate result once the
// conditional insert has written nothing.
func rejectedInsert(ctx context.Context, tx *sql.Tx, examID uuid.UUID) error {
	var status model.ExamStatus
	err := tx.QueryRowContext(ctx, `SELECT status FROM exams WHERE id = ?`, examID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return repository.ErrStatusConflict
	case err != nil:
		return fmt.Errorf("check exam status: %w", err)
	case status != model.ExamStatusPublished:
		return repository.ErrStatusConflict
	}
	return repository.ErrDuplicateResult
}

// GetByID retrieves a result with its answers.
func (s *ResultStore) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	err := scanResult(s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+`
		 FROM exam_results r
		 JOIN exams e ON e.id = r.exam_id
		 WHERE r.id = ?`, id), res)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.exam_result_id, a.question_id, a.answer, a.is_correct, a.points_awarded
		 FROM student_answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE a.exam_result_id = ?
		 ORDER BY q.order_num, q.id`, id)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.StudentAnswer
		if err := rows.Scan(&a.ID, &a.ExamResultID, &a.QuestionID, &a.Answer, &a.IsCorrect, &a.PointsAwarded); err != nil {
			return nil, err
		}
		res.Answers = append(res.Answers, a)
	}
	return res, rows.Err()
}

// ListByStudent retrieves all results of a student, newest first.
func (s *ResultStore) ListByStudent(ctx context.Context, studentID int) ([]model.ExamResult, error) {
	return s.list(ctx,
		`SELECT `+resultColumns+`
		 FROM exam_results r
		 JOIN exams e ON e.id = r.exam_id
		 WHERE r.student_id = ?
		 ORDER BY r.submitted_at DESC`, studentID)
}

// ListByExam retrieves all results of an exam, best score first.
func (s *ResultStore) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamResult, error) {
	return s.list(ctx,
		`SELECT `+resultColumns+`
		 FROM exam_results r
		 JOIN exams e ON e.id = r.exam_id
		 WHERE r.exam_id = ?
		 ORDER BY r.score DESC, r.submitted_at ASC`, examID)
}

func (s *ResultStore) list(ctx context.Context, query string, args ...any) ([]model.ExamResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

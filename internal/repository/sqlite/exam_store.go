package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/repository"
)

const examColumns = `id, title, description, author_id, duration_minutes, total_marks,
	passing_marks, status, created_at, updated_at, published_at`

const questionColumns = `id, exam_id, text, type, option1, option2, option3, option4,
	correct_answer, points, explanation, order_num`

// ExamStore handles exam and question data access.
type ExamStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewExamStore creates a new ExamStore.
func NewExamStore(db *sql.DB) *ExamStore {
	return &ExamStore{db: db, now: time.Now}
}

func scanExam(row scanner, e *model.Exam) error {
	var createdAt, updatedAt int64
	var publishedAt sql.NullInt64
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.AuthorID, &e.DurationMinutes, &e.TotalMarks,
		&e.PassingMarks, &e.Status, &createdAt, &updatedAt, &publishedAt); err != nil {
		return err
	}
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	if publishedAt.Valid {
		t := fromMillis(publishedAt.Int64)
		e.PublishedAt = &t
	}
	return nil
}

// GetByID retrieves an exam by its UUID, without questions.
func (s *ExamStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := scanExam(s.db.QueryRowContext(ctx, `SELECT `+examColumns+` FROM exams WHERE id = ?`, id), e)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// FindWithQuestions retrieves an exam together with its full question set.
func (s *ExamStore) FindWithQuestions(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.ListQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	e.Questions = questions
	return e, nil
}

// ListQuestions retrieves all questions for an exam, ordered by order_num.
func (s *ExamStore) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE exam_id = ? ORDER BY order_num, id`, examID)
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
func (s *ExamStore) Create(ctx context.Context, e *model.Exam) error {
	now := s.now().UTC().Truncate(time.Millisecond)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exams (id, title, description, author_id, duration_minutes, total_marks, passing_marks, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Description, e.AuthorID, e.DurationMinutes, e.TotalMarks, e.PassingMarks, e.Status,
		toMillis(now), toMillis(now))
	if err != nil {
		return err
	}
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

// AddQuestion inserts a question into a DRAFT exam. The status check and the
// insert are one statement, so a question never lands in an exam that has
// already been published.
func (s *ExamStore) AddQuestion(ctx context.Context, q *model.Question) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (`+questionColumns+`)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM exams WHERE id = ? AND status = ?)`,
		q.ID, q.ExamID, q.Text, q.Type, q.Option1, q.Option2, q.Option3, q.Option4,
		q.CorrectAnswer, q.Points, q.Explanation, q.OrderNum,
		q.ExamID, model.ExamStatusDraft)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrStatusConflict
	}
	return nil
}

// Publish moves a DRAFT exam with at least one question to PUBLISHED and
// freezes total_marks at the sum of its question points within the same
// statement. It returns the frozen total.
func (s *ExamStore) Publish(ctx context.Context, id uuid.UUID, publishedAt time.Time) (int, error) {
	var totalMarks int
	err := s.db.QueryRowContext(ctx,
		`UPDATE exams
		 SET status = ?, published_at = ?, updated_at = ?,
		     total_marks = (SELECT COALESCE(SUM(points), 0) FROM questions WHERE exam_id = exams.id)
		 WHERE id = ? AND status = ? AND EXISTS (SELECT 1 FROM questions WHERE exam_id = exams.id)
		 RETURNING total_marks`,
		model.ExamStatusPublished, toMillis(publishedAt), toMillis(s.now()), id, model.ExamStatusDraft,
	).Scan(&totalMarks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrStatusConflict
		}
		return 0, err
	}
	return totalMarks, nil
}

// UpdateStatus updates an exam's status.
func (s *ExamStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exams SET status = ?, updated_at = ? WHERE id = ?`,
		status, toMillis(s.now()), id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// ListPublished returns all exams with PUBLISHED status, without questions.
func (s *ExamStore) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+examColumns+` FROM exams WHERE status = ? ORDER BY created_at DESC`, model.ExamStatusPublished)
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

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

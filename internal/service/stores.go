package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grader/internal/model"
)

// ExamStore is the exam storage the services consume. FindWithQuestions
// returns the fully materialized exam, answer keys included. AddQuestion and
// Publish re-check the DRAFT status as part of the write and report a lost
// race as repository.ErrStatusConflict.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	FindWithQuestions(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	Create(ctx context.Context, e *model.Exam) error
	AddQuestion(ctx context.Context, q *model.Question) error
	Publish(ctx context.Context, id uuid.UUID, publishedAt time.Time) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error
	ListPublished(ctx context.Context) ([]model.Exam, error)
}

// ResultStore is the result storage the services consume. SaveWithAnswers is
// atomic, reports a second result for the same (exam, student) as
// repository.ErrDuplicateResult and an exam that is no longer PUBLISHED as
// repository.ErrStatusConflict.
type ResultStore interface {
	FindByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamResult, error)
	SaveWithAnswers(ctx context.Context, r *model.ExamResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamResult, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.ExamResult, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamResult, error)
}

// ExamCache is an optional warm cache for published exams.
type ExamCache interface {
	Warm(ctx context.Context, exam *model.Exam) error
}

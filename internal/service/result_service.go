package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/repository"
)

// ResultService answers result queries for students and exam authors.
type ResultService struct {
	exams   ExamStore
	results ResultStore
}

// NewResultService creates a new ResultService.
func NewResultService(exams ExamStore, results ResultStore) *ResultService {
	return &ResultService{exams: exams, results: results}
}

// ListForStudent returns a student's results, newest first.
func (s *ResultService) ListForStudent(ctx context.Context, studentID int) ([]model.ExamResultSummary, error) {
	results, err := s.results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return summarize(results), nil
}

// GetReview returns one of the student's own results with the answer key and
// explanations. Questions the student skipped appear with an empty answer.
// A result owned by someone else is reported as not found.
func (s *ResultService) GetReview(ctx context.Context, resultID uuid.UUID, studentID int) (*model.ResultReview, error) {
	result, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	if result.StudentID != studentID {
		return nil, ErrResultNotFound
	}

	exam, err := s.exams.FindWithQuestions(ctx, result.ExamID)
	if err != nil {
		return nil, mapExamErr(err)
	}

	byQuestion := make(map[uuid.UUID]model.StudentAnswer, len(result.Answers))
	for _, a := range result.Answers {
		byQuestion[a.QuestionID] = a
	}

	review := &model.ResultReview{
		ExamResultSummary: result.Summary(),
		Answers:           make([]model.AnswerReview, 0, len(exam.Questions)),
	}
	for _, q := range exam.Questions {
		a := byQuestion[q.ID]
		review.Answers = append(review.Answers, model.AnswerReview{
			QuestionID:     q.ID,
			QuestionText:   q.Text,
			StudentAnswer:  a.Answer,
			CorrectAnswer:  q.CorrectAnswer,
			IsCorrect:      a.IsCorrect,
			PointsAwarded:  a.PointsAwarded,
			QuestionPoints: q.Points,
			Explanation:    q.Explanation,
		})
	}
	return review, nil
}

// ListForExam returns every result of an exam to its author, best score first.
func (s *ResultService) ListForExam(ctx context.Context, examID uuid.UUID, authorID int) ([]model.ExamResultSummary, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, mapExamErr(err)
	}
	if exam.AuthorID != authorID {
		return nil, ErrNotExamAuthor
	}

	results, err := s.results.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return summarize(results), nil
}

func summarize(results []model.ExamResult) []model.ExamResultSummary {
	out := make([]model.ExamResultSummary, len(results))
	for i := range results {
		out[i] = results[i].Summary()
	}
	return out
}

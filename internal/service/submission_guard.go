package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grader/internal/repository"
)

// SubmissionGuard enforces at most one result per (exam, student).
//
// EnsureNotSubmitted is the fast pre-check that rejects an obvious
// resubmission before any grading work. It cannot close the race between two
// concurrent first submissions; that is closed by the unique index behind
// ResultStore.SaveWithAnswers, whose rejection ResolveSaveError maps to the
// same ErrAlreadySubmitted.
type SubmissionGuard struct {
	results ResultStore
}

// NewSubmissionGuard creates a new SubmissionGuard.
func NewSubmissionGuard(results ResultStore) *SubmissionGuard {
	return &SubmissionGuard{results: results}
}

// EnsureNotSubmitted returns ErrAlreadySubmitted when the student already has
// a result for the exam.
func (g *SubmissionGuard) EnsureNotSubmitted(ctx context.Context, examID uuid.UUID, studentID int) error {
	_, err := g.results.FindByExamAndStudent(ctx, examID, studentID)
	switch {
	case err == nil:
		return ErrAlreadySubmitted
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check existing result: %w", err)
	}
}

// ResolveSaveError maps a lost insert race to ErrAlreadySubmitted, an exam
// closed since it was loaded to ErrExamNotAvailable, and wraps every other
// storage failure.
func (g *SubmissionGuard) ResolveSaveError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateResult):
		return ErrAlreadySubmitted
	case errors.Is(err, repository.ErrStatusConflict):
		return ErrExamNotAvailable
	}
	return fmt.Errorf("save result: %w", err)
}

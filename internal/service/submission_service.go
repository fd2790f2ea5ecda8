package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/event"
	"github.com/stemsi/exstem-grader/internal/grading"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/repository"
)

// SubmitCommand is one student's answer set for one exam.
type SubmitCommand struct {
	ExamID    uuid.UUID
	StudentID int
	TimeTaken int
	Answers   []model.AnswerRequest
}

// SubmissionService grades and records exam submissions.
type SubmissionService struct {
	exams   ExamStore
	results ResultStore
	guard   *SubmissionGuard
	events  event.Publisher
	log     zerolog.Logger
	now     func() time.Time
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(exams ExamStore, results ResultStore, events event.Publisher, log zerolog.Logger) *SubmissionService {
	if events == nil {
		events = event.Nop{}
	}
	return &SubmissionService{
		exams:   exams,
		results: results,
		guard:   NewSubmissionGuard(results),
		events:  events,
		log:     log.With().Str("component", "submission_service").Logger(),
		now:     time.Now,
	}
}

// Submit grades a submission and persists the result with its answers.
//
// Questions the student did not answer earn nothing but still count toward
// the exam's total marks. The result and answers are written atomically; a
// concurrent duplicate loses on the unique index and gets ErrAlreadySubmitted.
// The exam may come from a cache, so the store re-checks that it is still
// PUBLISHED when the result is written.
func (s *SubmissionService) Submit(ctx context.Context, cmd SubmitCommand) (*model.ExamResult, error) {
	exam, err := s.exams.FindWithQuestions(ctx, cmd.ExamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}

	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	if err := s.guard.EnsureNotSubmitted(ctx, exam.ID, cmd.StudentID); err != nil {
		return nil, err
	}

	evaluations, err := evaluateAnswers(exam, cmd.Answers)
	if err != nil {
		return nil, err
	}

	outcome, err := grading.Aggregate(exam.TotalMarks, exam.PassingMarks, evaluations)
	if err != nil {
		return nil, fmt.Errorf("exam %s: %w", exam.ID, err)
	}

	result := &model.ExamResult{
		ID:          uuid.New(),
		ExamID:      exam.ID,
		ExamTitle:   exam.Title,
		StudentID:   cmd.StudentID,
		Score:       outcome.Score,
		TotalMarks:  outcome.TotalMarks,
		Percentage:  outcome.Percentage,
		Status:      outcome.Status,
		TimeTaken:   cmd.TimeTaken,
		SubmittedAt: s.now().UTC().Truncate(time.Millisecond),
		Answers:     make([]model.StudentAnswer, len(evaluations)),
	}
	for i, ev := range evaluations {
		result.Answers[i] = model.StudentAnswer{
			ID:            uuid.New(),
			ExamResultID:  result.ID,
			QuestionID:    ev.QuestionID,
			Answer:        ev.Answer,
			IsCorrect:     ev.IsCorrect,
			PointsAwarded: ev.PointsAwarded,
		}
	}

	if err := s.results.SaveWithAnswers(ctx, result); err != nil {
		return nil, s.guard.ResolveSaveError(err)
	}

	if err := s.events.Publish(ctx, model.NewResultSubmittedEvent(result)); err != nil {
		s.log.Warn().
			Err(err).
			Str("result_id", result.ID.String()).
			Msg("Failed to publish grading event")
	}

	return result, nil
}

// evaluateAnswers grades each answer against the exam's own question set.
func evaluateAnswers(exam *model.Exam, answers []model.AnswerRequest) ([]grading.Evaluation, error) {
	evaluations := make([]grading.Evaluation, 0, len(answers))
	seen := make(map[uuid.UUID]struct{}, len(answers))

	for _, a := range answers {
		q, ok := exam.FindQuestion(a.QuestionID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, a.QuestionID)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAnswer, q.ID)
		}
		seen[q.ID] = struct{}{}

		evaluations = append(evaluations, grading.Evaluate(q, a.Answer))
	}
	return evaluations, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/repository"
)

// ExamService handles exam authoring, publishing and the student paper.
type ExamService struct {
	exams ExamStore
	cache ExamCache
	log   zerolog.Logger
	now   func() time.Time
}

// NewExamService creates a new ExamService. cache may be nil when Redis is
// not configured.
func NewExamService(exams ExamStore, cache ExamCache, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams: exams,
		cache: cache,
		log:   log.With().Str("component", "exam_service").Logger(),
		now:   time.Now,
	}
}

// Create inserts a new exam as DRAFT.
func (s *ExamService) Create(ctx context.Context, authorID int, req model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		AuthorID:        authorID,
		DurationMinutes: req.DurationMinutes,
		PassingMarks:    req.PassingMarks,
		Status:          model.ExamStatusDraft,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return exam, nil
}

// GetForAuthor returns an exam with its questions and answer keys to its author.
func (s *ExamService) GetForAuthor(ctx context.Context, examID uuid.UUID, authorID int) (*model.Exam, error) {
	exam, err := s.exams.FindWithQuestions(ctx, examID)
	if err != nil {
		return nil, mapExamErr(err)
	}
	if exam.AuthorID != authorID {
		return nil, ErrNotExamAuthor
	}
	return exam, nil
}

// AddQuestion validates and appends a question to a DRAFT exam.
func (s *ExamService) AddQuestion(ctx context.Context, examID uuid.UUID, authorID int, req model.AddQuestionRequest) (*model.Question, error) {
	exam, err := s.ownedExam(ctx, examID, authorID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}

	q, err := buildQuestion(examID, req)
	if err != nil {
		return nil, err
	}
	if err := s.exams.AddQuestion(ctx, q); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Published or closed after the check above.
			return nil, ErrExamNotDraft
		}
		return nil, fmt.Errorf("add question: %w", err)
	}
	return q, nil
}

// Publish changes exam status to PUBLISHED, freezing total marks at the sum
// of question points as stored at the moment of publishing, and warms the
// exam cache.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID, authorID int) (*model.Exam, error) {
	exam, err := s.GetForAuthor(ctx, examID, authorID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusDraft {
		return nil, ErrExamNotDraft
	}
	if len(exam.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	publishedAt := s.now().UTC().Truncate(time.Millisecond)

	totalMarks, err := s.exams.Publish(ctx, examID, publishedAt)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Lost a race with another publish or close.
			return nil, ErrExamNotDraft
		}
		return nil, fmt.Errorf("publish exam: %w", err)
	}

	// Questions added after the read above are part of the frozen total.
	questions, err := s.exams.ListQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("reload questions: %w", err)
	}

	exam.Questions = questions
	exam.Status = model.ExamStatusPublished
	exam.TotalMarks = totalMarks
	exam.PublishedAt = &publishedAt

	s.warm(ctx, exam)

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("total_marks", totalMarks).
		Int("questions", len(exam.Questions)).
		Msg("Exam published")
	return exam, nil
}

// Close moves a PUBLISHED exam to COMPLETED. Later submissions are rejected.
func (s *ExamService) Close(ctx context.Context, examID uuid.UUID, authorID int) error {
	exam, err := s.ownedExam(ctx, examID, authorID)
	if err != nil {
		return err
	}
	if exam.Status != model.ExamStatusPublished {
		return ErrExamNotPublished
	}

	if err := s.exams.UpdateStatus(ctx, examID, model.ExamStatusCompleted); err != nil {
		return fmt.Errorf("close exam: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam closed")
	return nil
}

// GetPaper returns the student-facing view of a published exam, without
// answer keys or explanations.
func (s *ExamService) GetPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	exam, err := s.exams.FindWithQuestions(ctx, examID)
	if err != nil {
		return nil, mapExamErr(err)
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotAvailable
	}

	questions := make([]model.QuestionForStudent, len(exam.Questions))
	for i, q := range exam.Questions {
		questions[i] = model.QuestionForStudent{
			ID:       q.ID,
			Text:     q.Text,
			Type:     q.Type,
			Options:  q.Options(),
			Points:   q.Points,
			OrderNum: q.OrderNum,
		}
	}

	return &model.ExamPaper{
		ExamID:          exam.ID,
		Title:           exam.Title,
		Description:     exam.Description,
		DurationMinutes: exam.DurationMinutes,
		TotalMarks:      exam.TotalMarks,
		PassingMarks:    exam.PassingMarks,
		Questions:       questions,
	}, nil
}

// PrewarmAllCaches reloads every published exam from storage into the cache.
// Runs on startup and on the refresh schedule.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	exams, err := s.exams.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Debug().Msg("No published exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		exam := &exams[i]
		questions, err := s.exams.ListQuestions(ctx, exam.ID)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exam.ID.String()).
				Msg("Failed to load questions, skipping")
			continue
		}
		exam.Questions = questions

		if err := s.cache.Warm(ctx, exam); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exam.ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

func (s *ExamService) warm(ctx context.Context, exam *model.Exam) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Warm(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to warm exam cache")
	}
}

func (s *ExamService) ownedExam(ctx context.Context, examID uuid.UUID, authorID int) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, mapExamErr(err)
	}
	if exam.AuthorID != authorID {
		return nil, ErrNotExamAuthor
	}
	return exam, nil
}

func mapExamErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrExamNotFound
	}
	return fmt.Errorf("load exam: %w", err)
}

// buildQuestion applies the per-type authoring rules:
//   - MULTIPLE_CHOICE needs at least two leading options with no gaps, and
//     a key equal to one of them
//   - TRUE_FALSE needs a true/false key and gets fixed True/False options
//   - SHORT_ANSWER carries no options
func buildQuestion(examID uuid.UUID, req model.AddQuestionRequest) (*model.Question, error) {
	q := &model.Question{
		ID:            uuid.New(),
		ExamID:        examID,
		Text:          strings.TrimSpace(req.Text),
		Type:          model.QuestionType(req.Type),
		CorrectAnswer: strings.TrimSpace(req.CorrectAnswer),
		Points:        req.Points,
		Explanation:   req.Explanation,
		OrderNum:      req.OrderNum,
	}
	if q.Text == "" {
		return nil, fmt.Errorf("%w: text is blank", ErrInvalidQuestion)
	}
	if q.CorrectAnswer == "" {
		return nil, fmt.Errorf("%w: correct answer is blank", ErrInvalidQuestion)
	}
	if q.Points <= 0 {
		return nil, fmt.Errorf("%w: points must be positive", ErrInvalidQuestion)
	}

	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		opts := []string{
			strings.TrimSpace(req.Option1),
			strings.TrimSpace(req.Option2),
			strings.TrimSpace(req.Option3),
			strings.TrimSpace(req.Option4),
		}
		if opts[0] == "" || opts[1] == "" {
			return nil, fmt.Errorf("%w: multiple choice needs option1 and option2", ErrInvalidQuestion)
		}
		if opts[2] == "" && opts[3] != "" {
			return nil, fmt.Errorf("%w: option4 set without option3", ErrInvalidQuestion)
		}
		matched := false
		for _, o := range opts {
			if o != "" && strings.EqualFold(o, q.CorrectAnswer) {
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: correct answer must match an option", ErrInvalidQuestion)
		}
		q.Option1, q.Option2, q.Option3, q.Option4 = opts[0], opts[1], opts[2], opts[3]

	case model.QuestionTypeTrueFalse:
		key := strings.ToLower(q.CorrectAnswer)
		if key != "true" && key != "false" {
			return nil, fmt.Errorf("%w: true/false answer must be true or false", ErrInvalidQuestion)
		}
		q.CorrectAnswer = key
		q.Option1, q.Option2 = "True", "False"

	case model.QuestionTypeShortAnswer:
		// Free text; no options.

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, req.Type)
	}

	return q, nil
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/grading"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/repository"
)

func TestSubmit_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		passing    int
		questions  []model.AddQuestionRequest
		answers    []string
		score      int
		total      int
		percentage float64
		status     model.ResultStatus
	}{
		{
			name:       "multiple choice by index",
			passing:    50,
			questions:  []model.AddQuestionRequest{capitalMC(10)},
			answers:    []string{"1"},
			score:      10,
			total:      10,
			percentage: 100,
			status:     model.ResultStatusPassed,
		},
		{
			name:       "multiple choice wrong text",
			passing:    50,
			questions:  []model.AddQuestionRequest{capitalMC(10)},
			answers:    []string{"London"},
			score:      0,
			total:      10,
			percentage: 0,
			status:     model.ResultStatusFailed,
		},
		{
			name:       "true false and short answer spellings",
			passing:    50,
			questions:  []model.AddQuestionRequest{trueFalse("true", 5), shortAnswer("Paris", 5)},
			answers:    []string{"t", "paris"},
			score:      10,
			total:      10,
			percentage: 100,
			status:     model.ResultStatusPassed,
		},
		{
			name:       "passing boundary is inclusive",
			passing:    60,
			questions:  []model.AddQuestionRequest{capitalMC(6), trueFalse("true", 4)},
			answers:    []string{"Paris", "false"},
			score:      6,
			total:      10,
			percentage: 60,
			status:     model.ResultStatusPassed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			exam, questions := env.publishExam(t, tc.passing, tc.questions...)

			answers := make([]model.AnswerRequest, len(questions))
			for i, q := range questions {
				answers[i] = answer(q, tc.answers[i])
			}

			result, err := env.submitSvc.Submit(context.Background(), SubmitCommand{
				ExamID:    exam.ID,
				StudentID: 42,
				TimeTaken: 17,
				Answers:   answers,
			})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}

			if result.Score != tc.score || result.TotalMarks != tc.total {
				t.Errorf("score %d/%d, want %d/%d", result.Score, result.TotalMarks, tc.score, tc.total)
			}
			if result.Percentage != tc.percentage {
				t.Errorf("Percentage = %v, want %v", result.Percentage, tc.percentage)
			}
			if result.Status != tc.status {
				t.Errorf("Status = %s, want %s", result.Status, tc.status)
			}
			if result.TimeTaken != 17 || result.StudentID != 42 || result.ExamID != exam.ID {
				t.Errorf("unexpected result identity: %+v", result)
			}
			if len(result.Answers) != len(questions) {
				t.Fatalf("got %d answers, want %d", len(result.Answers), len(questions))
			}

			stored, err := env.results.GetByID(context.Background(), result.ID)
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if stored.Score != tc.score || stored.Status != tc.status || len(stored.Answers) != len(questions) {
				t.Errorf("stored result differs: %+v", stored)
			}
		})
	}
}

func TestSubmit_ResubmissionRejected(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.publishExam(t, 50, capitalMC(10))
	ctx := context.Background()

	cmd := SubmitCommand{ExamID: exam.ID, StudentID: 42, Answers: []model.AnswerRequest{answer(questions[0], "1")}}
	first, err := env.submitSvc.Submit(ctx, cmd)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	cmd.Answers = []model.AnswerRequest{answer(questions[0], "2")}
	if _, err := env.submitSvc.Submit(ctx, cmd); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("second Submit error = %v, want ErrAlreadySubmitted", err)
	}

	if n := env.countResults(t, exam.ID); n != 1 {
		t.Fatalf("got %d results, want 1", n)
	}
	stored, err := env.results.FindByExamAndStudent(ctx, exam.ID, 42)
	if err != nil {
		t.Fatalf("FindByExamAndStudent: %v", err)
	}
	if stored.ID != first.ID || stored.Score != 10 {
		t.Fatalf("first result was modified: %+v", stored)
	}
}

func TestSubmit_ForeignQuestionRejected(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.publishExam(t, 50, capitalMC(10))
	other, otherQuestions := env.publishExam(t, 50, capitalMC(10))

	_, err := env.submitSvc.Submit(context.Background(), SubmitCommand{
		ExamID:    exam.ID,
		StudentID: 42,
		Answers: []model.AnswerRequest{
			answer(questions[0], "1"),
			answer(otherQuestions[0], "1"),
		},
	})
	if !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("Submit error = %v, want ErrQuestionNotFound", err)
	}

	if n := env.countResults(t, exam.ID); n != 0 {
		t.Fatalf("got %d results for exam, want 0", n)
	}
	if n := env.countResults(t, other.ID); n != 0 {
		t.Fatalf("got %d results for other exam, want 0", n)
	}
	if len(env.events.events) != 0 {
		t.Fatalf("no event expected, got %d", len(env.events.events))
	}
}

func TestSubmit_UnknownQuestionRejected(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.publishExam(t, 50, capitalMC(10))

	_, err := env.submitSvc.Submit(context.Background(), SubmitCommand{
		ExamID:    exam.ID,
		StudentID: 42,
		Answers:   []model.AnswerRequest{{QuestionID: uuid.New(), Answer: "1"}},
	})
	if !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("Submit error = %v, want ErrQuestionNotFound", err)
	}
}

func TestSubmit_DuplicateAnswerRejected(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.publishExam(t, 50, capitalMC(10))

	_, err := env.submitSvc.Submit(context.Background(), SubmitCommand{
		ExamID:    exam.ID,
		StudentID: 42,
		Answers:   []model.AnswerRequest{answer(questions[0], "2"), answer(questions[0], "1")},
	})
	if !errors.Is(err, ErrDuplicateAnswer) {
		t.Fatalf("Submit error = %v, want ErrDuplicateAnswer", err)
	}
	if n := env.countResults(t, exam.ID); n != 0 {
		t.Fatalf("got %d results, want 0", n)
	}
}

func TestSubmit_OmittedQuestionsScoreZero(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.publishExam(t, 50, capitalMC(10), trueFalse("true", 5), shortAnswer("Paris", 5))

	result, err := env.submitSvc.Submit(context.Background(), SubmitCommand{
		ExamID:    exam.ID,
		StudentID: 42,
		Answers:   []model.AnswerRequest{answer(questions[0], "1")},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Score != 10 || result.TotalMarks != 20 || result.Percentage != 50 {
		t.Fatalf("got %d/%d (%v%%), want 10/20 (50%%)", result.Score, result.TotalMarks, result.Percentage)
	}
	if result.Status != model.ResultStatusPassed {
		t.Fatalf("Status = %s, want PASSED", result.Status)
	}
	if len(result.Answers) != 1 {
		t.Fatalf("only submitted answers are stored, got %d", len(result.Answers))
	}
}

func TestSubmit_EmptyAnswerSet(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.publishExam(t, 50, capitalMC(10))

	result, err := env.submitSvc.Submit(context.Background(), SubmitCommand{ExamID: exam.ID, StudentID: 42})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Score != 0 || result.Status != model.ResultStatusFailed || len(result.Answers) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSubmit_ExamAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.submitSvc.Submit(ctx, SubmitCommand{ExamID: uuid.New(), StudentID: 42}); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("missing exam error = %v, want ErrExamNotFound", err)
	}

	draft, err := env.examSvc.Create(ctx, testAuthorID, model.CreateExamRequest{Title: "Draft", DurationMinutes: 10, PassingMarks: 50})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.submitSvc.Submit(ctx, SubmitCommand{ExamID: draft.ID, StudentID: 42}); !errors.Is(err, ErrExamNotAvailable) {
		t.Fatalf("draft exam error = %v, want ErrExamNotAvailable", err)
	}

	closed, _ := env.publishExam(t, 50, capitalMC(10))
	if err := env.examSvc.Close(ctx, closed.ID, testAuthorID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := env.submitSvc.Submit(ctx, SubmitCommand{ExamID: closed.ID, StudentID: 42}); !errors.Is(err, ErrExamNotAvailable) {
		t.Fatalf("completed exam error = %v, want ErrExamNotAvailable", err)
	}
}

func TestSubmit_ClosedExamServedFromCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, questions := env.publishExam(t, 50, capitalMC(10))

	cached, err := env.exams.FindWithQuestions(ctx, exam.ID)
	if err != nil {
		t.Fatalf("FindWithQuestions: %v", err)
	}
	if err := env.examSvc.Close(ctx, exam.ID, testAuthorID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	svc := NewSubmissionService(&staleReadStore{ExamStore: env.exams, snapshot: cached}, env.results, env.events, zerolog.Nop())
	_, err = svc.Submit(ctx, SubmitCommand{
		ExamID:    exam.ID,
		StudentID: 42,
		TimeTaken: 5,
		Answers:   []model.AnswerRequest{answer(questions[0], "1")},
	})
	if !errors.Is(err, ErrExamNotAvailable) {
		t.Fatalf("Submit error = %v, want ErrExamNotAvailable", err)
	}
	if n := env.countResults(t, exam.ID); n != 0 {
		t.Fatalf("got %d results, want 0", n)
	}
	if len(env.events.events) != 0 {
		t.Fatalf("rejected submission published %d events", len(env.events.events))
	}
}

func TestSubmit_ZeroTotalMarksIsDataIntegrity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Written straight to the store: the authoring flow never publishes an empty exam.
	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           "Broken",
		AuthorID:        testAuthorID,
		DurationMinutes: 10,
		PassingMarks:    50,
		Status:          model.ExamStatusPublished,
	}
	if err := env.exams.Create(ctx, exam); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := env.submitSvc.Submit(ctx, SubmitCommand{ExamID: exam.ID, StudentID: 42})
	if !errors.Is(err, grading.ErrDataIntegrity) {
		t.Fatalf("Submit error = %v, want ErrDataIntegrity", err)
	}
	if n := env.countResults(t, exam.ID); n != 0 {
		t.Fatalf("got %d results, want 0", n)
	}
}

func TestSubmit_ConcurrentSubmissionsYieldOneResult(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.publishExam(t, 50, capitalMC(10))

	const attempts = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
		others    []error
	)

	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ans := "1"
			if i%2 == 1 {
				ans = "2"
			}
			_, err := env.submitSvc.Submit(context.Background(), SubmitCommand{
				ExamID:    exam.ID,
				StudentID: 42,
				Answers:   []model.AnswerRequest{answer(questions[0], ans)},
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadySubmitted):
				rejected++
			default:
				others = append(others, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || rejected != attempts-1 {
		t.Fatalf("successes=%d rejected=%d, want 1 and %d", successes, rejected, attempts-1)
	}
	if n := env.countResults(t, exam.ID); n != 1 {
		t.Fatalf("got %d results, want 1", n)
	}
	if len(env.events.events) != 1 {
		t.Fatalf("got %d events, want 1", len(env.events.events))
	}
}

func TestSubmit_PublishesEventAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	env.events.err = errors.New("queue unavailable")
	exam, questions := env.publishExam(t, 50, capitalMC(10))

	result, err := env.submitSvc.Submit(context.Background(), SubmitCommand{
		ExamID:    exam.ID,
		StudentID: 42,
		Answers:   []model.AnswerRequest{answer(questions[0], "1")},
	})
	if err != nil {
		t.Fatalf("publisher failure must not fail Submit: %v", err)
	}

	if len(env.events.events) != 1 {
		t.Fatalf("got %d events, want 1", len(env.events.events))
	}
	ev := env.events.events[0]
	if ev.Type != model.GradingEventResultSubmitted || ev.ResultID != result.ID || ev.Score != 10 || ev.Status != model.ResultStatusPassed {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

// lostRaceResults passes the pre-check and then loses the insert race.
type lostRaceResults struct {
	ResultStore
	findErr error
	saveErr error
}

func (r lostRaceResults) FindByExamAndStudent(context.Context, uuid.UUID, int) (*model.ExamResult, error) {
	return nil, r.findErr
}

func (r lostRaceResults) SaveWithAnswers(context.Context, *model.ExamResult) error {
	return r.saveErr
}

func TestSubmit_GuardOutcomes(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.publishExam(t, 50, capitalMC(10))
	storeDown := errors.New("connection reset")

	tests := []struct {
		name     string
		results  lostRaceResults
		wantErr  error
		notAlias bool
	}{
		{
			name:    "duplicate insert maps to already submitted",
			results: lostRaceResults{findErr: repository.ErrNotFound, saveErr: repository.ErrDuplicateResult},
			wantErr: ErrAlreadySubmitted,
		},
		{
			name:    "exam closed before the write maps to not available",
			results: lostRaceResults{findErr: repository.ErrNotFound, saveErr: repository.ErrStatusConflict},
			wantErr: ErrExamNotAvailable,
		},
		{
			name:     "save failure propagates",
			results:  lostRaceResults{findErr: repository.ErrNotFound, saveErr: storeDown},
			wantErr:  storeDown,
			notAlias: true,
		},
		{
			name:     "lookup failure propagates",
			results:  lostRaceResults{findErr: storeDown},
			wantErr:  storeDown,
			notAlias: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewSubmissionService(env.exams, tc.results, nil, zerolog.Nop())
			_, err := svc.Submit(context.Background(), SubmitCommand{
				ExamID:    exam.ID,
				StudentID: 42,
				Answers:   []model.AnswerRequest{answer(questions[0], "1")},
			})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Submit error = %v, want %v", err, tc.wantErr)
			}
			if tc.notAlias && errors.Is(err, ErrAlreadySubmitted) {
				t.Fatalf("storage failure reported as ErrAlreadySubmitted: %v", err)
			}
		})
	}
}

func TestSubmit_SubmittedAtUsesClock(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.publishExam(t, 50, capitalMC(10))
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	env.submitSvc.now = func() time.Time { return fixed }

	result, err := env.submitSvc.Submit(context.Background(), SubmitCommand{
		ExamID:    exam.ID,
		StudentID: 42,
		Answers:   []model.AnswerRequest{answer(questions[0], "1")},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.SubmittedAt.Equal(fixed) {
		t.Fatalf("SubmittedAt = %v, want %v", result.SubmittedAt, fixed)
	}

	stored, err := env.results.GetByID(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !stored.SubmittedAt.Equal(fixed) {
		t.Fatalf("stored SubmittedAt = %v, want %v", stored.SubmittedAt, fixed)
	}
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/model"
)

func TestBuildQuestion(t *testing.T) {
	examID := uuid.New()

	tests := []struct {
		name    string
		req     model.AddQuestionRequest
		wantErr bool
		check   func(t *testing.T, q *model.Question)
	}{
		{
			name: "multiple choice key matches option",
			req:  capitalMC(10),
			check: func(t *testing.T, q *model.Question) {
				if q.Option1 != "Paris" || q.Option4 != "Madrid" || q.ExamID != examID {
					t.Errorf("unexpected question: %+v", q)
				}
			},
		},
		{
			name: "multiple choice with two options",
			req: model.AddQuestionRequest{Text: "2+2?", Type: "MULTIPLE_CHOICE", Option1: " 4 ", Option2: "5",
				CorrectAnswer: "4", Points: 1},
			check: func(t *testing.T, q *model.Question) {
				if q.Option1 != "4" || len(q.Options()) != 2 {
					t.Errorf("options not trimmed: %+v", q.Options())
				}
			},
		},
		{
			name:    "multiple choice key not an option",
			req:     model.AddQuestionRequest{Text: "2+2?", Type: "MULTIPLE_CHOICE", Option1: "4", Option2: "5", CorrectAnswer: "6", Points: 1},
			wantErr: true,
		},
		{
			name:    "multiple choice missing second option",
			req:     model.AddQuestionRequest{Text: "2+2?", Type: "MULTIPLE_CHOICE", Option1: "4", CorrectAnswer: "4", Points: 1},
			wantErr: true,
		},
		{
			name:    "multiple choice gap in options",
			req:     model.AddQuestionRequest{Text: "2+2?", Type: "MULTIPLE_CHOICE", Option1: "4", Option2: "5", Option4: "6", CorrectAnswer: "4", Points: 1},
			wantErr: true,
		},
		{
			name: "true false key is normalized",
			req:  trueFalse("TRUE", 2),
			check: func(t *testing.T, q *model.Question) {
				if q.CorrectAnswer != "true" || q.Option1 != "True" || q.Option2 != "False" {
					t.Errorf("unexpected question: %+v", q)
				}
			},
		},
		{
			name:    "true false key must be boolean",
			req:     trueFalse("yes", 2),
			wantErr: true,
		},
		{
			name: "short answer drops options",
			req: model.AddQuestionRequest{Text: "Capital?", Type: "SHORT_ANSWER", Option1: "ignored",
				CorrectAnswer: "Paris", Points: 3},
			check: func(t *testing.T, q *model.Question) {
				if q.Option1 != "" || len(q.Options()) != 0 {
					t.Errorf("short answer kept options: %+v", q)
				}
			},
		},
		{
			name:    "unknown type",
			req:     model.AddQuestionRequest{Text: "Essay", Type: "ESSAY", CorrectAnswer: "x", Points: 3},
			wantErr: true,
		},
		{
			name:    "blank key",
			req:     model.AddQuestionRequest{Text: "Capital?", Type: "SHORT_ANSWER", CorrectAnswer: "   ", Points: 3},
			wantErr: true,
		},
		{
			name:    "non-positive points",
			req:     model.AddQuestionRequest{Text: "Capital?", Type: "SHORT_ANSWER", CorrectAnswer: "Paris"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := buildQuestion(examID, tc.req)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidQuestion) {
					t.Fatalf("error = %v, want ErrInvalidQuestion", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildQuestion: %v", err)
			}
			if q.ID == uuid.Nil {
				t.Error("question id not assigned")
			}
			if tc.check != nil {
				tc.check(t, q)
			}
		})
	}
}

func TestExamService_PublishFreezesTotalMarks(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.publishExam(t, 50, capitalMC(10), trueFalse("true", 5))

	if exam.Status != model.ExamStatusPublished || exam.TotalMarks != 15 || exam.PublishedAt == nil {
		t.Fatalf("unexpected published exam: %+v", exam)
	}

	stored, err := env.exams.GetByID(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.TotalMarks != 15 || stored.Status != model.ExamStatusPublished {
		t.Fatalf("stored exam not published: %+v", stored)
	}

	// Published exams are frozen.
	if _, err := env.examSvc.AddQuestion(context.Background(), exam.ID, testAuthorID, capitalMC(1)); !errors.Is(err, ErrExamNotDraft) {
		t.Fatalf("AddQuestion error = %v, want ErrExamNotDraft", err)
	}
	if _, err := env.examSvc.Publish(context.Background(), exam.ID, testAuthorID); !errors.Is(err, ErrExamNotDraft) {
		t.Fatalf("second Publish error = %v, want ErrExamNotDraft", err)
	}
}

func TestExamService_PublishRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam, err := env.examSvc.Create(ctx, testAuthorID, model.CreateExamRequest{Title: "  Empty  ", DurationMinutes: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if exam.Title != "Empty" || exam.Status != model.ExamStatusDraft {
		t.Fatalf("unexpected exam: %+v", exam)
	}

	if _, err := env.examSvc.Publish(ctx, exam.ID, testAuthorID); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("Publish error = %v, want ErrNoQuestions", err)
	}
	if _, err := env.examSvc.AddQuestion(ctx, exam.ID, testAuthorID+1, capitalMC(1)); !errors.Is(err, ErrNotExamAuthor) {
		t.Fatalf("AddQuestion error = %v, want ErrNotExamAuthor", err)
	}
	if _, err := env.examSvc.Publish(ctx, exam.ID, testAuthorID+1); !errors.Is(err, ErrNotExamAuthor) {
		t.Fatalf("Publish error = %v, want ErrNotExamAuthor", err)
	}
	if _, err := env.examSvc.Publish(ctx, uuid.New(), testAuthorID); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("Publish error = %v, want ErrExamNotFound", err)
	}
	if err := env.examSvc.Close(ctx, exam.ID, testAuthorID); !errors.Is(err, ErrExamNotPublished) {
		t.Fatalf("Close error = %v, want ErrExamNotPublished", err)
	}
}

func TestExamService_GetForAuthor(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.publishExam(t, 50, capitalMC(10))
	ctx := context.Background()

	got, err := env.examSvc.GetForAuthor(ctx, exam.ID, testAuthorID)
	if err != nil {
		t.Fatalf("GetForAuthor: %v", err)
	}
	if len(got.Questions) != 1 || got.Questions[0].CorrectAnswer != "Paris" {
		t.Fatalf("author view must include answer keys: %+v", got.Questions)
	}

	if _, err := env.examSvc.GetForAuthor(ctx, exam.ID, testAuthorID+1); !errors.Is(err, ErrNotExamAuthor) {
		t.Fatalf("GetForAuthor error = %v, want ErrNotExamAuthor", err)
	}
}

func TestExamService_GetPaper(t *testing.T) {
	env := newTestEnv(t)
	exam, questions := env.publishExam(t, 50, capitalMC(10), trueFalse("true", 5), shortAnswer("Paris", 5))
	ctx := context.Background()

	paper, err := env.examSvc.GetPaper(ctx, exam.ID)
	if err != nil {
		t.Fatalf("GetPaper: %v", err)
	}
	if paper.TotalMarks != 20 || len(paper.Questions) != 3 {
		t.Fatalf("unexpected paper: %+v", paper)
	}

	byID := map[uuid.UUID]model.QuestionForStudent{}
	for _, q := range paper.Questions {
		byID[q.ID] = q
	}
	if got := byID[questions[0].ID].Options; len(got) != 4 || got[0] != "Paris" {
		t.Errorf("multiple choice options = %v", got)
	}
	if got := byID[questions[1].ID].Options; len(got) != 2 || got[0] != "True" || got[1] != "False" {
		t.Errorf("true/false options = %v", got)
	}
	if got := byID[questions[2].ID].Options; len(got) != 0 {
		t.Errorf("short answer options = %v", got)
	}

	if err := env.examSvc.Close(ctx, exam.ID, testAuthorID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := env.examSvc.GetPaper(ctx, exam.ID); !errors.Is(err, ErrExamNotAvailable) {
		t.Fatalf("GetPaper on closed exam error = %v, want ErrExamNotAvailable", err)
	}
	if _, err := env.examSvc.GetPaper(ctx, uuid.New()); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("GetPaper error = %v, want ErrExamNotFound", err)
	}
}

type recordingCache struct {
	warmed map[uuid.UUID]int
	err    error
}

func (c *recordingCache) Warm(_ context.Context, exam *model.Exam) error {
	if c.err != nil {
		return c.err
	}
	if c.warmed == nil {
		c.warmed = map[uuid.UUID]int{}
	}
	c.warmed[exam.ID] = len(exam.Questions)
	return nil
}

func TestExamService_CacheWarming(t *testing.T) {
	env := newTestEnv(t)
	cache := &recordingCache{}
	env.examSvc = NewExamService(env.exams, cache, zerolog.Nop())
	ctx := context.Background()

	published, _ := env.publishExam(t, 50, capitalMC(10), trueFalse("true", 5))
	if cache.warmed[published.ID] != 2 {
		t.Fatalf("publish did not warm the cache: %v", cache.warmed)
	}

	closed, _ := env.publishExam(t, 50, capitalMC(10))
	if err := env.examSvc.Close(ctx, closed.ID, testAuthorID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cache.warmed = nil
	if err := env.examSvc.PrewarmAllCaches(ctx); err != nil {
		t.Fatalf("PrewarmAllCaches: %v", err)
	}
	if len(cache.warmed) != 1 || cache.warmed[published.ID] != 2 {
		t.Fatalf("prewarm should load only published exams with questions: %v", cache.warmed)
	}

	// Cache failures never fail publishing.
	cache.err = errors.New("redis down")
	env.publishExam(t, 50, capitalMC(3))
	if err := env.examSvc.PrewarmAllCaches(ctx); err != nil {
		t.Fatalf("PrewarmAllCaches with failing cache: %v", err)
	}
}

func TestExamService_PrewarmWithoutCache(t *testing.T) {
	env := newTestEnv(t)
	env.publishExam(t, 50, capitalMC(10))
	if err := env.examSvc.PrewarmAllCaches(context.Background()); err != nil {
		t.Fatalf("PrewarmAllCaches: %v", err)
	}
}

func TestExamService_QuestionAddedWhilePublishing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam, err := env.examSvc.Create(ctx, testAuthorID, model.CreateExamRequest{Title: "Race", DurationMinutes: 10, PassingMarks: 50})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	first, err := env.examSvc.AddQuestion(ctx, exam.ID, testAuthorID, capitalMC(10))
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}

	// A second author request lands after Publish has read the exam.
	var (
		late    *model.Question
		lateErr error
	)
	hooked := &hookedExamStore{ExamStore: env.exams}
	hooked.beforePublish = func() {
		late, lateErr = env.examSvc.AddQuestion(ctx, exam.ID, testAuthorID, trueFalse("true", 10))
	}

	published, err := NewExamService(hooked, nil, zerolog.Nop()).Publish(ctx, exam.ID, testAuthorID)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if lateErr != nil {
		t.Fatalf("AddQuestion before the publish write: %v", lateErr)
	}
	if published.TotalMarks != 20 || len(published.Questions) != 2 {
		t.Fatalf("published exam = total %d with %d questions, want 20 with 2", published.TotalMarks, len(published.Questions))
	}

	stored, err := env.exams.GetByID(ctx, exam.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.TotalMarks != 20 {
		t.Fatalf("stored total_marks = %d, want 20", stored.TotalMarks)
	}

	result, err := env.submitSvc.Submit(ctx, SubmitCommand{
		ExamID:    exam.ID,
		StudentID: 42,
		Answers:   []model.AnswerRequest{answer(first, "1"), answer(late, "true")},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Score != 20 || result.TotalMarks != 20 || result.Percentage != 100 {
		t.Fatalf("result = score %d of %d (%v%%), want 20 of 20 (100%%)", result.Score, result.TotalMarks, result.Percentage)
	}
}

func TestExamService_StaleDraftReadCannotChangePublishedExam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam, err := env.examSvc.Create(ctx, testAuthorID, model.CreateExamRequest{Title: "Frozen", DurationMinutes: 10, PassingMarks: 50})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.examSvc.AddQuestion(ctx, exam.ID, testAuthorID, capitalMC(10)); err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	draft, err := env.exams.FindWithQuestions(ctx, exam.ID)
	if err != nil {
		t.Fatalf("FindWithQuestions: %v", err)
	}
	if _, err := env.examSvc.Publish(ctx, exam.ID, testAuthorID); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	stale := NewExamService(&staleReadStore{ExamStore: env.exams, snapshot: draft}, nil, zerolog.Nop())
	if _, err := stale.AddQuestion(ctx, exam.ID, testAuthorID, trueFalse("true", 5)); !errors.Is(err, ErrExamNotDraft) {
		t.Fatalf("AddQuestion error = %v, want ErrExamNotDraft", err)
	}
	if _, err := stale.Publish(ctx, exam.ID, testAuthorID); !errors.Is(err, ErrExamNotDraft) {
		t.Fatalf("Publish error = %v, want ErrExamNotDraft", err)
	}

	stored, err := env.exams.FindWithQuestions(ctx, exam.ID)
	if err != nil {
		t.Fatalf("FindWithQuestions: %v", err)
	}
	if len(stored.Questions) != 1 || stored.TotalMarks != 10 {
		t.Fatalf("published exam changed: total %d with %d questions", stored.TotalMarks, len(stored.Questions))
	}
}

// snapshotCache keeps copies of warmed exams, as Redis would.
type snapshotCache struct {
	exams map[uuid.UUID]*model.Exam
}

func (c *snapshotCache) Warm(_ context.Context, exam *model.Exam) error {
	if c.exams == nil {
		c.exams = map[uuid.UUID]*model.Exam{}
	}
	e := *exam
	c.exams[exam.ID] = &e
	return nil
}

func TestExamService_PrewarmRacingCloseRejectsSubmissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, questions := env.publishExam(t, 50, capitalMC(10))

	// The exam is closed after the refresher listed it as published and
	// before its entry is written.
	hooked := &hookedExamStore{ExamStore: env.exams}
	hooked.onListQuestions = func() {
		if err := env.examSvc.Close(ctx, exam.ID, testAuthorID); err != nil {
			t.Errorf("Close: %v", err)
		}
	}
	cache := &snapshotCache{}
	if err := NewExamService(hooked, cache, zerolog.Nop()).PrewarmAllCaches(ctx); err != nil {
		t.Fatalf("PrewarmAllCaches: %v", err)
	}

	entry, ok := cache.exams[exam.ID]
	if !ok || entry.Status != model.ExamStatusPublished {
		t.Fatalf("expected a stale PUBLISHED entry, got %+v", entry)
	}

	svc := NewSubmissionService(&staleReadStore{ExamStore: env.exams, snapshot: entry}, env.results, env.events, zerolog.Nop())
	_, err := svc.Submit(ctx, SubmitCommand{
		ExamID:    exam.ID,
		StudentID: 42,
		Answers:   []model.AnswerRequest{answer(questions[0], "1")},
	})
	if !errors.Is(err, ErrExamNotAvailable) {
		t.Fatalf("Submit error = %v, want ErrExamNotAvailable", err)
	}
	if n := env.countResults(t, exam.ID); n != 0 {
		t.Fatalf("got %d results for a closed exam, want 0", n)
	}
}

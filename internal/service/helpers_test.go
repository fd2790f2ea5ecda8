package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/database"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/repository/sqlite"
)

const testAuthorID = 7

type testEnv struct {
	exams     *sqlite.ExamStore
	results   *sqlite.ResultStore
	examSvc   *ExamService
	submitSvc *SubmissionService
	resultSvc *ResultService
	events    *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewSQLite(ctx, filepath.Join(t.TempDir(), "grader.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := sqlite.EnsureSchema(ctx, db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	env := &testEnv{
		exams:   sqlite.NewExamStore(db),
		results: sqlite.NewResultStore(db),
		events:  &recordingPublisher{},
	}
	env.examSvc = NewExamService(env.exams, nil, zerolog.Nop())
	env.submitSvc = NewSubmissionService(env.exams, env.results, env.events, zerolog.Nop())
	env.resultSvc = NewResultService(env.exams, env.results)
	return env
}

// publishExam authors and publishes an exam through ExamService.
func (e *testEnv) publishExam(t *testing.T, passingMarks int, questions ...model.AddQuestionRequest) (*model.Exam, []*model.Question) {
	t.Helper()
	ctx := context.Background()

	exam, err := e.examSvc.Create(ctx, testAuthorID, model.CreateExamRequest{
		Title:           "General Knowledge",
		DurationMinutes: 30,
		PassingMarks:    passingMarks,
	})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}

	added := make([]*model.Question, len(questions))
	for i, req := range questions {
		q, err := e.examSvc.AddQuestion(ctx, exam.ID, testAuthorID, req)
		if err != nil {
			t.Fatalf("add question %d: %v", i, err)
		}
		added[i] = q
	}

	published, err := e.examSvc.Publish(ctx, exam.ID, testAuthorID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	return published, added
}

func (e *testEnv) countResults(t *testing.T, examID uuid.UUID) int {
	t.Helper()
	results, err := e.results.ListByExam(context.Background(), examID)
	if err != nil {
		t.Fatalf("ListByExam: %v", err)
	}
	return len(results)
}

func capitalMC(points int) model.AddQuestionRequest {
	return model.AddQuestionRequest{
		Text:          "What is the capital of France?",
		Type:          string(model.QuestionTypeMultipleChoice),
		Option1:       "Paris",
		Option2:       "London",
		Option3:       "Berlin",
		Option4:       "Madrid",
		CorrectAnswer: "Paris",
		Points:        points,
	}
}

func trueFalse(key string, points int) model.AddQuestionRequest {
	return model.AddQuestionRequest{
		Text:          "The sun rises in the east.",
		Type:          string(model.QuestionTypeTrueFalse),
		CorrectAnswer: key,
		Points:        points,
		OrderNum:      1,
	}
}

func shortAnswer(key string, points int) model.AddQuestionRequest {
	return model.AddQuestionRequest{
		Text:          "Name the capital of France.",
		Type:          string(model.QuestionTypeShortAnswer),
		CorrectAnswer: key,
		Points:        points,
		OrderNum:      2,
		Explanation:   "Paris has been the capital since 987.",
	}
}

func answer(q *model.Question, a string) model.AnswerRequest {
	return model.AnswerRequest{QuestionID: q.ID, Answer: a}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.GradingEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev model.GradingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

// staleReadStore answers reads from a snapshot taken earlier, the way a warm
// cache or a slow read does, while writes go to the real store.
type staleReadStore struct {
	ExamStore
	snapshot *model.Exam
}

func (s *staleReadStore) GetByID(context.Context, uuid.UUID) (*model.Exam, error) {
	e := *s.snapshot
	return &e, nil
}

func (s *staleReadStore) FindWithQuestions(context.Context, uuid.UUID) (*model.Exam, error) {
	e := *s.snapshot
	return &e, nil
}

// hookedExamStore runs a callback in the middle of an operation, where a
// concurrent request can interleave.
type hookedExamStore struct {
	ExamStore
	beforePublish   func()
	onListQuestions func()
}

func (s *hookedExamStore) Publish(ctx context.Context, id uuid.UUID, publishedAt time.Time) (int, error) {
	if s.beforePublish != nil {
		s.beforePublish()
	}
	return s.ExamStore.Publish(ctx, id, publishedAt)
}

func (s *hookedExamStore) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	if hook := s.onListQuestions; hook != nil {
		s.onListQuestions = nil
		hook()
	}
	return s.ExamStore.ListQuestions(ctx, examID)
}

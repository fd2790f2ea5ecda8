package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/config"
	"github.com/stemsi/exstem-grader/internal/model"
)

// ExamBackend is the exam storage a CachedExamStore reads through to.
// Both the PostgreSQL and the SQLite exam stores satisfy it.
type ExamBackend interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	FindWithQuestions(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	Create(ctx context.Context, e *model.Exam) error
	AddQuestion(ctx context.Context, q *model.Question) error
	Publish(ctx context.Context, id uuid.UUID, publishedAt time.Time) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error
	ListPublished(ctx context.Context) ([]model.Exam, error)
}

// CachedExamStore keeps published exams, answer keys included, in Redis so
// submissions do not reload the question set from the database each time.
// Only PUBLISHED exams are cached; any status change evicts the entry.
type CachedExamStore struct {
	ExamBackend
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewCachedExamStore wraps backend with a Redis read-through cache.
func NewCachedExamStore(backend ExamBackend, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedExamStore {
	return &CachedExamStore{
		ExamBackend: backend,
		rdb:         rdb,
		ttl:         ttl,
		log:         log.With().Str("component", "exam_cache").Logger(),
	}
}

// FindWithQuestions serves the exam from Redis when present. Redis failures
// are logged and fall back to the backend.
func (s *CachedExamStore) FindWithQuestions(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	key := config.CacheKey.ExamDefinitionKey(id.String())

	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var exam model.Exam
		if err := json.Unmarshal(data, &exam); err == nil {
			return &exam, nil
		}
		s.log.Warn().Str("exam_id", id.String()).Msg("Corrupt cache entry, reloading")
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Cache read failed")
	}

	exam, err := s.ExamBackend.FindWithQuestions(ctx, id)
	if err != nil {
		return nil, err
	}

	if exam.Status == model.ExamStatusPublished {
		if err := s.Warm(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Cache write failed")
		}
	}
	return exam, nil
}

// Publish publishes the exam in the backend and drops any stale cache entry.
func (s *CachedExamStore) Publish(ctx context.Context, id uuid.UUID, publishedAt time.Time) (int, error) {
	totalMarks, err := s.ExamBackend.Publish(ctx, id, publishedAt)
	if err != nil {
		return 0, err
	}
	s.evict(ctx, id)
	return totalMarks, nil
}

// UpdateStatus changes the status in the backend and evicts the cache entry.
func (s *CachedExamStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	if err := s.ExamBackend.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.evict(ctx, id)
	return nil
}

// evict drops the cache entry after a committed status change. The change is
// already durable, so a Redis failure is logged rather than returned.
func (s *CachedExamStore) evict(ctx context.Context, id uuid.UUID) {
	if err := s.Invalidate(ctx, id); err != nil {
		s.log.Error().Err(err).Str("exam_id", id.String()).Msg("Cache eviction failed")
	}
}

// Warm stores a fully loaded published exam in Redis. The exam may have been
// read before a concurrent close committed and evicted, so the status is read
// again after the write and a stale entry is dropped.
func (s *CachedExamStore) Warm(ctx context.Context, exam *model.Exam) error {
	if exam.Status != model.ExamStatusPublished {
		return nil
	}

	data, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	key := config.CacheKey.ExamDefinitionKey(exam.ID.String())
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	current, err := s.ExamBackend.GetByID(ctx, exam.ID)
	if err != nil || current.Status != model.ExamStatusPublished {
		if delErr := s.Invalidate(ctx, exam.ID); delErr != nil {
			return delErr
		}
		s.log.Debug().Str("exam_id", exam.ID.String()).Msg("Exam changed while warming, entry dropped")
		return nil
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(exam.Questions)).
		Msg("Cache warmed")
	return nil
}

// Invalidate removes an exam from the cache.
func (s *CachedExamStore) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := s.rdb.Del(ctx, config.CacheKey.ExamDefinitionKey(id.String())).Err(); err != nil {
		return fmt.Errorf("evict exam cache: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-grader/internal/model"
)

// AuditRepository writes grading events into grading_audit_log.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// BulkInsert writes a batch of events with a single UNNEST insert.
// Events already recorded for the same result are skipped, so a requeued
// batch is safe to replay.
func (r *AuditRepository) BulkInsert(ctx context.Context, events []model.GradingEvent) error {
	n := len(events)
	if n == 0 {
		return nil
	}

	types := make([]string, n)
	resultIDs := make([]uuid.UUID, n)
	examIDs := make([]uuid.UUID, n)
	students := make([]int, n)
	scores := make([]int, n)
	totals := make([]int, n)
	percentages := make([]float64, n)
	statuses := make([]string, n)
	occurredAts := make([]time.Time, n)

	for i, ev := range events {
		types[i] = string(ev.Type)
		resultIDs[i] = ev.ResultID
		examIDs[i] = ev.ExamID
		students[i] = ev.StudentID
		scores[i] = ev.Score
		totals[i] = ev.TotalMarks
		percentages[i] = ev.Percentage
		statuses[i] = string(ev.Status)
		occurredAts[i] = ev.OccurredAt
	}

	query := `
		INSERT INTO grading_audit_log
			(event_type, result_id, exam_id, student_id, score, total_marks, percentage, status, occurred_at)
		SELECT *
		FROM UNNEST(
			$1::text[],
			$2::uuid[],
			$3::uuid[],
			$4::int[],
			$5::int[],
			$6::int[],
			$7::float8[],
			$8::text[],
			$9::timestamptz[]
		)
		ON CONFLICT (result_id, event_type) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query, types, resultIDs, examIDs, students, scores, totals, percentages, statuses, occurredAts)
	return err
}

// Insert writes a single event. Used as the fallback when a batch fails.
func (r *AuditRepository) Insert(ctx context.Context, ev model.GradingEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO grading_audit_log
			(event_type, result_id, exam_id, student_id, score, total_marks, percentage, status, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (result_id, event_type) DO NOTHING`,
		string(ev.Type), ev.ResultID, ev.ExamID, ev.StudentID, ev.Score, ev.TotalMarks,
		ev.Percentage, string(ev.Status), ev.OccurredAt)
	return err
}

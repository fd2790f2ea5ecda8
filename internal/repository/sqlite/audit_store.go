package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grader/internal/model"
)

// AuditStore writes grading events into grading_audit_log.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// BulkInsert writes a batch of events in one transaction.
func (s *AuditStore) BulkInsert(ctx context.Context, events []model.GradingEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, ev := range events {
		if err := insertEvent(ctx, tx, ev); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Insert writes a single event.
func (s *AuditStore) Insert(ctx context.Context, ev model.GradingEvent) error {
	return insertEvent(ctx, s.db, ev)
}

// Count returns the number of audit rows recorded for an exam.
func (s *AuditStore) Count(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grading_audit_log WHERE exam_id = ?`, examID).Scan(&n)
	return n, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, ev model.GradingEvent) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO grading_audit_log
			(event_type, result_id, exam_id, student_id, score, total_marks, percentage, status, occurred_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (result_id, event_type) DO NOTHING`,
		string(ev.Type), ev.ResultID, ev.ExamID, ev.StudentID, ev.Score, ev.TotalMarks,
		ev.Percentage, string(ev.Status), toMillis(ev.OccurredAt), toMillis(time.Now()))
	return err
}

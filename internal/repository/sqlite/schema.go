// Package sqlite implements the exam, result and audit stores on an embedded
// SQLite database. It backs local development and the service tests; the
// schema mirrors migrations/ with times stored as unix milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	"time"
)

const schema = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS exams (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  author_id INTEGER NOT NULL,
  duration_minutes INTEGER NOT NULL,
  total_marks INTEGER NOT NULL DEFAULT 0,
  passing_marks INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'DRAFT',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  published_at INTEGER
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  text TEXT NOT NULL,
  type TEXT NOT NULL,
  option1 TEXT NOT NULL DEFAULT '',
  option2 TEXT NOT NULL DEFAULT '',
  option3 TEXT NOT NULL DEFAULT '',
  option4 TEXT NOT NULL DEFAULT '',
  correct_answer TEXT NOT NULL,
  points INTEGER NOT NULL CHECK (points > 0),
  explanation TEXT NOT NULL DEFAULT '',
  order_num INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_questions_exam ON questions(exam_id, order_num);

CREATE TABLE IF NOT EXISTS exam_results (
  id TEXT PRIMARY KEY,
  exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
  student_id INTEGER NOT NULL,
  score INTEGER NOT NULL,
  total_marks INTEGER NOT NULL,
  percentage REAL NOT NULL,
  status TEXT NOT NULL,
  time_taken INTEGER NOT NULL DEFAULT 0,
  submitted_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_exam_results_exam_student ON exam_results(exam_id, student_id);
CREATE INDEX IF NOT EXISTS idx_exam_results_student ON exam_results(student_id, submitted_at);

CREATE TABLE IF NOT EXISTS student_answers (
  id TEXT PRIMARY KEY,
  exam_result_id TEXT NOT NULL REFERENCES exam_results(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL REFERENCES questions(id),
  answer TEXT NOT NULL DEFAULT '',
  is_correct INTEGER NOT NULL,
  points_awarded INTEGER NOT NULL,
  UNIQUE (exam_result_id, question_id)
);

CREATE TABLE IF NOT EXISTS grading_audit_log (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  event_type TEXT NOT NULL,
  result_id TEXT NOT NULL,
  exam_id TEXT NOT NULL,
  student_id INTEGER NOT NULL,
  score INTEGER NOT NULL,
  total_marks INTEGER NOT NULL,
  percentage REAL NOT NULL,
  status TEXT NOT NULL,
  occurred_at INTEGER NOT NULL,
  recorded_at INTEGER NOT NULL,
  UNIQUE (result_id, event_type)
);
`

// EnsureSchema creates all tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateResult is returned when a result already exists for the
	// same (exam, student) pair.
	ErrDuplicateResult = errors.New("result already exists for this exam and student")
	// ErrStatusConflict is returned when a write finds the exam in a status
	// that no longer allows it: questions and publishing need DRAFT, results
	// need PUBLISHED.
	ErrStatusConflict = errors.New("exam status does not allow this change")
)

// UniqueResultIndex is the index that keeps one result per (exam, student).
const UniqueResultIndex = "uq_exam_results_exam_student"

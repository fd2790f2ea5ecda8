package model

import (
	"time"

	"github.com/google/uuid"
)

// GradingEventType names a grading side-channel event.
type GradingEventType string

const (
	GradingEventResultSubmitted GradingEventType = "result.submitted"
)

// GradingEvent is emitted after a result has been committed. It is consumed by
// the audit worker and the live exam monitor and never feeds back into grading.
type GradingEvent struct {
	Type       GradingEventType `json:"type"`
	ResultID   uuid.UUID        `json:"result_id"`
	ExamID     uuid.UUID        `json:"exam_id"`
	StudentID  int              `json:"student_id"`
	Score      int              `json:"score"`
	TotalMarks int              `json:"total_marks"`
	Percentage float64          `json:"percentage"`
	Status     ResultStatus     `json:"status"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewResultSubmittedEvent builds the event for a freshly persisted result.
func NewResultSubmittedEvent(r *ExamResult) GradingEvent {
	return GradingEvent{
		Type:       GradingEventResultSubmitted,
		ResultID:   r.ID,
		ExamID:     r.ExamID,
		StudentID:  r.StudentID,
		Score:      r.Score,
		TotalMarks: r.TotalMarks,
		Percentage: r.Percentage,
		Status:     r.Status,
		OccurredAt: r.SubmittedAt,
	}
}

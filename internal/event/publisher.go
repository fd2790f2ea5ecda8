// Package event carries grading events out of the submission path. Publishers
// run after a result is committed; their failures never affect the result.
package event

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/model"
)

// Publisher emits grading events to a side channel.
type Publisher interface {
	Publish(ctx context.Context, ev model.GradingEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, model.GradingEvent) error { return nil }

// LogPublisher writes each event as a structured log line.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "grading_events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, ev model.GradingEvent) error {
	p.log.Info().
		Str("event", string(ev.Type)).
		Str("result_id", ev.ResultID.String()).
		Str("exam_id", ev.ExamID.String()).
		Int("student_id", ev.StudentID).
		Int("score", ev.Score).
		Int("total_marks", ev.TotalMarks).
		Float64("percentage", ev.Percentage).
		Str("status", string(ev.Status)).
		Msg("Exam graded")
	return nil
}

// Multi fans an event out to several publishers. Every publisher is tried;
// the errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev model.GradingEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

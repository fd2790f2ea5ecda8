// Package grading holds the pure grading rules: per-answer evaluation and
// score aggregation. Nothing in this package performs I/O.
package grading

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-grader/internal/model"
)

// Evaluation is the graded outcome of one submitted answer.
type Evaluation struct {
	QuestionID    uuid.UUID
	Answer        string
	IsCorrect     bool
	PointsAwarded int
}

// Evaluate grades a raw submitted answer against the question's answer key.
// Scoring is all-or-nothing: PointsAwarded is either 0 or q.Points.
func Evaluate(q *model.Question, submitted string) Evaluation {
	ev := Evaluation{
		QuestionID: q.ID,
		Answer:     submitted,
		IsCorrect:  isCorrect(q, submitted),
	}
	if ev.IsCorrect {
		ev.PointsAwarded = q.Points
	}
	return ev
}

func isCorrect(q *model.Question, submitted string) bool {
	answer := strings.TrimSpace(submitted)
	if answer == "" {
		return false
	}

	// A blank key can never be matched.
	key := strings.TrimSpace(q.CorrectAnswer)
	if key == "" {
		return false
	}

	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		return matchMultipleChoice(q, answer, key)
	case model.QuestionTypeTrueFalse:
		return matchTrueFalse(answer, key)
	case model.QuestionTypeShortAnswer:
		return strings.EqualFold(answer, key)
	default:
		return false
	}
}

// matchMultipleChoice accepts either a 1-based option index or the option text.
func matchMultipleChoice(q *model.Question, answer, key string) bool {
	index, err := strconv.Atoi(answer)
	if err != nil {
		return strings.EqualFold(answer, key)
	}

	option, ok := q.Option(index)
	if !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(option), key)
}

// matchTrueFalse normalizes t/f and 1/0 spellings before comparing.
func matchTrueFalse(answer, key string) bool {
	var normalized string
	switch strings.ToLower(answer) {
	case "true", "t", "1":
		normalized = "true"
	case "false", "f", "0":
		normalized = "false"
	default:
		return false
	}
	return strings.EqualFold(key, normalized)
}

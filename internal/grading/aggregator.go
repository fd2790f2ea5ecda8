package grading

import (
	"errors"
	"fmt"

	"github.com/stemsi/exstem-grader/internal/model"
)

// ErrDataIntegrity reports exam data that cannot be graded, such as a
// published exam with no marks to divide by.
var ErrDataIntegrity = errors.New("data integrity violation")

// Outcome is the aggregate of a graded submission.
type Outcome struct {
	Score      int
	TotalMarks int
	Percentage float64
	Status     model.ResultStatus
}

// Aggregate folds evaluations into a score, a percentage of totalMarks and a
// pass/fail status. passingMarks is a percentage threshold, compared
// inclusively against the computed percentage, never against the raw score.
func Aggregate(totalMarks, passingMarks int, evaluations []Evaluation) (Outcome, error) {
	if totalMarks <= 0 {
		return Outcome{}, fmt.Errorf("%w: total marks is %d", ErrDataIntegrity, totalMarks)
	}

	score := 0
	for _, ev := range evaluations {
		score += ev.PointsAwarded
	}

	percentage := float64(score) * 100.0 / float64(totalMarks)

	status := model.ResultStatusFailed
	if percentage >= float64(passingMarks) {
		status = model.ResultStatusPassed
	}

	return Outcome{
		Score:      score,
		TotalMarks: totalMarks,
		Percentage: percentage,
		Status:     status,
	}, nil
}

package grading

import (
	"errors"
	"testing"

	"github.com/stemsi/exstem-grader/internal/model"
)

func evals(points ...int) []Evaluation {
	out := make([]Evaluation, len(points))
	for i, p := range points {
		out[i] = Evaluation{IsCorrect: p > 0, PointsAwarded: p}
	}
	return out
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name         string
		totalMarks   int
		passingMarks int
		evaluations  []Evaluation
		score        int
		percentage   float64
		status       model.ResultStatus
	}{
		{name: "all correct", totalMarks: 10, passingMarks: 50, evaluations: evals(10), score: 10, percentage: 100, status: model.ResultStatusPassed},
		{name: "all wrong", totalMarks: 10, passingMarks: 50, evaluations: evals(0), score: 0, percentage: 0, status: model.ResultStatusFailed},
		{name: "two questions", totalMarks: 20, passingMarks: 50, evaluations: evals(10, 10), score: 20, percentage: 100, status: model.ResultStatusPassed},
		{name: "boundary is inclusive", totalMarks: 10, passingMarks: 60, evaluations: evals(6), score: 6, percentage: 60, status: model.ResultStatusPassed},
		{name: "just below boundary", totalMarks: 10, passingMarks: 60, evaluations: evals(5), score: 5, percentage: 50, status: model.ResultStatusFailed},
		{name: "omitted answers still count in total", totalMarks: 30, passingMarks: 50, evaluations: evals(10), score: 10, percentage: 100.0 / 3.0, status: model.ResultStatusFailed},
		{name: "no evaluations", totalMarks: 30, passingMarks: 0, evaluations: nil, score: 0, percentage: 0, status: model.ResultStatusPassed},
		// passingMarks is a percentage: 6 of 200 is 3%, not a pass even though 6 >= 5.
		{name: "threshold is a percentage not raw score", totalMarks: 200, passingMarks: 5, evaluations: evals(6), score: 6, percentage: 3, status: model.ResultStatusFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Aggregate(tc.totalMarks, tc.passingMarks, tc.evaluations)
			if err != nil {
				t.Fatalf("Aggregate: %v", err)
			}
			if got.Score != tc.score {
				t.Errorf("Score = %d, want %d", got.Score, tc.score)
			}
			if got.TotalMarks != tc.totalMarks {
				t.Errorf("TotalMarks = %d, want %d", got.TotalMarks, tc.totalMarks)
			}
			if got.Percentage != tc.percentage {
				t.Errorf("Percentage = %v, want %v", got.Percentage, tc.percentage)
			}
			if got.Status != tc.status {
				t.Errorf("Status = %s, want %s", got.Status, tc.status)
			}
		})
	}
}

func TestAggregate_ZeroTotalMarks(t *testing.T) {
	for _, total := range []int{0, -5} {
		if _, err := Aggregate(total, 50, evals(1)); !errors.Is(err, ErrDataIntegrity) {
			t.Fatalf("Aggregate(total=%d) error = %v, want ErrDataIntegrity", total, err)
		}
	}
}

func TestAggregate_PercentageBounds(t *testing.T) {
	for total := 1; total <= 25; total++ {
		for score := 0; score <= total; score++ {
			got, err := Aggregate(total, 50, evals(score))
			if err != nil {
				t.Fatalf("Aggregate: %v", err)
			}
			if got.Percentage < 0 || got.Percentage > 100 {
				t.Fatalf("score %d of %d gave percentage %v", score, total, got.Percentage)
			}
		}
	}
}

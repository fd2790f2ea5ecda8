package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stemsi/exstem-grader/internal/grading"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/response"
	"github.com/stemsi/exstem-grader/internal/service"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
		known  bool
	}{
		{name: "exam not found", err: service.ErrExamNotFound, status: http.StatusNotFound, code: response.ErrNotFound, known: true},
		{name: "not available", err: service.ErrExamNotAvailable, status: http.StatusConflict, code: response.ErrExamNotAvailable, known: true},
		{name: "already submitted", err: service.ErrAlreadySubmitted, status: http.StatusConflict, code: response.ErrAlreadySubmitted, known: true},
		{name: "wrapped foreign question", err: fmt.Errorf("%w: abc", service.ErrQuestionNotFound), status: http.StatusBadRequest, code: response.ErrQuestionNotFound, known: true},
		{name: "duplicate answer", err: fmt.Errorf("%w: abc", service.ErrDuplicateAnswer), status: http.StatusBadRequest, code: response.ErrDuplicateAnswer, known: true},
		{name: "data integrity", err: fmt.Errorf("exam x: %w", grading.ErrDataIntegrity), status: http.StatusInternalServerError, code: response.ErrDataIntegrity, known: true},
		{name: "not author", err: service.ErrNotExamAuthor, status: http.StatusForbidden, code: response.ErrNotExamAuthor, known: true},
		{name: "storage failure", err: errors.New("connection reset"), status: http.StatusInternalServerError, code: response.ErrInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			se, known := classify(tc.err)
			if se.status != tc.status || se.code != tc.code || known != tc.known {
				t.Fatalf("classify = (%d, %s, %v), want (%d, %s, %v)", se.status, se.code, known, tc.status, tc.code, tc.known)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	if stats := computeStats(nil); stats != (MonitorStats{}) {
		t.Fatalf("empty stats = %+v", stats)
	}

	stats := computeStats([]model.ExamResultSummary{
		{Percentage: 100, Status: model.ResultStatusPassed},
		{Percentage: 60, Status: model.ResultStatusPassed},
		{Percentage: 20, Status: model.ResultStatusFailed},
	})
	want := MonitorStats{TotalSubmitted: 3, TotalPassed: 2, TotalFailed: 1, AveragePercentage: 60}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

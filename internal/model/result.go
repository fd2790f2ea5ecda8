package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus is the pass/fail outcome of a graded submission.
type ResultStatus string

const (
	ResultStatusPassed ResultStatus = "PASSED"
	ResultStatusFailed ResultStatus = "FAILED"
)

// DisplayLabel is the label shown to end users. Both outcomes read as "GRADED".
func (s ResultStatus) DisplayLabel() string {
	switch s {
	case ResultStatusPassed, ResultStatusFailed:
		return "GRADED"
	}
	return string(s)
}

// ExamResult is the write-once outcome of one student's submission to one exam.
type ExamResult struct {
	ID          uuid.UUID       `json:"id"`
	ExamID      uuid.UUID       `json:"exam_id"`
	ExamTitle   string          `json:"exam_title,omitempty"`
	StudentID   int             `json:"student_id"`
	Score       int             `json:"score"`
	TotalMarks  int             `json:"total_marks"`
	Percentage  float64         `json:"percentage"`
	Status      ResultStatus    `json:"status"`
	TimeTaken   int             `json:"time_taken"`
	SubmittedAt time.Time       `json:"submitted_at"`
	Answers     []StudentAnswer `json:"answers,omitempty"`
}

// StudentAnswer is the graded record of one submitted answer.
type StudentAnswer struct {
	ID            uuid.UUID `json:"id"`
	ExamResultID  uuid.UUID `json:"exam_result_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	Answer        string    `json:"answer"`
	IsCorrect     bool      `json:"is_correct"`
	PointsAwarded int       `json:"points_awarded"`
}

// SubmitExamRequest is the payload a student sends to finish an exam.
type SubmitExamRequest struct {
	TimeTaken *int            `json:"time_taken" binding:"required,min=0,max=1440"`
	Answers   []AnswerRequest `json:"answers" binding:"required,dive"`
}

// AnswerRequest is a single submitted answer.
type AnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Answer     string    `json:"answer" binding:"max=1000"`
}

// ExamResultSummary is the caller-facing projection of a persisted result.
type ExamResultSummary struct {
	ID            uuid.UUID    `json:"id"`
	ExamID        uuid.UUID    `json:"exam_id"`
	ExamTitle     string       `json:"exam_title,omitempty"`
	StudentID     int          `json:"student_id"`
	Score         int          `json:"score"`
	TotalMarks    int          `json:"total_marks"`
	Percentage    float64      `json:"percentage"`
	Status        ResultStatus `json:"status"`
	DisplayStatus string       `json:"display_status"`
	SubmittedAt   time.Time    `json:"submitted_at"`
	TimeTaken     int          `json:"time_taken"`
}

// Summary projects the result into its caller-facing summary.
func (r *ExamResult) Summary() ExamResultSummary {
	return ExamResultSummary{
		ID:            r.ID,
		ExamID:        r.ExamID,
		ExamTitle:     r.ExamTitle,
		StudentID:     r.StudentID,
		Score:         r.Score,
		TotalMarks:    r.TotalMarks,
		Percentage:    r.Percentage,
		Status:        r.Status,
		DisplayStatus: r.Status.DisplayLabel(),
		SubmittedAt:   r.SubmittedAt,
		TimeTaken:     r.TimeTaken,
	}
}

// ResultReview is a result together with the answer key, for post-exam review.
type ResultReview struct {
	ExamResultSummary
	Answers []AnswerReview `json:"answers"`
}

// AnswerReview pairs one submitted answer with its question and key.
type AnswerReview struct {
	QuestionID     uuid.UUID `json:"question_id"`
	QuestionText   string    `json:"question_text"`
	StudentAnswer  string    `json:"student_answer"`
	CorrectAnswer  string    `json:"correct_answer"`
	IsCorrect      bool      `json:"is_correct"`
	PointsAwarded  int       `json:"points_awarded"`
	QuestionPoints int       `json:"question_points"`
	Explanation    string    `json:"explanation,omitempty"`
}

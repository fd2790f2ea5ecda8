package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusCompleted ExamStatus = "COMPLETED"
)

// Exam represents an exam entity together with its full question set.
// TotalMarks is frozen when the exam is published.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	AuthorID        int        `json:"author_id"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      int        `json:"total_marks"`
	PassingMarks    int        `json:"passing_marks"`
	Status          ExamStatus `json:"status"`
	Questions       []Question `json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// FindQuestion resolves a question inside this exam's own question set.
func (e *Exam) FindQuestion(id uuid.UUID) (*Question, bool) {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i], true
		}
	}
	return nil, false
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string `json:"title" binding:"required,notblank,min=3,max=255"`
	Description     string `json:"description" binding:"max=2000"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=1,max=480"`
	PassingMarks    int    `json:"passing_marks" binding:"min=0,max=100"`
}

// ExamPaper is the student-facing view of a published exam (no answer keys).
type ExamPaper struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	DurationMinutes int                  `json:"duration_minutes"`
	TotalMarks      int                  `json:"total_marks"`
	PassingMarks    int                  `json:"passing_marks"`
	Questions       []QuestionForStudent `json:"questions"`
}

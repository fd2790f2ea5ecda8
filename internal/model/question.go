package model

import (
	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
)

// MaxOptions is the number of option slots a multiple-choice question carries.
const MaxOptions = 4

// Question represents a single exam question, including its answer key.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	ExamID        uuid.UUID    `json:"exam_id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Option1       string       `json:"option1,omitempty"`
	Option2       string       `json:"option2,omitempty"`
	Option3       string       `json:"option3,omitempty"`
	Option4       string       `json:"option4,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Points        int          `json:"points"`
	Explanation   string       `json:"explanation,omitempty"`
	OrderNum      int          `json:"order_num"`
}

// Option returns the option text at a 1-based index.
func (q *Question) Option(index int) (string, bool) {
	switch index {
	case 1:
		return q.Option1, true
	case 2:
		return q.Option2, true
	case 3:
		return q.Option3, true
	case 4:
		return q.Option4, true
	}
	return "", false
}

// Options returns the option texts in slot order with trailing empty slots
// dropped, so position i still answers to index i+1.
func (q *Question) Options() []string {
	opts := []string{q.Option1, q.Option2, q.Option3, q.Option4}
	for len(opts) > 0 && opts[len(opts)-1] == "" {
		opts = opts[:len(opts)-1]
	}
	return opts
}

// AddQuestionRequest is the payload for adding a question to a draft exam.
type AddQuestionRequest struct {
	Text          string `json:"text" binding:"required,notblank,max=2000"`
	Type          string `json:"type" binding:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER"`
	Option1       string `json:"option1" binding:"max=500"`
	Option2       string `json:"option2" binding:"max=500"`
	Option3       string `json:"option3" binding:"max=500"`
	Option4       string `json:"option4" binding:"max=500"`
	CorrectAnswer string `json:"correct_answer" binding:"required,notblank,max=1000"`
	Points        int    `json:"points" binding:"required,min=1,max=1000"`
	Explanation   string `json:"explanation" binding:"max=2000"`
	OrderNum      int    `json:"order_num" binding:"min=0"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID       uuid.UUID    `json:"id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Points   int          `json:"points"`
	OrderNum int          `json:"order_num"`
}

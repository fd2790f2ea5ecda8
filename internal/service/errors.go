package service

import "errors"

// Submission errors.
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotAvailable = errors.New("exam is not available for submission")
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrQuestionNotFound = errors.New("question does not belong to this exam")
	ErrDuplicateAnswer  = errors.New("question answered more than once")
)

// Authoring and query errors.
var (
	ErrNotExamAuthor    = errors.New("not the author of this exam")
	ErrNoQuestions      = errors.New("exam has no questions, cannot publish")
	ErrExamNotDraft     = errors.New("exam status is not DRAFT")
	ErrExamNotPublished = errors.New("exam status is not PUBLISHED")
	ErrInvalidQuestion  = errors.New("invalid question")
	ErrResultNotFound   = errors.New("result not found")
)

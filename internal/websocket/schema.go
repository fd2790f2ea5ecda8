package websocket

import (
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/response"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SubmitRequest is sent by the client to finish and grade the exam.
type SubmitRequest struct {
	Action    Action                `json:"action"`
	TimeTaken *int                  `json:"time_taken" binding:"required,min=0,max=1440"`
	Answers   []model.AnswerRequest `json:"answers" binding:"required,dive"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

type GradedResponse struct {
	Event  Event                   `json:"event"`
	Result model.ExamResultSummary `json:"result"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Code   response.ErrCode  `json:"code"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

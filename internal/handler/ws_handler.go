package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/middleware"
	"github.com/stemsi/exstem-grader/internal/response"
	"github.com/stemsi/exstem-grader/internal/service"
	"github.com/stemsi/exstem-grader/internal/validator"
	ws "github.com/stemsi/exstem-grader/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler lets a student submit an exam over a WebSocket.
type WSHandler struct {
	submissionService *service.SubmissionService
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(submissionService *service.SubmissionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		submissionService: submissionService,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket; accepts "submit" and "ping" actions.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("exam_id", examID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		data, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			ws.WriteError(conn, response.ErrInvalidPayload, nil)
			continue
		}

		switch env.Action {
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case ws.ActionSubmit:
			h.handleSubmit(c, conn, wsLog, examID, claims.UserID, data)
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			ws.WriteError(conn, response.ErrInvalidPayload, map[string]string{"action": "unknown action: " + string(env.Action)})
		}
	}
}

// handleSubmit validates the frame like an HTTP body and runs the submission.
func (h *WSHandler) handleSubmit(c *gin.Context, conn *websocket.Conn, wsLog zerolog.Logger, examID uuid.UUID, studentID int, data []byte) {
	var req ws.SubmitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		ws.WriteError(conn, response.ErrInvalidPayload, validator.TranslateErrors(err))
		return
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		ws.WriteError(conn, response.ErrValidation, validator.TranslateErrors(err))
		return
	}

	result, err := h.submissionService.Submit(c.Request.Context(), service.SubmitCommand{
		ExamID:    examID,
		StudentID: studentID,
		TimeTaken: *req.TimeTaken,
		Answers:   req.Answers,
	})
	if err != nil {
		se, known := classify(err)
		if se.status >= http.StatusInternalServerError {
			wsLog.Error().Err(err).Msg("Submission failed")
		}
		var fields map[string]string
		if known && se.detail {
			fields = map[string]string{"detail": err.Error()}
		}
		ws.WriteError(conn, se.code, fields)
		return
	}

	wsLog.Info().
		Int("score", result.Score).
		Str("status", string(result.Status)).
		Msg("Exam submitted and graded")

	ws.WriteTyped(conn, ws.GradedResponse{Event: ws.EventGraded, Result: result.Summary()})
}

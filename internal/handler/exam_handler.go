package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/middleware"
	"github.com/stemsi/exstem-grader/internal/model"
	"github.com/stemsi/exstem-grader/internal/response"
	"github.com/stemsi/exstem-grader/internal/service"
	"github.com/stemsi/exstem-grader/internal/validator"
)

// ExamHandler handles teacher exam management endpoints.
type ExamHandler struct {
	examService   *service.ExamService
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, resultService *service.ResultService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService:   examService,
		resultService: resultService,
		log:           log.With().Str("component", "exam_handler").Logger(),
	}
}

// CreateExam godoc
// POST /api/v1/teacher/exams
// Creates a new draft exam.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/teacher/exams/:exam_id
// Returns the exam with questions and answer keys to its author.
func (h *ExamHandler) GetExam(c *gin.Context) {
	claims, examID, ok := teacherExamParams(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetForAuthor(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// AddQuestion godoc
// POST /api/v1/teacher/exams/:exam_id/questions
// Adds a question to a draft exam.
func (h *ExamHandler) AddQuestion(c *gin.Context) {
	claims, examID, ok := teacherExamParams(c)
	if !ok {
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.examService.AddQuestion(c.Request.Context(), examID, claims.UserID, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// PublishExam godoc
// POST /api/v1/teacher/exams/:exam_id/publish
// Freezes total marks, publishes the exam and warms the exam cache.
func (h *ExamHandler) PublishExam(c *gin.Context) {
	claims, examID, ok := teacherExamParams(c)
	if !ok {
		return
	}

	exam, err := h.examService.Publish(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// CloseExam godoc
// POST /api/v1/teacher/exams/:exam_id/close
// Stops accepting submissions for a published exam.
func (h *ExamHandler) CloseExam(c *gin.Context) {
	claims, examID, ok := teacherExamParams(c)
	if !ok {
		return
	}

	if err := h.examService.Close(c.Request.Context(), examID, claims.UserID); err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "exam closed successfully"})
}

// ListExamResults godoc
// GET /api/v1/teacher/exams/:exam_id/results
// Returns every result for the exam, best score first.
func (h *ExamHandler) ListExamResults(c *gin.Context) {
	claims, examID, ok := teacherExamParams(c)
	if !ok {
		return
	}

	results, err := h.resultService.ListForExam(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// teacherExamParams extracts the claims and :exam_id, writing the failure
// response itself when either is missing.
func teacherExamParams(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, examID, true
}

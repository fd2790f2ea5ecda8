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

// StudentPortalHandler handles student-facing endpoints (exam paper, submit, results).
type StudentPortalHandler struct {
	examService       *service.ExamService
	submissionService *service.SubmissionService
	resultService     *service.ResultService
	log               zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	examService *service.ExamService,
	submissionService *service.SubmissionService,
	resultService *service.ResultService,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		examService:       examService,
		submissionService: submissionService,
		resultService:     resultService,
		log:               log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// GetExamPaper godoc
// GET /api/v1/student/exams/:exam_id
// Returns a published exam's questions without answer keys.
func (h *StudentPortalHandler) GetExamPaper(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.examService.GetPaper(c.Request.Context(), examID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": paper})
}

// SubmitExam godoc
// POST /api/v1/student/exams/:exam_id/submit
// Grades the answer set and records the result. One submission per exam.
func (h *StudentPortalHandler) SubmitExam(c *gin.Context) {
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

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.submissionService.Submit(c.Request.Context(), service.SubmitCommand{
		ExamID:    examID,
		StudentID: claims.UserID,
		TimeTaken: *req.TimeTaken,
		Answers:   req.Answers,
	})
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"result": result.Summary()})
}

// ListResults godoc
// GET /api/v1/student/results
// Returns the student's own results, newest first.
func (h *StudentPortalHandler) ListResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	results, err := h.resultService.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// GetResult godoc
// GET /api/v1/student/results/:result_id
// Returns a result review with answer keys. Only the owning student may read it.
func (h *StudentPortalHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	resultID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	review, err := h.resultService.GetReview(c.Request.Context(), resultID, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": review})
}

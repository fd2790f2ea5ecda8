package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grader/internal/grading"
	"github.com/stemsi/exstem-grader/internal/response"
	"github.com/stemsi/exstem-grader/internal/service"
)

// serviceError pairs a service sentinel with its HTTP status and error code.
type serviceError struct {
	target error
	status int
	code   response.ErrCode
	// detail exposes err.Error() so the caller learns which entity failed.
	detail bool
}

var serviceErrors = []serviceError{
	{target: service.ErrExamNotFound, status: http.StatusNotFound, code: response.ErrNotFound},
	{target: service.ErrResultNotFound, status: http.StatusNotFound, code: response.ErrNotFound},
	{target: service.ErrExamNotAvailable, status: http.StatusConflict, code: response.ErrExamNotAvailable},
	{target: service.ErrAlreadySubmitted, status: http.StatusConflict, code: response.ErrAlreadySubmitted},
	{target: service.ErrQuestionNotFound, status: http.StatusBadRequest, code: response.ErrQuestionNotFound, detail: true},
	{target: service.ErrDuplicateAnswer, status: http.StatusBadRequest, code: response.ErrDuplicateAnswer, detail: true},
	{target: service.ErrNotExamAuthor, status: http.StatusForbidden, code: response.ErrNotExamAuthor},
	{target: service.ErrNoQuestions, status: http.StatusConflict, code: response.ErrNoQuestions},
	{target: service.ErrExamNotDraft, status: http.StatusConflict, code: response.ErrExamNotDraft},
	{target: service.ErrExamNotPublished, status: http.StatusConflict, code: response.ErrExamNotPublished},
	{target: service.ErrInvalidQuestion, status: http.StatusBadRequest, code: response.ErrInvalidQuestion, detail: true},
	{target: grading.ErrDataIntegrity, status: http.StatusInternalServerError, code: response.ErrDataIntegrity},
}

// classify resolves err to a status and code. Unknown errors are internal.
func classify(err error) (serviceError, bool) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.target) {
			return se, true
		}
	}
	return serviceError{status: http.StatusInternalServerError, code: response.ErrInternal}, false
}

// failService writes the envelope for a service error. Server-side failures
// are logged with the request id; client errors are not.
func failService(c *gin.Context, log zerolog.Logger, err error) {
	se, known := classify(err)
	if se.status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(response.ContextKeyRequestID)).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}
	if known && se.detail {
		response.FailWithDetail(c, se.status, se.code, err.Error())
		return
	}
	response.Fail(c, se.status, se.code)
}

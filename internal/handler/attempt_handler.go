package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/st3v1n/SchoolManager/internal/middleware"
	"github.com/st3v1n/SchoolManager/internal/model"
	"github.com/st3v1n/SchoolManager/internal/response"
	"github.com/st3v1n/SchoolManager/internal/service"
	"github.com/st3v1n/SchoolManager/internal/validator"
)

// AttemptHandler handles the exam-taking endpoints: start/resume, submit,
// heartbeat, state and results.
type AttemptHandler struct {
	attemptService    *service.AttemptService
	submissionService *service.SubmissionService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, submissionService *service.SubmissionService) *AttemptHandler {
	return &AttemptHandler{
		attemptService:    attemptService,
		submissionService: submissionService,
	}
}

// StartOrResume godoc
// POST /api/v1/student/exams/:exam_id/attempt
// Creates the student's attempt on first access, resumes it afterwards.
func (h *AttemptHandler) StartOrResume(c *gin.Context) {
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

	view, err := h.attemptService.StartOrResume(c.Request.Context(), examID, claims.StudentID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// Submit godoc
// POST /api/v1/student/attempts/:attempt_id/submit?autosave=true|false
// Applies an answer batch. Autosave persists without finalizing; a final
// submit scores and seals the attempt.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// A mangled autosave flag must not fall through to a final submit; that
	// would irreversibly seal the attempt.
	autosave, err := strconv.ParseBool(c.DefaultQuery("autosave", "false"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answers := make(map[uuid.UUID]uuid.UUID, len(req.Answers))
	for qidRaw, oidRaw := range req.Answers {
		qid, qErr := uuid.Parse(qidRaw)
		oid, oErr := uuid.Parse(oidRaw)
		if qErr != nil || oErr != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		answers[qid] = oid
	}

	result, err := h.submissionService.Submit(c.Request.Context(), attemptID, claims.StudentID, answers, autosave)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Heartbeat godoc
// POST /api/v1/student/attempts/:attempt_id/ping
// Bumps last_activity for a live attempt. Rejected once finalized.
func (h *AttemptHandler) Heartbeat(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attemptService.Heartbeat(c.Request.Context(), attemptID, claims.StudentID); err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// State godoc
// GET /api/v1/student/attempts/:attempt_id/state
// Returns the remaining seconds for the countdown. Covers page reloads.
func (h *AttemptHandler) State(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	remaining, err := h.attemptService.RemainingSeconds(c.Request.Context(), attemptID, claims.StudentID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"remaining_seconds": remaining})
}

// failDomain maps domain errors onto response codes. Anything unmapped is a
// logged 500, never a swallowed error.
func failDomain(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrOutsideWindow):
		response.Fail(c, http.StatusForbidden, response.ErrOutsideWindow)
	case errors.Is(err, service.ErrNoDurationConfigured):
		response.Fail(c, http.StatusConflict, response.ErrNoDurationConfigured)
	case errors.Is(err, service.ErrInsufficientQuestions):
		response.Fail(c, http.StatusConflict, response.ErrInsufficientQuestions)
	case errors.Is(err, service.ErrConflict):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, service.ErrAlreadyFinalized):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyFinalized)
	case errors.Is(err, service.ErrNotSubmitted):
		response.Fail(c, http.StatusConflict, response.ErrNotSubmitted)
	case errors.Is(err, service.ErrInvalidQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidQuestion)
	case errors.Is(err, service.ErrInvalidOption):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidOption)
	case errors.Is(err, service.ErrDivisionMisconfigured):
		response.Fail(c, http.StatusConflict, response.ErrDivisionMisconfigured)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

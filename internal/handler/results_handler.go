package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/st3v1n/SchoolManager/internal/middleware"
	"github.com/st3v1n/SchoolManager/internal/response"
	"github.com/st3v1n/SchoolManager/internal/service"
)

// ResultsHandler serves the read-only result views of finalized attempts.
type ResultsHandler struct {
	attemptService *service.AttemptService
}

// NewResultsHandler creates a new ResultsHandler.
func NewResultsHandler(attemptService *service.AttemptService) *ResultsHandler {
	return &ResultsHandler{attemptService: attemptService}
}

// GetResult godoc
// GET /api/v1/student/attempts/:attempt_id/results
// Review of one finalized attempt: score, per-question correctness.
func (h *ResultsHandler) GetResult(c *gin.Context) {
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

	view, err := h.attemptService.Results(c.Request.Context(), attemptID, claims.StudentID)
	if err != nil {
		failDomain(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// ListResults godoc
// GET /api/v1/student/results?page=1&per_page=15&search=...
// The student's finalized attempts, newest submitted first.
func (h *ResultsHandler) ListResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "15"))
	search := c.Query("search")

	results, total, err := h.attemptService.ListResults(c.Request.Context(), claims.StudentID, page, perPage, search)
	if err != nil {
		failDomain(c, err)
		return
	}

	if results == nil {
		results = []service.ResultSummary{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"results": results,
		"total":   total,
	})
}

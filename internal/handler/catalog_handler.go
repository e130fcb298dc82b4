package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/st3v1n/SchoolManager/internal/middleware"
	"github.com/st3v1n/SchoolManager/internal/response"
	"github.com/st3v1n/SchoolManager/internal/service"
)

// CatalogHandler serves the student's active-papers list.
type CatalogHandler struct {
	catalogService *service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ListOpenExams godoc
// GET /api/v1/student/exams
// Active exams for the student's grade with attempt status overlay.
func (h *CatalogHandler) ListOpenExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	catalog, err := h.catalogService.ListOpenForStudent(c.Request.Context(), claims.GradeLevel, claims.StudentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if catalog == nil {
		catalog = []service.CatalogExam{}
	}

	response.Success(c, http.StatusOK, gin.H{"exams": catalog})
}

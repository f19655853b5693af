package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type gradeService interface {
	Upsert(ctx context.Context, req service.UpsertGradeRequest) (*models.GradeRecordDetail, error)
	PatchScores(ctx context.Context, id string, req service.PatchScoresRequest) (*models.GradeRecord, error)
	Void(ctx context.Context, id string) (*models.GradeRecord, error)
	GetByEnrollmentAndSubject(ctx context.Context, enrollmentID, subjectID string) (*models.GradeRecordDetail, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.GradeRecordDetail, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeRecordDetail, error)
}

// GradeHandler exposes grade ledger endpoints.
type GradeHandler struct {
	service gradeService
}

// NewGradeHandler constructs a grade handler.
func NewGradeHandler(svc gradeService) *GradeHandler {
	return &GradeHandler{service: svc}
}

// Upsert godoc
// @Summary Create or overwrite the grade for an enrollment and subject
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.UpsertGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /grades [put]
func (h *GradeHandler) Upsert(c *gin.Context) {
	var req service.UpsertGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.service.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// PatchScores godoc
// @Summary Replace period scores and recompute the average
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body service.PatchScoresRequest true "Scores payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /grades/{id}/scores [patch]
func (h *GradeHandler) PatchScores(c *gin.Context) {
	var req service.PatchScoresRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.service.PatchScores(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Void godoc
// @Summary Annul a grade row
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id}/void [post]
func (h *GradeHandler) Void(c *gin.Context) {
	grade, err := h.service.Void(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Get godoc
// @Summary Get the grade for an enrollment and subject
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grades/{subjectId} [get]
func (h *GradeHandler) Get(c *gin.Context) {
	grade, err := h.service.GetByEnrollmentAndSubject(c.Request.Context(), c.Param("id"), c.Param("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// ListByEnrollment godoc
// @Summary List an enrollment's grades ordered by subject name
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grades [get]
func (h *GradeHandler) ListByEnrollment(c *gin.Context) {
	grades, err := h.service.ListByEnrollment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// ListBySubject godoc
// @Summary List grades for a subject
// @Tags Grades
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/grades [get]
func (h *GradeHandler) ListBySubject(c *gin.Context) {
	grades, err := h.service.ListBySubject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

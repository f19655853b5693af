package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type enrollmentService interface {
	Register(ctx context.Context, req service.RegisterEnrollmentRequest) (*models.EnrollmentDetail, error)
	Update(ctx context.Context, id string, req service.UpdateEnrollmentRequest) (*models.EnrollmentDetail, error)
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListByCohort(ctx context.Context, cohortID string, window models.Window) (*models.EnrollmentPage, error)
	ListByLocation(ctx context.Context, locationID string, window models.Window) (*models.EnrollmentPage, error)
	ListBySubject(ctx context.Context, subjectID string, window models.Window) (*models.EnrollmentPage, error)
	Search(ctx context.Context, query string, window models.Window) (*models.EnrollmentPage, error)
	Delete(ctx context.Context, id string) error
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Register godoc
// @Summary Register enrollment
// @Description Enrolls a student in the active term and allocates a code.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.RegisterEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Register(c *gin.Context) {
	var req service.RegisterEnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Update godoc
// @Summary Update enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdateEnrollmentRequest true "Enrollment payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [patch]
func (h *EnrollmentHandler) Update(c *gin.Context) {
	var req service.UpdateEnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Delete godoc
// @Summary Delete enrollment
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByCohort godoc
// @Summary List cohort enrollments in the active term
// @Tags Enrollments
// @Produce json
// @Param id path string true "Cohort ID"
// @Param from query int false "Window start offset"
// @Param to query int false "Window end offset (exclusive)"
// @Success 200 {object} response.Envelope
// @Router /cohorts/{id}/enrollments [get]
func (h *EnrollmentHandler) ListByCohort(c *gin.Context) {
	h.list(c, func(ctx context.Context, w models.Window) (*models.EnrollmentPage, error) {
		return h.service.ListByCohort(ctx, c.Param("id"), w)
	})
}

// ListByLocation godoc
// @Summary List location enrollments in the active term
// @Tags Enrollments
// @Produce json
// @Param id path string true "Location ID"
// @Param from query int false "Window start offset"
// @Param to query int false "Window end offset (exclusive)"
// @Success 200 {object} response.Envelope
// @Router /locations/{id}/enrollments [get]
func (h *EnrollmentHandler) ListByLocation(c *gin.Context) {
	h.list(c, func(ctx context.Context, w models.Window) (*models.EnrollmentPage, error) {
		return h.service.ListByLocation(ctx, c.Param("id"), w)
	})
}

// ListBySubject godoc
// @Summary List enrollments taking a subject
// @Tags Enrollments
// @Produce json
// @Param id path string true "Subject ID"
// @Param from query int false "Window start offset"
// @Param to query int false "Window end offset (exclusive)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id}/enrollments [get]
func (h *EnrollmentHandler) ListBySubject(c *gin.Context) {
	h.list(c, func(ctx context.Context, w models.Window) (*models.EnrollmentPage, error) {
		return h.service.ListBySubject(ctx, c.Param("id"), w)
	})
}

// Search godoc
// @Summary Search enrollments by student name or national id
// @Tags Enrollments
// @Produce json
// @Param q query string true "Search text"
// @Param from query int false "Window start offset"
// @Param to query int false "Window end offset (exclusive)"
// @Success 200 {object} response.Envelope
// @Router /enrollments/search [get]
func (h *EnrollmentHandler) Search(c *gin.Context) {
	h.list(c, func(ctx context.Context, w models.Window) (*models.EnrollmentPage, error) {
		return h.service.Search(ctx, c.Query("q"), w)
	})
}

func (h *EnrollmentHandler) list(c *gin.Context, fetch func(context.Context, models.Window) (*models.EnrollmentPage, error)) {
	window, ok := windowFromQuery(c)
	if !ok {
		return
	}
	page, err := fetch(c.Request.Context(), window)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Window(c, page, window)
}

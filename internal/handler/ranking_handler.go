package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type rankingService interface {
	RecomputeCohortRanking(ctx context.Context, cohortID string) (*models.RankingResult, error)
	RecomputeSubjectRanking(ctx context.Context, subjectID string) (*models.RankingResult, error)
}

// RankingHandler triggers ranking recomputes.
type RankingHandler struct {
	service rankingService
}

// NewRankingHandler constructs a ranking handler.
func NewRankingHandler(svc rankingService) *RankingHandler {
	return &RankingHandler{service: svc}
}

// RecomputeCohort godoc
// @Summary Recompute cohort averages and ranks for the active term
// @Tags Rankings
// @Produce json
// @Param id path string true "Cohort ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cohorts/{id}/ranking [post]
func (h *RankingHandler) RecomputeCohort(c *gin.Context) {
	result, err := h.service.RecomputeCohortRanking(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RecomputeSubject godoc
// @Summary Recompute grade ranks within a subject
// @Tags Rankings
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subjects/{id}/ranking [post]
func (h *RankingHandler) RecomputeSubject(c *gin.Context) {
	result, err := h.service.RecomputeSubjectRanking(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

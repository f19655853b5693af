package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/service"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/export"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type reportService interface {
	CohortRanking(ctx context.Context, cohortID string) (*service.CohortRankingReport, error)
	ExportCohortRanking(ctx context.Context, cohortID string, format export.Format) (*service.ExportResult, error)
}

// ReportHandler exposes ranking reports.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// CohortRanking godoc
// @Summary Cohort ranking report
// @Description Lists stored ranks for the active term. format=csv or format=pdf downloads a file.
// @Tags Reports
// @Produce json,text/csv,application/pdf
// @Param id path string true "Cohort ID"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /reports/cohorts/{id}/ranking [get]
func (h *ReportHandler) CohortRanking(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("format"))
	if raw == "" || strings.EqualFold(raw, "json") {
		report, err := h.reports.CohortRanking(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, report, nil)
		return
	}

	format, err := export.ParseFormat(raw)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid format"))
		return
	}
	result, err := h.reports.ExportCohortRanking(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Download(c, result.Filename, result.ContentType, result.Data)
}

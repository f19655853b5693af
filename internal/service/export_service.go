package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/export"
)

type cohortReader interface {
	FindCohort(ctx context.Context, id string) (*models.Cohort, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered report ready to be served.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CohortRankingReport is the presentation view of a cohort ranking.
type CohortRankingReport struct {
	Cohort models.Cohort             `json:"cohort"`
	Term   models.Term               `json:"term"`
	Rows   []models.RankingReportRow `json:"rows"`
}

// ExportService renders ranking reports from persisted ranks.
type ExportService struct {
	enrollments cohortEnrollmentSource
	cohorts     cohortReader
	terms       activeTermProvider
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments cohortEnrollmentSource, cohorts cohortReader, terms activeTermProvider, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		enrollments: enrollments,
		cohorts:     cohorts,
		terms:       terms,
		csv:         csv,
		pdf:         pdf,
		logger:      logger,
		now:         time.Now,
	}
}

// CohortRanking lists the cohort's enrollments in the active term by stored rank.
// Unranked enrollments come last.
func (s *ExportService) CohortRanking(ctx context.Context, cohortID string) (*CohortRankingReport, error) {
	cohort, err := s.cohorts.FindCohort(ctx, cohortID)
	if err != nil {
		return nil, notFoundOrInternal(err, "cohort not found", "failed to load cohort")
	}
	term, err := s.terms.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByCohortAndTerm(ctx, cohortID, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort enrollments")
	}
	if len(enrollments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no enrollments in cohort")
	}

	rows := make([]models.RankingReportRow, len(enrollments))
	for i, e := range enrollments {
		rows[i] = models.RankingReportRow{
			Rank:        e.Rank,
			Code:        e.Code,
			StudentName: e.StudentName(),
			NationalID:  e.StudentNationalID,
			Average:     e.Average,
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i].Rank, rows[j].Rank
		if ri == 0 || rj == 0 {
			return ri != 0 && rj == 0
		}
		return ri < rj
	})
	return &CohortRankingReport{Cohort: *cohort, Term: *term, Rows: rows}, nil
}

// ExportCohortRanking renders CohortRanking as CSV or PDF.
func (s *ExportService) ExportCohortRanking(ctx context.Context, cohortID string, format export.Format) (*ExportResult, error) {
	report, err := s.CohortRanking(ctx, cohortID)
	if err != nil {
		return nil, err
	}

	dataset := rankingDataset(report)
	var payload []byte
	switch format {
	case export.FormatCSV:
		payload, err = s.csv.Render(dataset)
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Ranking %s", report.Cohort.Name))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", format))
	}
	if err != nil {
		s.logger.Error("render ranking report failed", zap.String("cohort_id", cohortID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	return &ExportResult{
		Filename:    s.buildFilename(report, format),
		ContentType: format.ContentType(),
		Data:        payload,
	}, nil
}

func rankingDataset(report *CohortRankingReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		rank := "-"
		if row.Rank > 0 {
			rank = fmt.Sprintf("%d", row.Rank)
		}
		rows = append(rows, map[string]string{
			"Rank":        rank,
			"Code":        row.Code,
			"Student":     row.StudentName,
			"National ID": row.NationalID,
			"Average":     fmt.Sprintf("%.2f", row.Average),
		})
	}
	return export.Dataset{
		Headers:  []string{"Rank", "Code", "Student", "National ID", "Average"},
		Rows:     rows,
		Numeric:  map[string]bool{"Rank": true, "Average": true},
		Subtitle: fmt.Sprintf("Term %s, period %d", report.Term.Label, report.Term.Period),
	}
}

func (s *ExportService) buildFilename(report *CohortRankingReport, format export.Format) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("ranking_%s_%s_%s.%s", sanitizeFilename(report.Cohort.Name), sanitizeFilename(report.Term.Label), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := strings.ToLower(replacer.Replace(raw))
	if runes := []rune(result); len(runes) > 100 {
		return string(runes[:100])
	}
	return result
}

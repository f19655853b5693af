package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/export"
)

type stubCohorts map[string]models.Cohort

func (s stubCohorts) FindCohort(ctx context.Context, id string) (*models.Cohort, error) {
	c, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

type failingPDF struct{}

func (failingPDF) Render(export.Dataset, string) ([]byte, error) {
	return nil, errors.New("font missing")
}

func newExportFixture() (*ExportService, *memRankingStore) {
	store := &memRankingStore{}
	for _, e := range []struct {
		id, first, last string
		avg             float64
		rank            int
	}{
		{"e-1", "Ana", "Lopez", 7.5, 2},
		{"e-2", "Luis", "Diaz", 0, 0},
		{"e-3", "Eva", "Mora", 9.25, 1},
	} {
		detail := cohortEnrollment(e.id, e.avg)
		detail.Rank = e.rank
		detail.Code = "E2025-" + strings.ToUpper(e.id)
		detail.StudentFirstNames = e.first
		detail.StudentLastNames = e.last
		store.enrollments = append(store.enrollments, detail)
	}
	svc := NewExportService(store, stubCohorts{"coh-1": {ID: "coh-1", Name: "First A"}}, activeTerm2025, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestExportServiceCohortRankingOrder(t *testing.T) {
	svc, _ := newExportFixture()

	report, err := svc.CohortRanking(context.Background(), "coh-1")
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	assert.Equal(t, "Eva Mora", report.Rows[0].StudentName)
	assert.Equal(t, "Ana Lopez", report.Rows[1].StudentName)
	assert.Equal(t, 0, report.Rows[2].Rank)
}

func TestExportServiceExportCSV(t *testing.T) {
	svc, _ := newExportFixture()

	result, err := svc.ExportCohortRanking(context.Background(), "coh-1", export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "ranking_first_a_2025_20250301_080000.csv", result.Filename)
	assert.Equal(t, "text/csv", result.ContentType)
	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Rank,Code,Student,National ID,Average", lines[0])
	assert.Equal(t, "1,E2025-E-3,Eva Mora,,9.25", lines[1])
	assert.Equal(t, "-,E2025-E-2,Luis Diaz,,0.00", lines[3])
}

func TestExportServiceExportPDFFailure(t *testing.T) {
	store := &memRankingStore{enrollments: []models.EnrollmentDetail{cohortEnrollment("e-1", 5)}}
	svc := NewExportService(store, stubCohorts{"coh-1": {ID: "coh-1"}}, activeTerm2025, nil, nil, failingPDF{})

	_, err := svc.ExportCohortRanking(context.Background(), "coh-1", export.FormatPDF)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestExportServiceEmptyCohort(t *testing.T) {
	svc := NewExportService(&memRankingStore{}, stubCohorts{"coh-1": {ID: "coh-1"}}, activeTerm2025, nil, nil, nil)

	_, err := svc.CohortRanking(context.Background(), "coh-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExportServiceUnknownCohort(t *testing.T) {
	svc, _ := newExportFixture()

	_, err := svc.ExportCohortRanking(context.Background(), "coh-9", export.FormatCSV)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSanitizeFilenameTruncatesByRune(t *testing.T) {
	name := sanitizeFilename(strings.Repeat("Séptimo ", 20))

	assert.True(t, utf8.ValidString(name))
	assert.Equal(t, 100, utf8.RuneCountInString(name))
	assert.True(t, strings.HasPrefix(name, "séptimo_séptimo_"))
}

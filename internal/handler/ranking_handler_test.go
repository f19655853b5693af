package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type rankingServiceMock struct {
	result *models.RankingResult
	err    error
	scope  models.RankingScope
	id     string
}

func (m *rankingServiceMock) RecomputeCohortRanking(ctx context.Context, cohortID string) (*models.RankingResult, error) {
	m.scope, m.id = models.RankingScopeCohort, cohortID
	return m.result, m.err
}

func (m *rankingServiceMock) RecomputeSubjectRanking(ctx context.Context, subjectID string) (*models.RankingResult, error) {
	m.scope, m.id = models.RankingScopeSubject, subjectID
	return m.result, m.err
}

func TestRankingHandlerRecomputeCohort(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &rankingServiceMock{result: &models.RankingResult{
		Scope:        models.RankingScopeCohort,
		PopulationID: "coh-1",
		Entries:      []models.RankedEntry{{ID: "enr-1", Average: 9, Rank: 1}},
	}}
	handler := NewRankingHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/cohorts/coh-1/ranking", nil)
	c.Params = gin.Params{{Key: "id", Value: "coh-1"}}
	handler.RecomputeCohort(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RankingScopeCohort, mockSvc.scope)
	assert.Equal(t, "coh-1", mockSvc.id)
}

func TestRankingHandlerRecomputeSubjectBusy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRankingHandler(&rankingServiceMock{err: appErrors.Clone(appErrors.ErrBusy, "")})

	c, w := newGinContext(http.MethodPost, "/subjects/sub-1/ranking", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	handler.RecomputeSubject(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "RECOMPUTE_IN_PROGRESS")
}

func TestRankingHandlerEmptyPopulation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRankingHandler(&rankingServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "nothing to rank")})

	c, w := newGinContext(http.MethodPost, "/subjects/sub-1/ranking", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	handler.RecomputeSubject(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

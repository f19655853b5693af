package service

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/terms", http.StatusOK, 10*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/terms", http.StatusCreated, 30*time.Millisecond)
	m.ObserveRanking(models.RankingScopeCohort, 4*time.Millisecond, nil)
	m.ObserveRanking(models.RankingScopeSubject, 8*time.Millisecond, errors.New("boom"))
	m.ObserveCodeAttempts(2)
	m.IncTermActivationConflict()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 20, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(2), snap.RankingRuns)
	assert.Equal(t, uint64(1), snap.RankingFailures)
	assert.InDelta(t, 6, snap.AverageRankingDurationMs, 0.001)
	assert.Equal(t, uint64(1), snap.TermActivationConflicts)
	assert.Positive(t, snap.Goroutines)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveRanking(models.RankingScopeCohort, time.Millisecond, errors.New("boom"))
	m.IncTermActivationConflict()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ranking_recompute_failures_total{scope="cohort"} 1`)
	assert.Contains(t, string(body), "term_activation_conflicts_total 1")
}

func TestMetricsServiceNilReceiver(t *testing.T) {
	var m *MetricsService

	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	m.ObserveRanking(models.RankingScopeCohort, time.Millisecond, nil)
	m.ObserveCodeAttempts(1)
	m.IncTermActivationConflict()
	assert.Equal(t, models.SystemMetrics{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

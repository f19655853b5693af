package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RANKING_LOCK_BACKEND", "")
	t.Setenv("ENROLLMENT_CODE_MAX_ATTEMPTS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Enrollment.CodeMaxAttempts)
	assert.Equal(t, LockBackendLocal, cfg.Ranking.LockBackend)
	assert.Equal(t, 2*time.Minute, cfg.Ranking.LockTTL)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
}

func TestLoadRankingOverrides(t *testing.T) {
	t.Setenv("RANKING_LOCK_BACKEND", "REDIS")
	t.Setenv("RANKING_LOCK_WAIT", "3s")
	t.Setenv("RANKING_AUTO_RECOMPUTE", "true")
	t.Setenv("ENROLLMENT_CODE_MAX_ATTEMPTS", "-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, LockBackendRedis, cfg.Ranking.LockBackend)
	assert.Equal(t, 3*time.Second, cfg.Ranking.LockWait)
	assert.True(t, cfg.Ranking.AutoRecompute)
	assert.Equal(t, 10, cfg.Enrollment.CodeMaxAttempts)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 5*time.Second, parseDuration("5s", time.Minute))
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, splitAndTrim(" https://a.test , ,https://b.test"))
}

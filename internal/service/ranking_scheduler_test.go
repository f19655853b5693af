package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/jobs"
)

type stubQueue struct {
	mu      sync.Mutex
	jobs    []jobs.Job
	pending map[string]bool
	err     error
}

func (q *stubQueue) Start(ctx context.Context) {}

func (q *stubQueue) Stop() {}

func (q *stubQueue) Enqueue(job jobs.Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return false, q.err
	}
	if q.pending == nil {
		q.pending = map[string]bool{}
	}
	if q.pending[job.Key] {
		return false, nil
	}
	q.pending[job.Key] = true
	q.jobs = append(q.jobs, job)
	return true, nil
}

type stubSubjectRanker struct {
	calls []string
	err   error
}

func (r *stubSubjectRanker) RecomputeSubjectRanking(ctx context.Context, subjectID string) (*models.RankingResult, error) {
	r.calls = append(r.calls, subjectID)
	if r.err != nil {
		return nil, r.err
	}
	return &models.RankingResult{Scope: models.RankingScopeSubject, PopulationID: subjectID}, nil
}

func TestRankingSchedulerCoalescesSubject(t *testing.T) {
	queue := &stubQueue{}
	scheduler := &RankingScheduler{ranker: &stubSubjectRanker{}, queue: queue, logger: zap.NewNop()}

	scheduler.ScheduleSubject("sub-1")
	scheduler.ScheduleSubject("sub-1")
	scheduler.ScheduleSubject("sub-2")

	require.Len(t, queue.jobs, 2)
	assert.Equal(t, "subject:sub-1", queue.jobs[0].Key)
	assert.Equal(t, "sub-2", queue.jobs[1].Payload)
}

func TestRankingSchedulerQueueFailureIsLogged(t *testing.T) {
	queue := &stubQueue{err: jobs.ErrNotStarted}
	scheduler := &RankingScheduler{ranker: &stubSubjectRanker{}, queue: queue, logger: zap.NewNop()}

	assert.NotPanics(t, func() { scheduler.ScheduleSubject("sub-1") })
	assert.Empty(t, queue.jobs)
}

func TestRankingSchedulerHandle(t *testing.T) {
	ranker := &stubSubjectRanker{}
	scheduler := &RankingScheduler{ranker: ranker, logger: zap.NewNop()}

	require.NoError(t, scheduler.handle(context.Background(), jobs.Job{Payload: "sub-1"}))
	assert.Equal(t, []string{"sub-1"}, ranker.calls)

	ranker.err = appErrors.Clone(appErrors.ErrNotFound, "nothing to rank")
	assert.NoError(t, scheduler.handle(context.Background(), jobs.Job{Payload: "sub-1"}))

	ranker.err = appErrors.Clone(appErrors.ErrBusy, "busy")
	assert.Error(t, scheduler.handle(context.Background(), jobs.Job{Payload: "sub-1"}))

	ranker.err = errors.New("db down")
	assert.Error(t, scheduler.handle(context.Background(), jobs.Job{Payload: "sub-1"}))
}

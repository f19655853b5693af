package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/jobs"
)

const jobTypeSubjectRanking = "subject_ranking"

type subjectRanker interface {
	RecomputeSubjectRanking(ctx context.Context, subjectID string) (*models.RankingResult, error)
}

type jobQueue interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(job jobs.Job) (bool, error)
}

// RankingScheduler re-ranks subjects in the background after their grades change.
// Requests for a subject that is already queued are merged.
type RankingScheduler struct {
	ranker subjectRanker
	queue  jobQueue
	logger *zap.Logger
}

// NewRankingScheduler builds a scheduler on top of a jobs.Queue.
func NewRankingScheduler(ranker subjectRanker, cfg jobs.QueueConfig) *RankingScheduler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &RankingScheduler{ranker: ranker, logger: cfg.Logger}
	s.queue = jobs.NewQueue("subject-ranking", s.handle, cfg)
	return s
}

// Start launches the workers.
func (s *RankingScheduler) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *RankingScheduler) Stop() {
	s.queue.Stop()
}

// ScheduleSubject queues a ranking pass for subjectID.
func (s *RankingScheduler) ScheduleSubject(subjectID string) {
	queued, err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Key:     "subject:" + subjectID,
		Type:    jobTypeSubjectRanking,
		Payload: subjectID,
	})
	if err != nil {
		s.logger.Warn("subject ranking not scheduled", zap.String("subject_id", subjectID), zap.Error(err))
		return
	}
	if !queued {
		s.logger.Debug("subject ranking already pending", zap.String("subject_id", subjectID))
	}
}

func (s *RankingScheduler) handle(ctx context.Context, job jobs.Job) error {
	subjectID, _ := job.Payload.(string)
	result, err := s.ranker.RecomputeSubjectRanking(ctx, subjectID)
	if err != nil {
		// every row of the subject may have been voided
		if appErrors.Is(err, appErrors.ErrNotFound) {
			return nil
		}
		return err
	}
	s.logger.Debug("subject ranking refreshed", zap.String("subject_id", subjectID), zap.Int("ranked", len(result.Entries)))
	return nil
}

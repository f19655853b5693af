package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/lock"
)

type cohortEnrollmentSource interface {
	ListByCohortAndTerm(ctx context.Context, cohortID, termID string) ([]models.EnrollmentDetail, error)
}

type gradeAverageSource interface {
	FetchAveragesByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string][]float64, error)
	ListRankableBySubject(ctx context.Context, subjectID string) ([]models.GradeRecord, error)
}

// enrollmentRankWriter is the only write path for enrollment average and rank.
type enrollmentRankWriter interface {
	UpdateAverage(ctx context.Context, id string, average float64) error
	UpdateRank(ctx context.Context, id string, rank int) error
}

// gradeRankWriter is the only write path for grade rank.
type gradeRankWriter interface {
	UpdateRank(ctx context.Context, id string, rank int) error
}

// RankingService recomputes averages and ranks for one population at a time.
// Each pass computes every new value first and then writes record by record;
// a failed write is reported and earlier writes stay, so re-running converges.
type RankingService struct {
	enrollments      cohortEnrollmentSource
	enrollmentWriter enrollmentRankWriter
	grades           gradeAverageSource
	gradeWriter      gradeRankWriter
	terms            activeTermProvider
	locker           lock.Locker
	metrics          *MetricsService
	logger           *zap.Logger
	roundingMode     func(float64) float64
}

// NewRankingService wires the ranking engine. A nil locker falls back to an in-process one.
func NewRankingService(enrollments cohortEnrollmentSource, enrollmentWriter enrollmentRankWriter, grades gradeAverageSource, gradeWriter gradeRankWriter, terms activeTermProvider, locker lock.Locker, metrics *MetricsService, logger *zap.Logger) *RankingService {
	if locker == nil {
		locker = lock.NewLocalLocker(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{
		enrollments:      enrollments,
		enrollmentWriter: enrollmentWriter,
		grades:           grades,
		gradeWriter:      gradeWriter,
		terms:            terms,
		locker:           locker,
		metrics:          metrics,
		logger:           logger,
		roundingMode:     func(v float64) float64 { return math.RoundToEven(v*100) / 100 },
	}
}

// RecomputeCohortRanking refreshes the general average of every enrollment of the
// cohort in the active term and ranks them by it.
func (s *RankingService) RecomputeCohortRanking(ctx context.Context, cohortID string) (result *models.RankingResult, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRanking(models.RankingScopeCohort, time.Since(start), err) }()

	unlock, err := s.acquire(ctx, models.RankingScopeCohort, cohortID)
	if err != nil {
		return nil, err
	}
	defer s.release(unlock, models.RankingScopeCohort, cohortID)

	term, err := s.terms.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	population, err := s.loadCohort(ctx, cohortID, term.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(population))
	for i, e := range population {
		ids[i] = e.ID
	}
	subjectAverages, err := s.grades.FetchAveragesByEnrollments(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject averages")
	}

	averages := make(map[string]float64, len(population))
	var skipped []string
	for _, e := range population {
		values := subjectAverages[e.ID]
		if len(values) == 0 {
			skipped = append(skipped, e.ID)
			continue
		}
		averages[e.ID] = s.roundingMode(mean(values))
	}

	for _, e := range population {
		average, ok := averages[e.ID]
		if !ok {
			continue
		}
		if err := s.enrollmentWriter.UpdateAverage(ctx, e.ID, average); err != nil {
			s.logger.Error("persist enrollment average failed",
				zap.String("cohort_id", cohortID), zap.String("enrollment_id", e.ID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist enrollment average")
		}
	}

	population, err = s.loadCohort(ctx, cohortID, term.ID)
	if err != nil {
		return nil, err
	}
	members := make([]rankable, len(population))
	for i, e := range population {
		members[i] = rankable{id: e.ID, average: e.Average}
	}
	ranks := assignRanks(members)

	for _, m := range members {
		if err := s.enrollmentWriter.UpdateRank(ctx, m.id, ranks[m.id]); err != nil {
			s.logger.Error("persist enrollment rank failed",
				zap.String("cohort_id", cohortID), zap.String("enrollment_id", m.id), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist enrollment rank")
		}
	}

	return &models.RankingResult{
		Scope:        models.RankingScopeCohort,
		PopulationID: cohortID,
		TermID:       term.ID,
		Entries:      rankedEntries(members, ranks),
		Skipped:      skipped,
	}, nil
}

// RecomputeSubjectRanking ranks every non-annulled grade row of a subject by its average.
func (s *RankingService) RecomputeSubjectRanking(ctx context.Context, subjectID string) (result *models.RankingResult, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveRanking(models.RankingScopeSubject, time.Since(start), err) }()

	unlock, err := s.acquire(ctx, models.RankingScopeSubject, subjectID)
	if err != nil {
		return nil, err
	}
	defer s.release(unlock, models.RankingScopeSubject, subjectID)

	grades, err := s.grades.ListRankableBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grades")
	}
	if len(grades) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "nothing to rank")
	}

	members := make([]rankable, len(grades))
	for i, g := range grades {
		members[i] = rankable{id: g.ID, average: g.Average}
	}
	ranks := assignRanks(members)

	for _, m := range members {
		if err := s.gradeWriter.UpdateRank(ctx, m.id, ranks[m.id]); err != nil {
			s.logger.Error("persist grade rank failed",
				zap.String("subject_id", subjectID), zap.String("grade_id", m.id), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist grade rank")
		}
	}

	return &models.RankingResult{
		Scope:        models.RankingScopeSubject,
		PopulationID: subjectID,
		Entries:      rankedEntries(members, ranks),
	}, nil
}

func (s *RankingService) loadCohort(ctx context.Context, cohortID, termID string) ([]models.EnrollmentDetail, error) {
	population, err := s.enrollments.ListByCohortAndTerm(ctx, cohortID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort enrollments")
	}
	if len(population) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "nothing to rank")
	}
	return population, nil
}

func (s *RankingService) acquire(ctx context.Context, scope models.RankingScope, id string) (lock.Unlock, error) {
	unlock, err := s.locker.Acquire(ctx, rankingLockKey(scope, id))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, appErrors.Clone(appErrors.ErrBusy, "ranking recompute already running for "+string(scope)+" "+id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire ranking lock")
	}
	return unlock, nil
}

func (s *RankingService) release(unlock lock.Unlock, scope models.RankingScope, id string) {
	if err := unlock(); err != nil {
		s.logger.Warn("release ranking lock failed", zap.String("scope", string(scope)), zap.String("id", id), zap.Error(err))
	}
}

func rankingLockKey(scope models.RankingScope, id string) string {
	return "ranking:" + string(scope) + ":" + id
}

type rankable struct {
	id      string
	average float64
}

// assignRanks orders members by average, highest first, and returns 1-based
// positions. Equal averages keep their input order. NaN sorts as zero.
func assignRanks(members []rankable) map[string]int {
	order := make([]rankable, len(members))
	copy(order, members)
	sort.SliceStable(order, func(i, j int) bool {
		return sortKey(order[i].average) > sortKey(order[j].average)
	})
	ranks := make(map[string]int, len(order))
	for i, m := range order {
		ranks[m.id] = i + 1
	}
	return ranks
}

func rankedEntries(members []rankable, ranks map[string]int) []models.RankedEntry {
	entries := make([]models.RankedEntry, len(members))
	for i, m := range members {
		entries[i] = models.RankedEntry{ID: m.id, Average: m.average, Rank: ranks[m.id]}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	return entries
}

func sortKey(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

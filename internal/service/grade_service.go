package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type gradeRepo interface {
	Upsert(ctx context.Context, grade *models.GradeRecord) error
	FindByID(ctx context.Context, id string) (*models.GradeRecord, error)
	FindDetail(ctx context.Context, enrollmentID, subjectID string) (*models.GradeRecordDetail, error)
	UpdateScores(ctx context.Context, id string, scores models.Scores, average float64) error
	UpdateStatus(ctx context.Context, id string, status models.GradeStatus) error
	ListBySubject(ctx context.Context, subjectID string) ([]models.GradeRecordDetail, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeRecordDetail, error)
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// SubjectRankScheduler queues a subject ranking pass after grades change.
type SubjectRankScheduler interface {
	ScheduleSubject(subjectID string)
}

// UpsertGradeRequest carries the full payload of a grade row.
type UpsertGradeRequest struct {
	EnrollmentID string               `json:"enrollment_id" validate:"required"`
	SubjectID    string               `json:"subject_id" validate:"required"`
	TeacherID    string               `json:"teacher_id" validate:"required"`
	Scores       models.Scores        `json:"scores" validate:"dive,min=0,max=10,score_precision"`
	Absences     int                  `json:"absences" validate:"min=0"`
	Indicators   models.IndicatorList `json:"indicators" validate:"max=4,dive"`
	Valuations   models.ValuationList `json:"valuations" validate:"max=4,dive"`
	Status       models.GradeStatus   `json:"status" validate:"omitempty,oneof=PENDING APPROVED DISAPPROVED"`
	Remarks      string               `json:"remarks" validate:"max=1000"`
}

// PatchScoresRequest replaces the four period scores of a grade row.
type PatchScoresRequest struct {
	Scores models.Scores `json:"scores" validate:"dive,min=0,max=10,score_precision"`
}

// GradeService manages the grade ledger.
type GradeService struct {
	grades       gradeRepo
	enrollments  enrollmentReader
	directory    directoryReader
	scheduler    SubjectRankScheduler
	validator    *validator.Validate
	logger       *zap.Logger
	roundingMode func(float64) float64
}

// NewGradeService wires the grade service. scheduler may be nil.
func NewGradeService(grades gradeRepo, enrollments enrollmentReader, directory directoryReader, scheduler SubjectRankScheduler, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &GradeService{
		grades:       grades,
		enrollments:  enrollments,
		directory:    directory,
		scheduler:    scheduler,
		validator:    validate,
		logger:       logger,
		roundingMode: func(v float64) float64 { return math.RoundToEven(v*100) / 100 },
	}
	// Period columns are NUMERIC(4, 2).
	svc.validator.RegisterValidation("score_precision", func(fl validator.FieldLevel) bool {
		return hasScorePrecision(fl.Field().Float())
	})
	return svc
}

func hasScorePrecision(v float64) bool {
	scaled := v * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

// Upsert writes the (enrollment, subject) row, replacing every field of an existing one.
// The subject average is recomputed from the four scores; rank is kept.
func (s *GradeService) Upsert(ctx context.Context, req UpsertGradeRequest) (*models.GradeRecordDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if _, err := s.enrollments.FindByID(ctx, req.EnrollmentID); err != nil {
		return nil, notFoundOrInternal(err, "enrollment not found", "failed to load enrollment")
	}
	if _, err := s.directory.FindSubject(ctx, req.SubjectID); err != nil {
		return nil, notFoundOrInternal(err, "subject not found", "failed to load subject")
	}
	if _, err := s.directory.FindTeacher(ctx, req.TeacherID); err != nil {
		return nil, notFoundOrInternal(err, "teacher not found", "failed to load teacher")
	}

	grade := &models.GradeRecord{
		EnrollmentID: req.EnrollmentID,
		SubjectID:    req.SubjectID,
		TeacherID:    req.TeacherID,
		Absences:     req.Absences,
		Indicators:   req.Indicators,
		Valuations:   req.Valuations,
		Average:      s.average(req.Scores),
		Status:       req.Status,
		Remarks:      req.Remarks,
	}
	grade.SetScores(req.Scores)
	if err := s.grades.Upsert(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}
	s.scheduleRanking(grade.SubjectID)
	return s.GetByEnrollmentAndSubject(ctx, grade.EnrollmentID, grade.SubjectID)
}

// PatchScores replaces the period scores and recomputes the average. Rank stays stale until the next ranking pass.
func (s *GradeService) PatchScores(ctx context.Context, id string, req PatchScoresRequest) (*models.GradeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scores payload")
	}
	grade, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if grade.Status == models.GradeStatusAnnulled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "grade record is annulled")
	}

	average := s.average(req.Scores)
	if err := s.grades.UpdateScores(ctx, id, req.Scores, average); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update scores")
	}
	grade.SetScores(req.Scores)
	grade.Average = average
	s.scheduleRanking(grade.SubjectID)
	return grade, nil
}

// Void marks a grade row annulled. The row is kept.
func (s *GradeService) Void(ctx context.Context, id string) (*models.GradeRecord, error) {
	grade, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if grade.Status == models.GradeStatusAnnulled {
		return grade, nil
	}
	if err := s.grades.UpdateStatus(ctx, id, models.GradeStatusAnnulled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to void grade")
	}
	grade.Status = models.GradeStatusAnnulled
	s.logger.Info("grade record voided", zap.String("grade_id", id), zap.String("subject_id", grade.SubjectID))
	s.scheduleRanking(grade.SubjectID)
	return grade, nil
}

// GetByEnrollmentAndSubject returns the expanded row for the pair.
func (s *GradeService) GetByEnrollmentAndSubject(ctx context.Context, enrollmentID, subjectID string) (*models.GradeRecordDetail, error) {
	grade, err := s.grades.FindDetail(ctx, enrollmentID, subjectID)
	if err != nil {
		return nil, notFoundOrInternal(err, "grade record not found", "failed to load grade record")
	}
	return grade, nil
}

// ListBySubject returns every row of a subject, voided ones included.
func (s *GradeService) ListBySubject(ctx context.Context, subjectID string) ([]models.GradeRecordDetail, error) {
	if _, err := s.directory.FindSubject(ctx, subjectID); err != nil {
		return nil, notFoundOrInternal(err, "subject not found", "failed to load subject")
	}
	grades, err := s.grades.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// ListByEnrollment returns an enrollment's rows ordered by subject name.
func (s *GradeService) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeRecordDetail, error) {
	if _, err := s.enrollments.FindByID(ctx, enrollmentID); err != nil {
		return nil, notFoundOrInternal(err, "enrollment not found", "failed to load enrollment")
	}
	grades, err := s.grades.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

func (s *GradeService) load(ctx context.Context, id string) (*models.GradeRecord, error) {
	grade, err := s.grades.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "grade record not found", "failed to load grade record")
	}
	return grade, nil
}

// average is the rounded mean of all four periods. Ungraded periods count as zero.
func (s *GradeService) average(scores models.Scores) float64 {
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return s.roundingMode(sum / models.PeriodCount)
}

func (s *GradeService) scheduleRanking(subjectID string) {
	if s.scheduler == nil {
		return
	}
	s.scheduler.ScheduleSubject(subjectID)
}

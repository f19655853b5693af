package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter, window models.Window) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsForStudentInTerm(ctx context.Context, studentID, termID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
}

type directoryReader interface {
	FindStudent(ctx context.Context, id string) (*models.Student, error)
	FindCohort(ctx context.Context, id string) (*models.Cohort, error)
	FindLocation(ctx context.Context, id string) (*models.Location, error)
	FindSubject(ctx context.Context, id string) (*models.Subject, error)
	FindTeacher(ctx context.Context, id string) (*models.Teacher, error)
}

type activeTermProvider interface {
	GetActive(ctx context.Context) (*models.Term, error)
}

type codeAllocator interface {
	AllocateWith(ctx context.Context, term *models.Term, persist func(code string) error) (string, error)
}

// RegisterEnrollmentRequest describes enrollment creation request.
type RegisterEnrollmentRequest struct {
	StudentID   string              `json:"student_id" validate:"required"`
	CohortID    string              `json:"cohort_id" validate:"required"`
	LocationID  string              `json:"location_id" validate:"required"`
	PeriodNotes []models.PeriodNote `json:"period_notes" validate:"max=4,dive"`
	Remarks     string              `json:"remarks" validate:"max=500"`
}

// UpdateEnrollmentRequest is a partial update. Average and rank are not part of it.
type UpdateEnrollmentRequest struct {
	CohortID    *string                  `json:"cohort_id"`
	LocationID  *string                  `json:"location_id"`
	Status      *models.EnrollmentStatus `json:"status" validate:"omitempty,oneof=ACTIVE WITHDRAWN SUSPENDED FINISHED"`
	PeriodNotes []models.PeriodNote      `json:"period_notes" validate:"omitempty,max=4,dive"`
	Remarks     *string                  `json:"remarks" validate:"omitempty,max=500"`
}

// EnrollmentService orchestrates enrollment workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	directory directoryReader
	terms     activeTermProvider
	codes     codeAllocator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, directory directoryReader, terms activeTermProvider, codes codeAllocator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, directory: directory, terms: terms, codes: codes, validator: validate, logger: logger}
}

// Register enrolls a student in a cohort for the active term under a freshly allocated code.
func (s *EnrollmentService) Register(ctx context.Context, req RegisterEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	term, err := s.terms.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, req.StudentID, req.CohortID, req.LocationID); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsForStudentInTerm(ctx, req.StudentID, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in active term")
	}

	enrollment := &models.Enrollment{
		StudentID:   req.StudentID,
		CohortID:    req.CohortID,
		LocationID:  req.LocationID,
		TermID:      term.ID,
		Status:      models.EnrollmentStatusActive,
		PeriodNotes: req.PeriodNotes,
		Remarks:     req.Remarks,
	}
	_, err = s.codes.AllocateWith(ctx, term, func(code string) error {
		enrollment.Code = code
		return s.repo.Create(ctx, enrollment)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEnrollment) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in active term")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("enrollment registered", zap.String("enrollment_id", enrollment.ID), zap.String("code", enrollment.Code), zap.String("term_id", term.ID))
	return s.Get(ctx, enrollment.ID)
}

// Update applies a partial administrative update.
func (s *EnrollmentService) Update(ctx context.Context, id string, req UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if req.CohortID != nil && *req.CohortID != enrollment.CohortID {
		if err := s.ensureReferences(ctx, "", *req.CohortID, ""); err != nil {
			return nil, err
		}
		enrollment.CohortID = *req.CohortID
	}
	if req.LocationID != nil && *req.LocationID != enrollment.LocationID {
		if err := s.ensureReferences(ctx, "", "", *req.LocationID); err != nil {
			return nil, err
		}
		enrollment.LocationID = *req.LocationID
	}
	if req.Status != nil {
		enrollment.Status = *req.Status
	}
	if req.PeriodNotes != nil {
		enrollment.PeriodNotes = req.PeriodNotes
	}
	if req.Remarks != nil {
		enrollment.Remarks = *req.Remarks
	}

	if err := s.repo.Update(ctx, enrollment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	return s.Get(ctx, id)
}

// Get returns an enrollment with related records expanded.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// ListByCohort lists the cohort's enrollments in the active term.
func (s *EnrollmentService) ListByCohort(ctx context.Context, cohortID string, window models.Window) (*models.EnrollmentPage, error) {
	return s.listActive(ctx, models.EnrollmentFilter{CohortID: cohortID}, window)
}

// ListByLocation lists the location's enrollments in the active term.
func (s *EnrollmentService) ListByLocation(ctx context.Context, locationID string, window models.Window) (*models.EnrollmentPage, error) {
	return s.listActive(ctx, models.EnrollmentFilter{LocationID: locationID}, window)
}

// ListBySubject lists the enrollments of the subject's cohort in the active term.
func (s *EnrollmentService) ListBySubject(ctx context.Context, subjectID string, window models.Window) (*models.EnrollmentPage, error) {
	subject, err := s.directory.FindSubject(ctx, subjectID)
	if err != nil {
		return nil, notFoundOrInternal(err, "subject not found", "failed to load subject")
	}
	page, err := s.listActive(ctx, models.EnrollmentFilter{CohortID: subject.CohortID}, window)
	if err != nil {
		return nil, err
	}
	if page.Total == 0 && !window.Empty() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no students enrolled in subject")
	}
	return page, nil
}

// Search matches student names and national id within the active term.
func (s *EnrollmentService) Search(ctx context.Context, query string, window models.Window) (*models.EnrollmentPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "search query is required")
	}
	return s.listActive(ctx, models.EnrollmentFilter{Search: query}, window)
}

// Delete removes an enrollment.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}

func (s *EnrollmentService) listActive(ctx context.Context, filter models.EnrollmentFilter, window models.Window) (*models.EnrollmentPage, error) {
	if window.Empty() {
		return &models.EnrollmentPage{Enrollments: []models.EnrollmentDetail{}, Total: 0}, nil
	}
	term, err := s.terms.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	filter.TermID = term.ID
	enrollments, total, err := s.repo.List(ctx, filter, window)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	return &models.EnrollmentPage{Enrollments: enrollments, Total: total}, nil
}

func (s *EnrollmentService) ensureReferences(ctx context.Context, studentID, cohortID, locationID string) error {
	if studentID != "" {
		if _, err := s.directory.FindStudent(ctx, studentID); err != nil {
			return notFoundOrInternal(err, "student not found", "failed to load student")
		}
	}
	if cohortID != "" {
		if _, err := s.directory.FindCohort(ctx, cohortID); err != nil {
			return notFoundOrInternal(err, "cohort not found", "failed to load cohort")
		}
	}
	if locationID != "" {
		if _, err := s.directory.FindLocation(ctx, locationID); err != nil {
			return notFoundOrInternal(err, "location not found", "failed to load location")
		}
	}
	return nil
}

func notFoundOrInternal(err error, notFound, internal string) error {
	if err == sql.ErrNoRows {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

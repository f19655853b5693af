package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// DirectoryRepository reads the reference records enrollments and grades point at.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs the repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// FindStudent returns a student by ID.
func (r *DirectoryRepository) FindStudent(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, `SELECT id, first_names, last_names, national_id FROM students WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindCohort returns a cohort by ID.
func (r *DirectoryRepository) FindCohort(ctx context.Context, id string) (*models.Cohort, error) {
	var cohort models.Cohort
	if err := r.db.GetContext(ctx, &cohort, `SELECT id, name, level, location_id FROM cohorts WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &cohort, nil
}

// FindLocation returns a location by ID.
func (r *DirectoryRepository) FindLocation(ctx context.Context, id string) (*models.Location, error) {
	var location models.Location
	if err := r.db.GetContext(ctx, &location, `SELECT id, name FROM locations WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &location, nil
}

// FindSubject returns a subject by ID.
func (r *DirectoryRepository) FindSubject(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, `SELECT id, name, cohort_id FROM subjects WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindTeacher returns a teacher by ID.
func (r *DirectoryRepository) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, `SELECT id, full_name FROM teachers WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

const enrollmentColumns = `e.id, e.code, e.student_id, e.cohort_id, e.location_id, e.term_id, e.average, e.rank, e.status,
        e.period_notes, e.remarks, e.created_at, e.updated_at`

const enrollmentDetailSelect = `SELECT ` + enrollmentColumns + `,
        s.first_names AS student_first_names, s.last_names AS student_last_names, s.national_id AS student_national_id,
        c.name AS cohort_name, l.name AS location_name, t.label AS term_label, t.period AS term_period`

const enrollmentDetailJoins = `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN cohorts c ON c.id = e.cohort_id
LEFT JOIN locations l ON l.id = e.location_id
LEFT JOIN terms t ON t.id = e.term_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns the window of enrollments matching filter plus the filtered total.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter, window models.Window) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.CohortID != "" {
		conditions = append(conditions, fmt.Sprintf("e.cohort_id = $%d", len(args)+1))
		args = append(args, filter.CohortID)
	}
	if filter.LocationID != "" {
		conditions = append(conditions, fmt.Sprintf("e.location_id = $%d", len(args)+1))
		args = append(args, filter.LocationID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("e.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(s.first_names ILIKE $%d OR s.last_names ILIKE $%d OR s.national_id ILIKE $%d)", n, n, n))
		args = append(args, "%"+escapeLike(search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`%s
        %s ORDER BY e.updated_at DESC, e.id LIMIT %d OFFSET %d`, enrollmentDetailSelect, enrollmentDetailJoins+clause, window.Limit(), window.Offset())

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+enrollmentDetailJoins+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListByCohortAndTerm returns every enrollment of a cohort in a term in creation order.
func (r *EnrollmentRepository) ListByCohortAndTerm(ctx context.Context, cohortID, termID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + "\n        " + enrollmentDetailJoins + `
        WHERE e.cohort_id = $1 AND e.term_id = $2 ORDER BY e.created_at, e.id`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, cohortID, termID); err != nil {
		return nil, fmt.Errorf("list cohort enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with its related records expanded.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + "\n        " + enrollmentDetailJoins + `
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsForStudentInTerm checks the (student, term) uniqueness rule.
func (r *EnrollmentRepository) ExistsForStudentInTerm(ctx context.Context, studentID, termID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND term_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, termID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student enrollment: %w", err)
	}
	return true, nil
}

// CodeExists reports whether an enrollment already uses code.
func (r *EnrollmentRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE code = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment code: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, code, student_id, cohort_id, location_id, term_id, average, rank, status, period_notes, remarks, created_at, updated_at)
        VALUES (:id, :code, :student_id, :cohort_id, :location_id, :term_id, :average, :rank, :status, :period_notes, :remarks, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", translateConstraint(err))
	}
	return nil
}

// Update writes the administrative fields of an enrollment. Average and rank are never touched here.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET cohort_id = :cohort_id, location_id = :location_id, status = :status,
        period_notes = :period_notes, remarks = :remarks, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, enrollment)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", translateConstraint(err))
	}
	return requireAffected(res)
}

// Delete removes an enrollment permanently.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return requireAffected(res)
}

// UpdateAverage stores a recomputed general average.
func (r *EnrollmentRepository) UpdateAverage(ctx context.Context, id string, average float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE enrollments SET average = $2, updated_at = $3 WHERE id = $1`, id, average, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update enrollment average: %w", err)
	}
	return requireAffected(res)
}

// UpdateRank stores a cohort rank.
func (r *EnrollmentRepository) UpdateRank(ctx context.Context, id string, rank int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE enrollments SET rank = $2, updated_at = $3 WHERE id = $1`, id, rank, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update enrollment rank: %w", err)
	}
	return requireAffected(res)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

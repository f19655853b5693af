package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

const gradeColumns = `g.id, g.enrollment_id, g.subject_id, g.teacher_id, g.period1, g.period2, g.period3, g.period4,
        g.absences, g.indicators, g.valuations, g.average, g.rank, g.status, g.remarks, g.created_at, g.updated_at`

const gradeDetailQuery = `SELECT ` + gradeColumns + `,
        sub.name AS subject_name, s.first_names AS student_first_names, s.last_names AS student_last_names,
        s.national_id AS student_national_id, e.code AS enrollment_code, c.name AS cohort_name,
        t.label AS term_label, COALESCE(tc.full_name, '') AS teacher_name
        FROM grade_records g
        JOIN enrollments e ON e.id = g.enrollment_id
        LEFT JOIN subjects sub ON sub.id = g.subject_id
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN cohorts c ON c.id = e.cohort_id
        LEFT JOIN terms t ON t.id = e.term_id
        LEFT JOIN teachers tc ON tc.id = g.teacher_id`

// GradeRepository handles grade ledger persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert writes the row for (enrollment, subject), overwriting every field of an
// existing row except its id, rank and creation time.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.GradeRecord) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	grade.CreatedAt = now
	grade.UpdatedAt = now
	if grade.Status == "" {
		grade.Status = models.GradeStatusPending
	}
	const query = `INSERT INTO grade_records (id, enrollment_id, subject_id, teacher_id, period1, period2, period3, period4,
        absences, indicators, valuations, average, rank, status, remarks, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, $13, $14, $15, $15)
        ON CONFLICT (enrollment_id, subject_id) DO UPDATE SET teacher_id = EXCLUDED.teacher_id,
        period1 = EXCLUDED.period1, period2 = EXCLUDED.period2, period3 = EXCLUDED.period3, period4 = EXCLUDED.period4,
        absences = EXCLUDED.absences, indicators = EXCLUDED.indicators, valuations = EXCLUDED.valuations,
        average = EXCLUDED.average, status = EXCLUDED.status, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at
        RETURNING id, rank, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query,
		grade.ID, grade.EnrollmentID, grade.SubjectID, grade.TeacherID,
		grade.Period1, grade.Period2, grade.Period3, grade.Period4,
		grade.Absences, grade.Indicators, grade.Valuations, grade.Average,
		grade.Status, grade.Remarks, now,
	)
	if err := row.Scan(&grade.ID, &grade.Rank, &grade.CreatedAt, &grade.UpdatedAt); err != nil {
		return fmt.Errorf("upsert grade record: %w", err)
	}
	return nil
}

// FindByID loads a grade record.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.GradeRecord, error) {
	query := `SELECT ` + gradeColumns + ` FROM grade_records g WHERE g.id = $1`
	var grade models.GradeRecord
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		return nil, err
	}
	return &grade, nil
}

// FindDetail loads the expanded row for (enrollment, subject).
func (r *GradeRepository) FindDetail(ctx context.Context, enrollmentID, subjectID string) (*models.GradeRecordDetail, error) {
	query := gradeDetailQuery + ` WHERE g.enrollment_id = $1 AND g.subject_id = $2`
	var grade models.GradeRecordDetail
	if err := r.db.GetContext(ctx, &grade, query, enrollmentID, subjectID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// UpdateScores stores new period scores with their average. Rank is left as is.
func (r *GradeRepository) UpdateScores(ctx context.Context, id string, scores models.Scores, average float64) error {
	const query = `UPDATE grade_records SET period1 = $2, period2 = $3, period3 = $4, period4 = $5, average = $6, updated_at = $7
        WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, scores[0], scores[1], scores[2], scores[3], average, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update grade scores: %w", err)
	}
	return requireAffected(res)
}

// UpdateStatus changes the approval status of a grade record.
func (r *GradeRepository) UpdateStatus(ctx context.Context, id string, status models.GradeStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE grade_records SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update grade status: %w", err)
	}
	return requireAffected(res)
}

// UpdateRank stores a subject rank.
func (r *GradeRepository) UpdateRank(ctx context.Context, id string, rank int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE grade_records SET rank = $2, updated_at = $3 WHERE id = $1`, id, rank, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update grade rank: %w", err)
	}
	return requireAffected(res)
}

// ListBySubject returns expanded rows for one subject, best average first.
func (r *GradeRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.GradeRecordDetail, error) {
	query := gradeDetailQuery + ` WHERE g.subject_id = $1 ORDER BY g.average DESC, s.last_names, s.first_names`
	var grades []models.GradeRecordDetail
	if err := r.db.SelectContext(ctx, &grades, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject grades: %w", err)
	}
	return grades, nil
}

// ListByEnrollment returns expanded rows for one enrollment ordered by subject name.
func (r *GradeRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.GradeRecordDetail, error) {
	query := gradeDetailQuery + ` WHERE g.enrollment_id = $1 ORDER BY sub.name, g.id`
	var grades []models.GradeRecordDetail
	if err := r.db.SelectContext(ctx, &grades, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment grades: %w", err)
	}
	return grades, nil
}

// ListRankableBySubject returns the subject ranking population in creation order.
// Annulled rows are not part of it.
func (r *GradeRepository) ListRankableBySubject(ctx context.Context, subjectID string) ([]models.GradeRecord, error) {
	query := `SELECT ` + gradeColumns + ` FROM grade_records g
        WHERE g.subject_id = $1 AND g.status <> $2 ORDER BY g.created_at, g.id`
	var grades []models.GradeRecord
	if err := r.db.SelectContext(ctx, &grades, query, subjectID, models.GradeStatusAnnulled); err != nil {
		return nil, fmt.Errorf("list rankable grades: %w", err)
	}
	return grades, nil
}

// FetchAveragesByEnrollments returns the non-annulled subject averages keyed by enrollment ID.
// Enrollments without grade rows are absent from the map.
func (r *GradeRepository) FetchAveragesByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string][]float64, error) {
	if len(enrollmentIDs) == 0 {
		return map[string][]float64{}, nil
	}
	placeholders := make([]string, len(enrollmentIDs))
	args := make([]interface{}, len(enrollmentIDs)+1)
	for i, id := range enrollmentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	args[len(args)-1] = models.GradeStatusAnnulled
	query := fmt.Sprintf(`SELECT enrollment_id, average FROM grade_records
        WHERE enrollment_id IN (%s) AND status <> $%d ORDER BY enrollment_id, subject_id`, strings.Join(placeholders, ","), len(args))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch grade averages: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]float64, len(enrollmentIDs))
	for rows.Next() {
		var enrollmentID string
		var average float64
		if err := rows.Scan(&enrollmentID, &average); err != nil {
			return nil, fmt.Errorf("scan grade average: %w", err)
		}
		result[enrollmentID] = append(result[enrollmentID], average)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grade averages: %w", err)
	}
	return result, nil
}

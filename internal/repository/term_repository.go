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

// termActivationLockKey guards every check-then-write on terms.is_active.
// The partial unique index terms_single_active_idx backs it at the store level.
const termActivationLockKey int64 = 0x7465726d

const termColumns = `id, label, period, start_date, end_date, is_active, created_at, updated_at`

// TermRepository handles persistence for academic terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns terms matching provided filters.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	base := "FROM terms WHERE 1=1"
	var args []interface{}

	if filter.IsActive != nil {
		base += fmt.Sprintf(" AND is_active = $%d", len(args)+1)
		args = append(args, *filter.IsActive)
	}

	allowedSorts := map[string]bool{
		"label":      true,
		"start_date": true,
		"created_at": true,
		"updated_at": true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "updated_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", termColumns, base, sortBy, order, size, offset)

	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}

	return terms, total, nil
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms WHERE id = $1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindActive returns the currently active term.
func (r *TermRepository) FindActive(ctx context.Context) (*models.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms WHERE is_active = TRUE LIMIT 1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query); err != nil {
		return nil, err
	}
	return &term, nil
}

// ExistsByLabel checks label uniqueness, optionally ignoring one term.
func (r *TermRepository) ExistsByLabel(ctx context.Context, label, excludeID string) (bool, error) {
	query := "SELECT 1 FROM terms WHERE label = $1"
	args := []interface{}{label}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check term label: %w", err)
	}
	return true, nil
}

// Create inserts a term. When the term is active the activation check and the
// insert commit together.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if term.IsActive {
			if err := ensureNoOtherActive(ctx, tx, term.ID); err != nil {
				return err
			}
		}
		const query = `INSERT INTO terms (id, label, period, start_date, end_date, is_active, created_at, updated_at)
        VALUES (:id, :label, :period, :start_date, :end_date, :is_active, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, term); err != nil {
			return fmt.Errorf("create term: %w", translateConstraint(err))
		}
		return nil
	})
}

// Update rewrites a term. Setting is_active goes through the same guarded check as Activate.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	term.UpdatedAt = time.Now().UTC()
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if term.IsActive {
			if err := ensureNoOtherActive(ctx, tx, term.ID); err != nil {
				return err
			}
		}
		const query = `UPDATE terms SET label = :label, period = :period, start_date = :start_date, end_date = :end_date,
        is_active = :is_active, updated_at = :updated_at WHERE id = :id`
		res, err := tx.NamedExecContext(ctx, query, term)
		if err != nil {
			return fmt.Errorf("update term: %w", translateConstraint(err))
		}
		return requireAffected(res)
	})
}

// Activate flags a term active unless another term already is.
func (r *TermRepository) Activate(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := ensureNoOtherActive(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE terms SET is_active = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("activate term: %w", translateConstraint(err))
		}
		return requireAffected(res)
	})
}

// Deactivate clears the active flag on a term.
func (r *TermRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE terms SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate term: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a term permanently.
func (r *TermRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM terms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	return nil
}

// CountEnrollments returns the number of enrollments referencing the term.
func (r *TermRepository) CountEnrollments(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE term_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count term enrollments: %w", err)
	}
	return count, nil
}

// ensureNoOtherActive takes the activation advisory lock for the rest of tx and
// fails when a term other than id is active.
func ensureNoOtherActive(ctx context.Context, tx *sqlx.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, termActivationLockKey); err != nil {
		return fmt.Errorf("lock term activation: %w", err)
	}
	var activeID string
	err := tx.GetContext(ctx, &activeID, `SELECT id FROM terms WHERE is_active = TRUE AND id <> $1 LIMIT 1`, id)
	switch {
	case err == sql.ErrNoRows:
		return nil
	case err != nil:
		return fmt.Errorf("check active term: %w", err)
	}
	return ErrActiveTermExists
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

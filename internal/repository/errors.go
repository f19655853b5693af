package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Sentinel errors raised when a store-level uniqueness constraint rejects a write.
var (
	ErrActiveTermExists    = errors.New("another term is already active")
	ErrDuplicateTermLabel  = errors.New("term label already exists")
	ErrDuplicateCode       = errors.New("enrollment code already exists")
	ErrDuplicateEnrollment = errors.New("student already enrolled in term")
)

// Constraint names declared in migrations/0001_academic_records.sql.
const (
	constraintSingleActiveTerm = "terms_single_active_idx"
	constraintTermLabel        = "terms_label_key"
	constraintEnrollmentCode   = "enrollments_code_key"
	constraintStudentTerm      = "enrollments_student_term_key"
)

// translateConstraint maps unique violations onto the sentinels above and
// returns every other error untouched.
func translateConstraint(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code.Name() != "unique_violation" {
		return err
	}
	switch pqErr.Constraint {
	case constraintSingleActiveTerm:
		return ErrActiveTermExists
	case constraintTermLabel:
		return ErrDuplicateTermLabel
	case constraintEnrollmentCode:
		return ErrDuplicateCode
	case constraintStudentTerm:
		return ErrDuplicateEnrollment
	}
	return err
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

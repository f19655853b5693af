package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
	EnrollmentStatusFinished  EnrollmentStatus = "FINISHED"
)

// PeriodNote is the narrative written for a student at the end of a period.
type PeriodNote struct {
	Period     int    `json:"period" validate:"oneof=1 2 3 4"`
	Academic   string `json:"academic,omitempty"`
	Behavioral string `json:"behavioral,omitempty"`
}

// PeriodNotes is stored as JSONB.
type PeriodNotes []PeriodNote

// Value implements driver.Valuer.
func (n PeriodNotes) Value() (driver.Value, error) {
	if n == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(n)
}

// Scan implements sql.Scanner.
func (n *PeriodNotes) Scan(src interface{}) error {
	return scanJSON(src, n)
}

// Enrollment captures a student's registration to a cohort within a term.
// Average and Rank are owned by the ranking pass.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	Code        string           `db:"code" json:"code"`
	StudentID   string           `db:"student_id" json:"student_id"`
	CohortID    string           `db:"cohort_id" json:"cohort_id"`
	LocationID  string           `db:"location_id" json:"location_id"`
	TermID      string           `db:"term_id" json:"term_id"`
	Average     float64          `db:"average" json:"average"`
	Rank        int              `db:"rank" json:"rank"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	PeriodNotes PeriodNotes      `db:"period_notes" json:"period_notes"`
	Remarks     string           `db:"remarks" json:"remarks,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with its related records.
type EnrollmentDetail struct {
	Enrollment
	StudentFirstNames string `db:"student_first_names" json:"student_first_names"`
	StudentLastNames  string `db:"student_last_names" json:"student_last_names"`
	StudentNationalID string `db:"student_national_id" json:"student_national_id"`
	CohortName        string `db:"cohort_name" json:"cohort_name"`
	LocationName      string `db:"location_name" json:"location_name"`
	TermLabel         string `db:"term_label" json:"term_label"`
	TermPeriod        int    `db:"term_period" json:"term_period"`
}

// StudentName joins first and last names for presentation.
func (d EnrollmentDetail) StudentName() string {
	switch {
	case d.StudentFirstNames == "":
		return d.StudentLastNames
	case d.StudentLastNames == "":
		return d.StudentFirstNames
	}
	return d.StudentFirstNames + " " + d.StudentLastNames
}

// EnrollmentFilter scopes enrollment listings.
type EnrollmentFilter struct {
	CohortID   string
	LocationID string
	TermID     string
	Search     string
}

func scanJSON(src interface{}, dest interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

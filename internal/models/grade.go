package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// GradeStatus tracks the approval state of a grade record.
type GradeStatus string

const (
	GradeStatusPending     GradeStatus = "PENDING"
	GradeStatusApproved    GradeStatus = "APPROVED"
	GradeStatusDisapproved GradeStatus = "DISAPPROVED"
	// GradeStatusAnnulled marks a voided row kept for audit.
	GradeStatusAnnulled GradeStatus = "ANNULLED"
)

// PeriodCount is the number of grading periods in a term.
const PeriodCount = 4

// Scores holds one score per period, each in [0,10].
type Scores [PeriodCount]float64

// PeriodIndicators lists achievement indicators for one period (max four).
type PeriodIndicators struct {
	Period int      `json:"period" validate:"oneof=1 2 3 4"`
	Items  []string `json:"items" validate:"max=4"`
}

// PeriodValuation is a qualitative grade used in early levels.
type PeriodValuation struct {
	Period int    `json:"period" validate:"oneof=1 2 3 4"`
	Value  string `json:"value"`
}

// IndicatorList is stored as JSONB.
type IndicatorList []PeriodIndicators

// Value implements driver.Valuer.
func (l IndicatorList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *IndicatorList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// ValuationList is stored as JSONB.
type ValuationList []PeriodValuation

// Value implements driver.Valuer.
func (l ValuationList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *ValuationList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// GradeRecord is the per-subject ledger row of an enrollment.
type GradeRecord struct {
	ID           string        `db:"id" json:"id"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	SubjectID    string        `db:"subject_id" json:"subject_id"`
	TeacherID    string        `db:"teacher_id" json:"teacher_id"`
	Period1      float64       `db:"period1" json:"period1"`
	Period2      float64       `db:"period2" json:"period2"`
	Period3      float64       `db:"period3" json:"period3"`
	Period4      float64       `db:"period4" json:"period4"`
	Absences     int           `db:"absences" json:"absences"`
	Indicators   IndicatorList `db:"indicators" json:"indicators"`
	Valuations   ValuationList `db:"valuations" json:"valuations"`
	Average      float64       `db:"average" json:"average"`
	Rank         int           `db:"rank" json:"rank"`
	Status       GradeStatus   `db:"status" json:"status"`
	Remarks      string        `db:"remarks" json:"remarks,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// Scores returns the four period scores.
func (g GradeRecord) Scores() Scores {
	return Scores{g.Period1, g.Period2, g.Period3, g.Period4}
}

// SetScores overwrites the four period scores.
func (g *GradeRecord) SetScores(s Scores) {
	g.Period1, g.Period2, g.Period3, g.Period4 = s[0], s[1], s[2], s[3]
}

// GradeRecordDetail expands related records for presentation.
type GradeRecordDetail struct {
	GradeRecord
	SubjectName       string `db:"subject_name" json:"subject_name"`
	StudentFirstNames string `db:"student_first_names" json:"student_first_names"`
	StudentLastNames  string `db:"student_last_names" json:"student_last_names"`
	StudentNationalID string `db:"student_national_id" json:"student_national_id"`
	EnrollmentCode    string `db:"enrollment_code" json:"enrollment_code"`
	CohortName        string `db:"cohort_name" json:"cohort_name"`
	TermLabel         string `db:"term_label" json:"term_label"`
	TeacherName       string `db:"teacher_name" json:"teacher_name"`
}

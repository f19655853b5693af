package models

// Student is the read-only directory entry for a learner.
type Student struct {
	ID         string `db:"id" json:"id"`
	FirstNames string `db:"first_names" json:"first_names"`
	LastNames  string `db:"last_names" json:"last_names"`
	NationalID string `db:"national_id" json:"national_id"`
}

// Cohort is a grade-level grouping at a location.
type Cohort struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Level      string `db:"level" json:"level"`
	LocationID string `db:"location_id" json:"location_id"`
}

// Location is a school campus.
type Location struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Subject is taught to one cohort.
type Subject struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	CohortID string `db:"cohort_id" json:"cohort_id"`
}

// Teacher is referenced for grade attribution.
type Teacher struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
}

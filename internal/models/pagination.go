package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Window is an offset range [From, To) used by enrollment listings.
type Window struct {
	From int
	To   int
}

// Empty reports whether the window selects nothing.
func (w Window) Empty() bool {
	return w.To <= 0 || w.From >= w.To
}

// Offset clamps From at zero.
func (w Window) Offset() int {
	if w.From < 0 {
		return 0
	}
	return w.From
}

// Limit is the number of rows the window spans.
func (w Window) Limit() int {
	return w.To - w.Offset()
}

// EnrollmentPage is a windowed listing with the total size of the filtered set.
type EnrollmentPage struct {
	Enrollments []EnrollmentDetail `json:"enrollments"`
	Total       int                `json:"total"`
}

package models

// RankingScope names the population a ranking pass covers.
type RankingScope string

const (
	RankingScopeCohort  RankingScope = "cohort"
	RankingScopeSubject RankingScope = "subject"
)

// RankedEntry is one member of a population after a ranking pass.
type RankedEntry struct {
	ID      string  `json:"id"`
	Average float64 `json:"average"`
	Rank    int     `json:"rank"`
}

// RankingResult summarises a completed ranking pass.
type RankingResult struct {
	Scope        RankingScope  `json:"scope"`
	PopulationID string        `json:"population_id"`
	TermID       string        `json:"term_id,omitempty"`
	Entries      []RankedEntry `json:"entries"`
	// Skipped lists enrollments whose average was left unchanged for lack of grades.
	Skipped []string `json:"skipped,omitempty"`
}

// RankingReportRow is a printable row of a cohort ranking.
type RankingReportRow struct {
	Rank        int     `json:"rank"`
	Code        string  `json:"code"`
	StudentName string  `json:"student_name"`
	NationalID  string  `json:"national_id"`
	Average     float64 `json:"average"`
}

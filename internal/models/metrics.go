package models

import "time"

// SystemMetrics is a JSON snapshot of the process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	RankingRuns              uint64    `json:"ranking_runs"`
	RankingFailures          uint64    `json:"ranking_failures"`
	AverageRankingDurationMs float64   `json:"average_ranking_duration_ms"`
	TermActivationConflicts  uint64    `json:"term_activation_conflicts"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

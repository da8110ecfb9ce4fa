package domain

import "time"

// SweepSummary aggregates one scheduler pass over every region.
type SweepSummary struct {
	Total         int       `json:"total"`
	SuccessCount  int       `json:"success_count"`
	FailedRegions []string  `json:"failed_regions"`
	Trigger       string    `json:"trigger,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// ScheduleConfig is the singleton test-scheduler configuration.
type ScheduleConfig struct {
	Enabled    bool          `json:"enabled"`
	Crons      []string      `json:"crons"`
	LastRun    *time.Time    `json:"last_run,omitempty"`
	LastResult *SweepSummary `json:"last_result,omitempty"`
}

// SweepRecord is the historical copy of a sweep summary.
type SweepRecord struct {
	ID string `json:"id"`
	SweepSummary
}

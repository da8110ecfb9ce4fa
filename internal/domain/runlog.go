package domain

import "time"

// RunStatus is the lifecycle state of a scrape or test invocation.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailed
}

// RunMetadata is the structured blob attached to a run log.
type RunMetadata struct {
	DryRun      bool   `json:"dry_run"`
	DayRange    int    `json:"days"`
	MaxArticles int    `json:"max_articles,omitempty"`
	Routine     string `json:"routine,omitempty"`
	ExitCode    *int   `json:"exit_code,omitempty"`
	Output      string `json:"output,omitempty"`
}

// RunLog is one append-only record per scrape or test invocation.
type RunLog struct {
	ID            string      `json:"id"`
	Region        string      `json:"region"`
	Status        RunStatus   `json:"status"`
	StartedAt     time.Time   `json:"started_at"`
	EndedAt       *time.Time  `json:"ended_at,omitempty"`
	ArticlesCount int         `json:"articles_count"`
	LogMessage    string      `json:"log_message"`
	Metadata      RunMetadata `json:"metadata"`
}

// RunCompletion carries the single terminal transition of a run log.
type RunCompletion struct {
	Status        RunStatus
	EndedAt       time.Time
	ArticlesCount int
	LogMessage    string
	Metadata      RunMetadata
}

// Normalize enforces that only successful runs report articles.
func (c RunCompletion) Normalize() RunCompletion {
	if c.Status != RunSuccess || c.ArticlesCount < 0 {
		c.ArticlesCount = 0
	}
	if !c.Status.Terminal() {
		c.Status = RunFailed
	}
	return c
}

// RunLogFilter narrows run log listings.
type RunLogFilter struct {
	Region string
	Status RunStatus
	Since  time.Time
	Limit  int
}

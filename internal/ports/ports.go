package ports

import (
	"context"
	"time"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
)

// RunLogStore is the append-only sink for scrape and test invocations.
type RunLogStore interface {
	CreateRunLog(ctx context.Context, log domain.RunLog) (string, error)
	FinishRunLog(ctx context.Context, id string, completion domain.RunCompletion) error
	GetRunLog(ctx context.Context, id string) (domain.RunLog, error)
	ListRunLogs(ctx context.Context, filter domain.RunLogFilter) ([]domain.RunLog, error)
	ResetStaleRunLogs(ctx context.Context, olderThan time.Time, message string) (int64, error)
}

// ArticleStore reads articles and applies terminal pipeline outcomes.
type ArticleStore interface {
	GetArticle(ctx context.Context, id string) (domain.Article, error)
	ListArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error)
	ApplyOutcome(ctx context.Context, outcome domain.ArticleOutcome) error
	IncrementViews(ctx context.Context, id string) error
}

// SettingsStore holds singleton configuration rows keyed by a fixed string.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) ([]byte, error)
	PutSetting(ctx context.Context, key string, value []byte) error
}

// SweepHistoryStore keeps every completed test sweep for trend analysis.
type SweepHistoryStore interface {
	AppendSweep(ctx context.Context, record domain.SweepRecord) error
	ListSweeps(ctx context.Context, limit int) ([]domain.SweepRecord, error)
}

// BoostStore lists promotional boosts whose window contains now.
type BoostStore interface {
	ActiveBoosts(ctx context.Context, now time.Time) ([]domain.Boost, error)
}

// BehaviorStore tracks per-viewer interaction counts.
type BehaviorStore interface {
	Behavior(ctx context.Context, viewerID string) (domain.ViewerBehavior, error)
	RecordView(ctx context.Context, viewerID, region, category string) error
}

// ProcessResult is what a finished child process left behind.
type ProcessResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ProcessRunner spawns an external process and waits for it to exit.
// A non-nil error means the process could not be started or waited on.
type ProcessRunner interface {
	Run(ctx context.Context, cmd string, args []string, env []string) (ProcessResult, error)
}

// TextGenerator sends a prompt to a text-generation model.
type TextGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// Notifier streams operational alerts to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler arms calendar triggers and tears them down again.
type Scheduler interface {
	Arm(specs []string, job func(time.Time)) error
	Disarm()
	Entries() int
}

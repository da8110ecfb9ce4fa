package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrStaleWrite is returned when a guarded update finds the row already
// moved on by another writer.
var ErrStaleWrite = errors.New("row changed by another writer")

// ArticleStatus enumerates the editorial lifecycle of an article.
type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusPublished ArticleStatus = "published"
	StatusRejected  ArticleStatus = "rejected"
	StatusLimited   ArticleStatus = "limited"
	StatusTrash     ArticleStatus = "trash"
	StatusPending   ArticleStatus = "pending"
)

// Article is the subset of the content-store article the pipeline touches.
// Source holds the region/publisher label the scraper attributed it to.
type Article struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Content     string        `json:"content"`
	Source      string        `json:"source"`
	Category    string        `json:"category"`
	Status      ArticleStatus `json:"status"`
	AIProcessed bool          `json:"ai_processed"`
	PublishedAt time.Time     `json:"published_at"`
	ViewCount   int           `json:"view_count"`
	ReviewNote  string        `json:"review_note,omitempty"`
}

// ArticleOutcome is the terminal write produced by the verification pipeline.
// A nil Content leaves the stored content untouched. The write only lands on
// an article that is not yet AI-processed and, when ExpectStatus is set,
// still carries that status.
type ArticleOutcome struct {
	ID           string
	ExpectStatus ArticleStatus
	Status       ArticleStatus
	Content      *string
	AIProcessed  bool
	PublishedAt  *time.Time
	ReviewNote   string
}

// ArticleFilter narrows article reads.
type ArticleFilter struct {
	Sources     []string
	Statuses    []ArticleStatus
	AIProcessed *bool
	Since       time.Time
	Limit       int
	Offset      int
}

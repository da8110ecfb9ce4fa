package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

const (
	defaultBatchLimit       = 10
	defaultBatchConcurrency = 2
)

var (
	// ErrAlreadyProcessed is returned for articles the pipeline has already
	// rewritten, or whose outcome another run wrote first.
	ErrAlreadyProcessed = errors.New("article already processed")
	ErrArticleInFlight  = errors.New("article is already being processed")
)

// ArticleLoop runs the bounded rewrite and verify state machine.
type ArticleLoop interface {
	Run(ctx context.Context, original string) LoopResult
}

// PipelineDeps wires the collaborators of the article processor.
type PipelineDeps struct {
	Articles      ports.ArticleStore
	Loop          ArticleLoop
	Notifier      ports.Notifier
	Normalize     func(string) string
	HoldForReview bool
	Logger        *slog.Logger
	Now           func() time.Time
}

// ArticleProcessor moves draft articles through rewrite and verification
// and persists only the terminal outcome.
type ArticleProcessor struct {
	articles      ports.ArticleStore
	loop          ArticleLoop
	notifier      ports.Notifier
	normalize     func(string) string
	holdForReview bool
	logger        *slog.Logger
	now           func() time.Time

	inFlight sync.Map
}

// RewriteOutcome is what rewriteAndVerify reports back to its caller.
type RewriteOutcome struct {
	ArticleID   string               `json:"article_id"`
	FinalStatus domain.ArticleStatus `json:"final_status"`
	Grade       domain.Grade         `json:"grade,omitempty"`
	Attempts    int                  `json:"attempts"`
	Published   bool                 `json:"published"`
	Summary     string               `json:"summary,omitempty"`
	LengthRatio float64              `json:"length_ratio"`
	Warnings    domain.CrossCheck    `json:"warnings"`
	History     []AttemptRecord      `json:"history,omitempty"`
}

// DraftBatch selects unprocessed drafts for the batch driver.
type DraftBatch struct {
	Region      string `json:"region"`
	Limit       int    `json:"limit"`
	Concurrency int    `json:"concurrency"`
}

// BatchReport aggregates one batch run.
type BatchReport struct {
	Selected  int               `json:"selected"`
	Published int               `json:"published"`
	Rejected  int               `json:"rejected"`
	Failed    int               `json:"failed"`
	Outcomes  []RewriteOutcome  `json:"outcomes"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// NewArticleProcessor constructs the processor.
func NewArticleProcessor(deps PipelineDeps) *ArticleProcessor {
	p := &ArticleProcessor{
		articles:      deps.Articles,
		loop:          deps.Loop,
		notifier:      deps.Notifier,
		normalize:     deps.Normalize,
		holdForReview: deps.HoldForReview,
		logger:        deps.Logger,
		now:           deps.Now,
	}
	if p.normalize == nil {
		p.normalize = strings.TrimSpace
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// RewriteAndVerify processes one article. On acceptance the rewritten text
// replaces the content and the article is published; otherwise the stored
// content is left untouched and the verification summary is kept for review.
// Only one run per article proceeds in this process, and the outcome write is
// guarded so a run that lost a race across processes writes nothing.
func (p *ArticleProcessor) RewriteAndVerify(ctx context.Context, id string) (RewriteOutcome, error) {
	if _, busy := p.inFlight.LoadOrStore(id, struct{}{}); busy {
		return RewriteOutcome{}, fmt.Errorf("article %s: %w", id, ErrArticleInFlight)
	}
	defer p.inFlight.Delete(id)

	article, err := p.articles.GetArticle(ctx, id)
	if err != nil {
		return RewriteOutcome{}, fmt.Errorf("load article %s: %w", id, err)
	}
	if article.AIProcessed {
		return RewriteOutcome{}, fmt.Errorf("article %s: %w", id, ErrAlreadyProcessed)
	}

	logger := p.logger.With("article_id", id, "source", article.Source)
	source := p.normalize(article.Content)
	if source == "" {
		outcome := RewriteOutcome{ArticleID: id, Summary: "원문이 비어 있습니다."}
		return p.reject(ctx, logger, article, outcome)
	}

	result := p.loop.Run(ctx, source)
	outcome := RewriteOutcome{
		ArticleID:   id,
		Grade:       result.Grade,
		Attempts:    result.Attempts,
		Summary:     result.Summary,
		LengthRatio: result.LengthRatio,
		Warnings:    result.Warnings,
		History:     result.History,
	}

	if result.Cancelled {
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		logger.Warn("article left unprocessed", "attempts", result.Attempts, "error", err)
		return outcome, fmt.Errorf("article %s: %w", id, err)
	}

	if result.Verdict != domain.VerdictAccepted {
		return p.reject(ctx, logger, article, outcome)
	}

	publishedAt := p.now()
	draft := result.Draft
	err = p.articles.ApplyOutcome(context.WithoutCancel(ctx), domain.ArticleOutcome{
		ID:           id,
		ExpectStatus: article.Status,
		Status:       domain.StatusPublished,
		Content:      &draft,
		AIProcessed:  true,
		PublishedAt:  &publishedAt,
		ReviewNote:   reviewNote(outcome),
	})
	if err != nil {
		return outcome, outcomeError("publish", id, err)
	}

	outcome.FinalStatus = domain.StatusPublished
	outcome.Published = true
	logger.Info("article published", "grade", outcome.Grade, "attempts", outcome.Attempts, "ratio", outcome.LengthRatio)
	return outcome, nil
}

func (p *ArticleProcessor) reject(ctx context.Context, logger *slog.Logger, article domain.Article, outcome RewriteOutcome) (RewriteOutcome, error) {
	status := domain.StatusRejected
	if p.holdForReview {
		status = domain.StatusPending
	}

	err := p.articles.ApplyOutcome(context.WithoutCancel(ctx), domain.ArticleOutcome{
		ID:           article.ID,
		ExpectStatus: article.Status,
		Status:       status,
		ReviewNote:   reviewNote(outcome),
	})
	if err != nil {
		return outcome, outcomeError("reject", article.ID, err)
	}

	outcome.FinalStatus = status
	logger.Info("article not published", "status", status, "grade", outcome.Grade, "attempts", outcome.Attempts, "summary", outcome.Summary)
	return outcome, nil
}

// outcomeError reports a write that lost to another run as ErrAlreadyProcessed.
func outcomeError(action, id string, err error) error {
	if errors.Is(err, domain.ErrStaleWrite) {
		return fmt.Errorf("%s article %s: %w", action, id, ErrAlreadyProcessed)
	}
	return fmt.Errorf("%s article %s: %w", action, id, err)
}

// ProcessDrafts runs the pipeline over unprocessed drafts. Articles are
// processed concurrently up to batch.Concurrency; each article's loop stays
// sequential. Per-article failures are reported, not returned.
func (p *ArticleProcessor) ProcessDrafts(ctx context.Context, batch DraftBatch) (BatchReport, error) {
	if batch.Limit <= 0 {
		batch.Limit = defaultBatchLimit
	}
	if batch.Concurrency <= 0 {
		batch.Concurrency = defaultBatchConcurrency
	}

	unprocessed := false
	filter := domain.ArticleFilter{
		Statuses:    []domain.ArticleStatus{domain.StatusDraft},
		AIProcessed: &unprocessed,
		Limit:       batch.Limit,
	}
	if batch.Region != "" {
		filter.Sources = []string{batch.Region}
	}

	drafts, err := p.articles.ListArticles(ctx, filter)
	if err != nil {
		return BatchReport{}, fmt.Errorf("list drafts: %w", err)
	}

	report := BatchReport{Selected: len(drafts)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batch.Concurrency)
	for _, draft := range drafts {
		draft := draft
		g.Go(func() error {
			outcome, err := p.RewriteAndVerify(gctx, draft.ID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				if report.Errors == nil {
					report.Errors = map[string]string{}
				}
				report.Errors[draft.ID] = err.Error()
				p.logger.Error("process draft", "article_id", draft.ID, "error", err)
				return nil
			}
			if outcome.Published {
				report.Published++
			} else {
				report.Rejected++
			}
			report.Outcomes = append(report.Outcomes, outcome)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	p.logger.Info("draft batch finished",
		"region", batch.Region,
		"selected", report.Selected,
		"published", report.Published,
		"rejected", report.Rejected,
		"failed", report.Failed,
	)

	if p.notifier != nil && (report.Rejected > 0 || report.Failed > 0) {
		if err := p.notifier.PublishDigest(ctx, buildBatchDigest(batch, report)); err != nil {
			p.logger.Warn("publish batch digest", "error", err)
		}
	}
	return report, nil
}

func reviewNote(o RewriteOutcome) string {
	if o.Grade == "" {
		return o.Summary
	}
	note := fmt.Sprintf("[%s] %s", o.Grade, o.Summary)
	if o.Warnings.HardWarning() {
		note += fmt.Sprintf(" (원문에 없는 숫자: %s, 원문에 없는 인용: %s)",
			strings.Join(o.Warnings.UnknownNumbers, ", "),
			strings.Join(o.Warnings.UnknownQuotes, " / "))
	}
	return strings.TrimSpace(note)
}

func buildBatchDigest(batch DraftBatch, report BatchReport) string {
	var b strings.Builder
	region := batch.Region
	if region == "" {
		region = "전체"
	}
	fmt.Fprintf(&b, "AI 처리 결과 (%s): 대상 %d, 게시 %d, 반려 %d, 오류 %d\n",
		region, report.Selected, report.Published, report.Rejected, report.Failed)
	for _, o := range report.Outcomes {
		if o.Published {
			continue
		}
		fmt.Fprintf(&b, "- %s [%s] %d회: %s\n", o.ArticleID, o.Grade, o.Attempts, o.Summary)
	}
	for id, msg := range report.Errors {
		fmt.Fprintf(&b, "- %s 오류: %s\n", id, msg)
	}
	return b.String()
}

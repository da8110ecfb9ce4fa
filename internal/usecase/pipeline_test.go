package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
)

type loopFunc func(ctx context.Context, original string) LoopResult

func (f loopFunc) Run(ctx context.Context, original string) LoopResult { return f(ctx, original) }

var fixedNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestRewriteAndVerifyPublishes(t *testing.T) {
	t.Parallel()

	source := strings.Repeat("가나다라마", 200)
	articles := newMemArticles(domain.Article{ID: "a1", Source: "naju", Content: source, Status: domain.StatusDraft})
	rewriteGen := &scriptedGenerator{responses: []generation{
		{text: strings.Repeat("가", 880)},
		{text: strings.Repeat("가", 920)},
	}}
	verifyGen := &scriptedGenerator{responses: []generation{
		{text: "등급: B\n요약: 날짜 누락\n개선: 날짜 누락"},
		{text: "등급: A\n요약: 사실 일치"},
	}}

	p := NewArticleProcessor(PipelineDeps{
		Articles: articles,
		Loop:     newTestLoop(rewriteGen, verifyGen, 5),
		Now:      func() time.Time { return fixedNow },
	})

	out, err := p.RewriteAndVerify(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, out.Published)
	assert.Equal(t, domain.StatusPublished, out.FinalStatus)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, domain.GradeA, out.Grade)

	stored := articles.get("a1")
	assert.Equal(t, domain.StatusPublished, stored.Status)
	assert.True(t, stored.AIProcessed)
	assert.Equal(t, strings.Repeat("가", 920), stored.Content)
	assert.Equal(t, fixedNow, stored.PublishedAt)
	assert.GreaterOrEqual(t, LengthRatio(source, stored.Content), 0.85)
}

func TestRewriteAndVerifyRejectionKeepsOriginal(t *testing.T) {
	t.Parallel()

	original := "  <p>예산 50억원 지원</p>\n"
	articles := newMemArticles(domain.Article{ID: "a1", Content: original, Status: domain.StatusDraft})
	p := NewArticleProcessor(PipelineDeps{
		Articles: articles,
		Loop: loopFunc(func(context.Context, string) LoopResult {
			return LoopResult{
				Verdict:  domain.VerdictRejected,
				Grade:    domain.GradeD,
				Attempts: 1,
				Summary:  "원문에 없는 내용",
				Warnings: domain.CrossCheck{UnknownNumbers: []string{"100"}},
			}
		}),
	})

	out, err := p.RewriteAndVerify(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, out.Published)
	assert.Equal(t, domain.StatusRejected, out.FinalStatus)

	stored := articles.get("a1")
	assert.Equal(t, original, stored.Content)
	assert.False(t, stored.AIProcessed)
	assert.Equal(t, domain.StatusRejected, stored.Status)
	assert.Contains(t, stored.ReviewNote, "원문에 없는 내용")
	assert.Contains(t, stored.ReviewNote, "100")
	require.Len(t, articles.outcomes, 1)
	assert.Nil(t, articles.outcomes[0].Content)
}

func TestRewriteAndVerifyHoldForReview(t *testing.T) {
	t.Parallel()

	articles := newMemArticles(domain.Article{ID: "a1", Content: "원문", Status: domain.StatusDraft})
	p := NewArticleProcessor(PipelineDeps{
		Articles:      articles,
		HoldForReview: true,
		Loop: loopFunc(func(context.Context, string) LoopResult {
			return LoopResult{Verdict: domain.VerdictRejected, Grade: domain.GradeC, Attempts: 5, Exhausted: true}
		}),
	})

	out, err := p.RewriteAndVerify(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, out.FinalStatus)
	assert.Equal(t, "원문", articles.get("a1").Content)
}

func TestRewriteAndVerifyNormalizesSource(t *testing.T) {
	t.Parallel()

	var seen string
	articles := newMemArticles(domain.Article{ID: "a1", Content: "<p>본문</p>"})
	p := NewArticleProcessor(PipelineDeps{
		Articles:  articles,
		Normalize: func(s string) string { return strings.NewReplacer("<p>", "", "</p>", "").Replace(s) },
		Loop: loopFunc(func(_ context.Context, original string) LoopResult {
			seen = original
			return LoopResult{Verdict: domain.VerdictRejected, Grade: domain.GradeD}
		}),
	})

	_, err := p.RewriteAndVerify(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "본문", seen)
}

func TestRewriteAndVerifyPreconditions(t *testing.T) {
	t.Parallel()

	articles := newMemArticles(
		domain.Article{ID: "done", Content: "x", AIProcessed: true, Status: domain.StatusPublished},
		domain.Article{ID: "empty", Content: "   ", Status: domain.StatusDraft},
	)
	called := false
	p := NewArticleProcessor(PipelineDeps{
		Articles: articles,
		Loop: loopFunc(func(context.Context, string) LoopResult {
			called = true
			return LoopResult{}
		}),
	})

	_, err := p.RewriteAndVerify(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = p.RewriteAndVerify(context.Background(), "done")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	out, err := p.RewriteAndVerify(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, out.FinalStatus)
	assert.Equal(t, 0, out.Attempts)
	assert.False(t, called)
}

func TestProcessDrafts(t *testing.T) {
	t.Parallel()

	articles := newMemArticles(
		domain.Article{ID: "a1", Source: "naju", Content: "좋은 원문", Status: domain.StatusDraft},
		domain.Article{ID: "a2", Source: "naju", Content: "나쁜 원문", Status: domain.StatusDraft},
		domain.Article{ID: "a3", Source: "mokpo", Content: "다른 지역", Status: domain.StatusDraft},
		domain.Article{ID: "a4", Source: "naju", Content: "이미 게시", Status: domain.StatusPublished, AIProcessed: true},
	)
	notifier := &mockNotifier{}
	notifier.On("PublishDigest", mock.Anything, mock.MatchedBy(func(digest string) bool {
		return strings.Contains(digest, "a2") && strings.Contains(digest, "게시 1")
	})).Return(nil).Once()

	p := NewArticleProcessor(PipelineDeps{
		Articles: articles,
		Notifier: notifier,
		Loop: loopFunc(func(_ context.Context, original string) LoopResult {
			if original == "좋은 원문" {
				return LoopResult{Verdict: domain.VerdictAccepted, Grade: domain.GradeA, Attempts: 1, Draft: "좋은 기사"}
			}
			return LoopResult{Verdict: domain.VerdictRejected, Grade: domain.GradeD, Attempts: 1, Summary: "환각"}
		}),
	})

	report, err := p.ProcessDrafts(context.Background(), DraftBatch{Region: "naju", Limit: 10, Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 0, report.Failed)

	assert.Equal(t, "좋은 기사", articles.get("a1").Content)
	assert.Equal(t, "나쁜 원문", articles.get("a2").Content)
	assert.Equal(t, domain.StatusDraft, articles.get("a3").Status)
	notifier.AssertExpectations(t)
}

func TestProcessDraftsListFailure(t *testing.T) {
	t.Parallel()

	articles := newMemArticles()
	articles.listErr = errors.New("db down")
	p := NewArticleProcessor(PipelineDeps{Articles: articles, Loop: loopFunc(func(context.Context, string) LoopResult {
		return LoopResult{}
	})})

	_, err := p.ProcessDrafts(context.Background(), DraftBatch{})
	assert.Error(t, err)
}

func TestRewriteAndVerifyStaleRejectAfterPublish(t *testing.T) {
	t.Parallel()

	articles := newMemArticles(domain.Article{ID: "a1", Content: "원문", Status: domain.StatusDraft})
	entered := make(chan struct{})
	release := make(chan struct{})

	slow := NewArticleProcessor(PipelineDeps{
		Articles: articles,
		Loop: loopFunc(func(context.Context, string) LoopResult {
			close(entered)
			<-release
			return LoopResult{Verdict: domain.VerdictRejected, Grade: domain.GradeD, Attempts: 1, Summary: "환각"}
		}),
	})
	fast := NewArticleProcessor(PipelineDeps{
		Articles: articles,
		Loop: loopFunc(func(context.Context, string) LoopResult {
			return LoopResult{Verdict: domain.VerdictAccepted, Grade: domain.GradeA, Attempts: 1, Draft: "검증된 기사"}
		}),
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := slow.RewriteAndVerify(context.Background(), "a1")
		errCh <- err
	}()
	<-entered

	out, err := fast.RewriteAndVerify(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, out.Published)

	close(release)
	assert.ErrorIs(t, <-errCh, ErrAlreadyProcessed)

	stored := articles.get("a1")
	assert.Equal(t, domain.StatusPublished, stored.Status)
	assert.True(t, stored.AIProcessed)
	assert.Equal(t, "검증된 기사", stored.Content)
	assert.Len(t, articles.outcomes, 1)
}

func TestRewriteAndVerifyRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	articles := newMemArticles(domain.Article{ID: "a1", Content: "원문", Status: domain.StatusDraft})
	entered := make(chan struct{})
	release := make(chan struct{})
	p := NewArticleProcessor(PipelineDeps{
		Articles: articles,
		Loop: loopFunc(func(context.Context, string) LoopResult {
			close(entered)
			<-release
			return LoopResult{Verdict: domain.VerdictAccepted, Grade: domain.GradeA, Attempts: 1, Draft: "기사"}
		}),
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := p.RewriteAndVerify(context.Background(), "a1")
		errCh <- err
	}()
	<-entered

	_, err := p.RewriteAndVerify(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrArticleInFlight)

	close(release)
	require.NoError(t, <-errCh)

	_, err = p.RewriteAndVerify(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestRewriteAndVerifyCancelledLeavesDraft(t *testing.T) {
	t.Parallel()

	articles := newMemArticles(domain.Article{ID: "a1", Content: "원문 기사", Status: domain.StatusDraft})
	p := NewArticleProcessor(PipelineDeps{
		Articles: articles,
		Loop:     newTestLoop(&scriptedGenerator{}, &scriptedGenerator{}, 3),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.RewriteAndVerify(ctx, "a1")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAlreadyProcessed)

	stored := articles.get("a1")
	assert.Equal(t, domain.StatusDraft, stored.Status)
	assert.False(t, stored.AIProcessed)
	assert.Equal(t, "원문 기사", stored.Content)
	assert.Empty(t, articles.outcomes)
}

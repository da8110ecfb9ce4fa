package usecase

import (
	"context"
	"log/slog"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
)

const defaultMaxAttempts = 5

// DraftRewriter produces a draft, or a correction of one when feedback is set.
type DraftRewriter interface {
	Rewrite(ctx context.Context, source string, feedback *domain.Feedback) (string, error)
}

// DraftVerifier grades a draft against its source.
type DraftVerifier interface {
	Verify(ctx context.Context, original, generated string) (domain.VerificationResult, error)
}

// AttemptRecord is the audit trail of one rewrite and verify round.
type AttemptRecord struct {
	Attempt     int               `json:"attempt"`
	Grade       domain.Grade      `json:"grade,omitempty"`
	LengthRatio float64           `json:"length_ratio"`
	Warnings    domain.CrossCheck `json:"warnings"`
	Error       string            `json:"error,omitempty"`
}

// LoopResult is the terminal state of one article's verification loop.
// Draft is only set when the verdict is accepted. Cancelled means the context
// ended before a terminal grade; the verdict then carries no judgement.
type LoopResult struct {
	Verdict     domain.Verdict
	Grade       domain.Grade
	Attempts    int
	Draft       string
	Summary     string
	Improvement string
	LengthRatio float64
	Warnings    domain.CrossCheck
	History     []AttemptRecord
	Exhausted   bool
	Cancelled   bool
}

// VerificationLoop drives rewrite and verification until a terminal grade or
// the attempt bound.
type VerificationLoop struct {
	rewriter    DraftRewriter
	verifier    DraftVerifier
	maxAttempts int
	logger      *slog.Logger
}

func NewVerificationLoop(rewriter DraftRewriter, verifier DraftVerifier, maxAttempts int, logger *slog.Logger) *VerificationLoop {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationLoop{
		rewriter:    rewriter,
		verifier:    verifier,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// MaxAttempts returns the configured attempt bound.
func (l *VerificationLoop) MaxAttempts() int { return l.maxAttempts }

// Run never returns an error: model failures consume an attempt and
// exhaustion resolves to a rejected verdict. A cancelled ctx stops the loop
// with Cancelled set.
func (l *VerificationLoop) Run(ctx context.Context, original string) LoopResult {
	var (
		result   = LoopResult{Verdict: domain.VerdictRejected}
		feedback *domain.Feedback
	)

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			result.Summary = "처리가 중단되었습니다: " + err.Error()
			l.logger.Warn("verification loop cancelled", "attempt", attempt, "error", err)
			return result
		}
		result.Attempts = attempt
		record := AttemptRecord{Attempt: attempt}

		draft, err := l.rewriter.Rewrite(ctx, original, feedback)
		if err != nil {
			record.Error = err.Error()
			result.History = append(result.History, record)
			l.logger.Warn("rewrite attempt failed", "attempt", attempt, "error", err)
			continue
		}

		verdict, err := l.verifier.Verify(ctx, original, draft)
		if err != nil {
			record.Error = err.Error()
			result.History = append(result.History, record)
			l.logger.Warn("verification attempt failed", "attempt", attempt, "error", err)
			continue
		}

		record.Grade = verdict.Grade
		record.LengthRatio = verdict.LengthRatio
		record.Warnings = verdict.Warnings
		result.History = append(result.History, record)

		result.Grade = verdict.Grade
		result.Summary = verdict.Summary
		result.Improvement = verdict.Improvement
		result.LengthRatio = verdict.LengthRatio
		result.Warnings = verdict.Warnings

		l.logger.Info("verification attempt",
			"attempt", attempt,
			"grade", verdict.Grade,
			"ratio", verdict.LengthRatio,
			"unknown_numbers", len(verdict.Warnings.UnknownNumbers),
			"unknown_quotes", len(verdict.Warnings.UnknownQuotes),
		)
		if verdict.Warnings.HardWarning() {
			l.logger.Warn("draft contains content absent from source",
				"attempt", attempt,
				"numbers", verdict.Warnings.UnknownNumbers,
				"quotes", verdict.Warnings.UnknownQuotes,
			)
		}

		switch verdict.Grade.Verdict() {
		case domain.VerdictAccepted:
			result.Verdict = domain.VerdictAccepted
			result.Draft = draft
			return result
		case domain.VerdictRejected:
			result.Verdict = domain.VerdictRejected
			return result
		}

		feedback = &domain.Feedback{
			PreviousDraft: draft,
			Summary:       verdict.Summary,
			Improvement:   verdict.Improvement,
		}
	}

	if err := ctx.Err(); err != nil {
		result.Cancelled = true
		l.logger.Warn("verification loop cancelled", "attempt", result.Attempts, "error", err)
		return result
	}

	result.Exhausted = true
	if result.Summary == "" {
		result.Summary = "최대 시도 횟수 안에 검증을 통과하지 못했습니다."
	}
	l.logger.Warn("verification attempts exhausted", "attempts", result.Attempts, "last_grade", result.Grade)
	return result
}

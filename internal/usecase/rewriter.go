package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

const (
	rewriteTemperature   = 0.3
	rewriteTopP          = 0.9
	rewriteRepeatPenalty = 1.1
	tokenBudgetPerRune   = 2
	tokenBudgetMargin    = 256
	maxTokenBudget       = 4096
)

var (
	// ErrEmptyGeneration marks a model call that produced no usable text.
	// It is retryable by the verification loop.
	ErrEmptyGeneration = errors.New("model returned empty text")
	ErrEmptySource     = errors.New("source text is empty")
)

// Rewriter turns a source press release into a news article draft.
type Rewriter struct {
	generator ports.TextGenerator
	logger    *slog.Logger
}

// NewRewriter wires the text generator used for drafting.
func NewRewriter(generator ports.TextGenerator, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{generator: generator, logger: logger}
}

// Rewrite drafts an article from source. With feedback it performs a bounded
// correction pass over feedback.PreviousDraft instead. It never retries.
func (r *Rewriter) Rewrite(ctx context.Context, source string, feedback *domain.Feedback) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", ErrEmptySource
	}
	if r.generator == nil {
		return "", fmt.Errorf("rewrite: text generator is not configured")
	}

	req := domain.GenerationRequest{System: rewriteSystemPrompt}
	if feedback != nil && strings.TrimSpace(feedback.PreviousDraft) != "" {
		req.Prompt = buildCorrectionPrompt(source, feedback.Summary, feedback.Improvement, feedback.PreviousDraft)
		req.Options = decodingOptions(countRunes(feedback.PreviousDraft))
	} else {
		req.Prompt = buildRewritePrompt(source)
		req.Options = decodingOptions(countRunes(source))
	}

	out, err := r.generator.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("rewrite: %w", err)
	}

	draft := cleanDraft(out)
	if draft == "" {
		return "", ErrEmptyGeneration
	}
	r.logger.Debug("draft generated", "source_runes", countRunes(source), "draft_runes", countRunes(draft), "correction", feedback != nil)
	return draft, nil
}

func decodingOptions(inputRunes int) domain.GenerationOptions {
	return domain.GenerationOptions{
		Temperature:   rewriteTemperature,
		TopP:          rewriteTopP,
		RepeatPenalty: rewriteRepeatPenalty,
		MaxTokens:     tokenBudget(inputRunes),
	}
}

// tokenBudget scales the output budget with input length, capped.
func tokenBudget(inputRunes int) int {
	budget := inputRunes*tokenBudgetPerRune + tokenBudgetMargin
	if budget > maxTokenBudget {
		return maxTokenBudget
	}
	return budget
}

// cleanDraft strips wrapping whitespace and the section labels models like
// to echo back from the prompt.
func cleanDraft(out string) string {
	out = strings.TrimSpace(out)
	for _, label := range []string{"[수정 기사]", "[기사]"} {
		out = strings.TrimSpace(strings.TrimPrefix(out, label))
	}
	return out
}

// countRunes counts characters ignoring whitespace.
func countRunes(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

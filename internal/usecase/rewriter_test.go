package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
)

func TestRewriteInitialPass(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{responses: []generation{{text: "  [기사]\n나주시가 축제를 연다.  "}}}
	draft, err := NewRewriter(gen, nil).Rewrite(context.Background(), "나주시는 축제를 개최한다고 밝혔다.", nil)
	require.NoError(t, err)
	assert.Equal(t, "나주시가 축제를 연다.", draft)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Equal(t, rewriteSystemPrompt, req.System)
	assert.Contains(t, req.Prompt, "85%~115%")
	assert.Contains(t, req.Prompt, "나주시는 축제를 개최한다고 밝혔다.")
	assert.Equal(t, 0.3, req.Options.Temperature)
	assert.Equal(t, 0.9, req.Options.TopP)
	assert.Equal(t, 1.1, req.Options.RepeatPenalty)
	assert.Equal(t, tokenBudget(countRunes("나주시는 축제를 개최한다고 밝혔다.")), req.Options.MaxTokens)
}

func TestRewriteCorrectionPass(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{responses: []generation{{text: "수정된 기사"}}}
	_, err := NewRewriter(gen, nil).Rewrite(context.Background(), "원문 보도자료", &domain.Feedback{
		PreviousDraft: "이전 초안 본문",
		Summary:       "날짜 누락",
		Improvement:   "행사 날짜를 원문대로 넣으세요",
	})
	require.NoError(t, err)

	prompt := gen.requests[0].Prompt
	assert.Contains(t, prompt, "±10%")
	assert.Contains(t, prompt, "날짜 누락")
	assert.Contains(t, prompt, "행사 날짜를 원문대로 넣으세요")
	assert.Contains(t, prompt, "이전 초안 본문")
	assert.Contains(t, prompt, "원문 보도자료")
}

func TestRewriteFailures(t *testing.T) {
	t.Parallel()

	_, err := NewRewriter(&scriptedGenerator{}, nil).Rewrite(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrEmptySource)

	gen := &scriptedGenerator{responses: []generation{{text: " \n "}}}
	_, err = NewRewriter(gen, nil).Rewrite(context.Background(), "원문", nil)
	assert.ErrorIs(t, err, ErrEmptyGeneration)

	boom := errors.New("connection refused")
	gen = &scriptedGenerator{responses: []generation{{err: boom}}}
	_, err = NewRewriter(gen, nil).Rewrite(context.Background(), "원문", nil)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, gen.requests, 1)
}

func TestTokenBudget(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 256, tokenBudget(0))
	assert.Equal(t, 2256, tokenBudget(1000))
	assert.Equal(t, 4096, tokenBudget(5000))
}

func TestCountRunesIgnoresWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 6, countRunes(" 가나 다\n라\t마바 "))
	assert.Equal(t, 0, countRunes(strings.Repeat(" ", 4)))
}

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

func newTestLoop(rewriteGen, verifyGen *scriptedGenerator, maxAttempts int) *VerificationLoop {
	return NewVerificationLoop(NewRewriter(rewriteGen, nil), NewVerifier(verifyGen, 0.85, nil), maxAttempts, nil)
}

func TestLoopRevisesThenAccepts(t *testing.T) {
	t.Parallel()

	source := strings.Repeat("가나다라마", 200)
	rewriteGen := &scriptedGenerator{responses: []generation{
		{text: strings.Repeat("가", 880)},
		{text: strings.Repeat("가", 920)},
	}}
	verifyGen := &scriptedGenerator{responses: []generation{
		{text: "등급: B\n요약: 날짜 누락\n개선: 날짜 누락"},
		{text: "등급: A\n요약: 사실 일치\n개선: 없음"},
	}}

	res := newTestLoop(rewriteGen, verifyGen, 5).Run(context.Background(), source)
	assert.Equal(t, domain.VerdictAccepted, res.Verdict)
	assert.Equal(t, domain.GradeA, res.Grade)
	assert.Equal(t, 2, res.Attempts)
	assert.InDelta(t, 0.92, res.LengthRatio, 1e-9)
	assert.Equal(t, strings.Repeat("가", 920), res.Draft)
	assert.False(t, res.Exhausted)

	require.Len(t, rewriteGen.requests, 2)
	correction := rewriteGen.requests[1].Prompt
	assert.Contains(t, correction, "날짜 누락")
	assert.Contains(t, correction, strings.Repeat("가", 880))

	require.Len(t, res.History, 2)
	assert.Equal(t, domain.GradeB, res.History[0].Grade)
	assert.Equal(t, domain.GradeA, res.History[1].Grade)
}

func TestLoopAlwaysCIsBoundedAndRejected(t *testing.T) {
	t.Parallel()

	rewriteGen := &scriptedGenerator{responses: []generation{{text: "초안"}}}
	verifyGen := &scriptedGenerator{responses: []generation{{text: "등급: C\n요약: 의미 변화\n개선: 원문대로"}}}

	res := newTestLoop(rewriteGen, verifyGen, 5).Run(context.Background(), "원문 보도자료")
	assert.Equal(t, domain.VerdictRejected, res.Verdict)
	assert.Equal(t, 5, res.Attempts)
	assert.True(t, res.Exhausted)
	assert.Empty(t, res.Draft)
	assert.Len(t, rewriteGen.requests, 5)
	assert.Len(t, verifyGen.requests, 5)
}

func TestLoopDRejectsImmediately(t *testing.T) {
	t.Parallel()

	rewriteGen := &scriptedGenerator{responses: []generation{{text: "지어낸 기사"}}}
	verifyGen := &scriptedGenerator{responses: []generation{{text: "등급: D\n요약: 원문에 없는 내용"}}}

	res := newTestLoop(rewriteGen, verifyGen, 5).Run(context.Background(), "원문")
	assert.Equal(t, domain.VerdictRejected, res.Verdict)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Exhausted)
	assert.Equal(t, "원문에 없는 내용", res.Summary)
	assert.Empty(t, res.Draft)
}

func TestLoopModelFailureConsumesAttempt(t *testing.T) {
	t.Parallel()

	rewriteGen := &scriptedGenerator{responses: []generation{
		{err: errors.New("model unavailable")},
		{text: "기사 본문"},
	}}
	verifyGen := &scriptedGenerator{responses: []generation{{text: "등급: A\n요약: 일치"}}}

	res := newTestLoop(rewriteGen, verifyGen, 3).Run(context.Background(), "원문 본문")
	assert.Equal(t, domain.VerdictAccepted, res.Verdict)
	assert.Equal(t, 2, res.Attempts)
	require.Len(t, res.History, 2)
	assert.Contains(t, res.History[0].Error, "model unavailable")
}

func TestLoopAllModelFailuresExhaust(t *testing.T) {
	t.Parallel()

	rewriteGen := &scriptedGenerator{responses: []generation{{err: errors.New("down")}}}
	verifyGen := &scriptedGenerator{}

	res := newTestLoop(rewriteGen, verifyGen, 3).Run(context.Background(), "원문")
	assert.Equal(t, domain.VerdictRejected, res.Verdict)
	assert.Equal(t, 3, res.Attempts)
	assert.True(t, res.Exhausted)
	assert.NotEmpty(t, res.Summary)
	assert.Empty(t, verifyGen.requests)
}

func TestLoopStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rewriteGen := &scriptedGenerator{responses: []generation{{text: "기사"}}}
	res := newTestLoop(rewriteGen, &scriptedGenerator{}, 5).Run(ctx, "원문")
	assert.Equal(t, domain.VerdictRejected, res.Verdict)
	assert.True(t, res.Cancelled)
	assert.Empty(t, rewriteGen.requests)
}

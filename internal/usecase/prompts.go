package usecase

import (
	"fmt"
	"strings"
)

const rewriteSystemPrompt = `당신은 지역 언론사의 보도자료 편집 기자입니다.
보도자료를 사실 그대로 한국어 뉴스 기사 문체로 다시 씁니다.
원문에 없는 사실, 수치, 인용, 해석을 절대 추가하지 않습니다.`

const verifySystemPrompt = `당신은 뉴스 기사의 사실 검증 담당자입니다.
원문과 재작성 기사를 비교하여 정해진 형식으로만 답합니다.`

func buildRewritePrompt(source string) string {
	n := countRunes(source)
	lo, hi := int(float64(n)*0.85), int(float64(n)*1.15)

	var b strings.Builder
	b.WriteString("다음 보도자료를 뉴스 기사로 재작성하세요.\n\n")
	b.WriteString("[규칙]\n")
	b.WriteString("1. 한국어로만 작성합니다.\n")
	fmt.Fprintf(&b, "2. 분량은 원문(%d자)의 85%%~115%% 범위(%d~%d자)를 지킵니다.\n", n, lo, hi)
	b.WriteString("3. 모든 숫자, 날짜, 금액, 인명, 기관명, 지명을 원문 그대로 유지합니다.\n")
	b.WriteString("4. 원문에 없는 사실, 수치, 인용문, 전망, 평가를 추가하지 않습니다.\n")
	b.WriteString("5. 제목, 머리말, 설명 없이 기사 본문만 출력합니다.\n\n")
	b.WriteString("[보도자료]\n")
	b.WriteString(source)
	b.WriteString("\n\n[기사]\n")
	return b.String()
}

func buildCorrectionPrompt(source string, summary, improvement, previous string) string {
	n := countRunes(previous)
	lo, hi := int(float64(n)*0.9), int(float64(n)*1.1)

	var b strings.Builder
	b.WriteString("아래 기사 초안은 검증에서 지적을 받았습니다. 지적된 부분만 고쳐 다시 출력하세요.\n\n")
	b.WriteString("[규칙]\n")
	b.WriteString("1. 새로운 내용을 추가하지 않습니다. 원문에 있는 내용으로만 고칩니다.\n")
	b.WriteString("2. 지적되지 않은 문장은 그대로 둡니다.\n")
	fmt.Fprintf(&b, "3. 분량은 이전 초안(%d자)의 ±10%% 범위(%d~%d자)를 지킵니다.\n", n, lo, hi)
	b.WriteString("4. 수정된 기사 본문만 출력합니다.\n\n")
	if strings.TrimSpace(summary) != "" {
		b.WriteString("[검증 요약]\n")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	if strings.TrimSpace(improvement) != "" {
		b.WriteString("[수정 지시]\n")
		b.WriteString(improvement)
		b.WriteString("\n\n")
	}
	b.WriteString("[원문]\n")
	b.WriteString(source)
	b.WriteString("\n\n[이전 초안]\n")
	b.WriteString(previous)
	b.WriteString("\n\n[수정 기사]\n")
	return b.String()
}

func buildVerifyPrompt(original, generated string, ratio, minRatio float64) string {
	var b strings.Builder
	b.WriteString("원문과 재작성 기사를 비교하여 등급을 매기세요.\n\n")
	b.WriteString("[등급 기준]\n")
	fmt.Fprintf(&b, "A: 모든 사실이 일치하고 지어낸 내용이 없으며 분량이 원문의 %.0f%% 이상\n", minRatio*100)
	b.WriteString("B: 사소한 누락이나 단순화가 있으나 의미는 보존됨\n")
	b.WriteString("C: 의미 변화, 날짜나 숫자의 변경, 해석이나 논평의 추가\n")
	b.WriteString("D: 원문에 없는 내용을 지어냈거나 핵심 사실이 바뀜\n\n")
	fmt.Fprintf(&b, "현재 분량 비율: %.0f%%\n\n", ratio*100)
	b.WriteString("[출력 형식]\n")
	b.WriteString("등급: <A|B|C|D>\n")
	b.WriteString("요약: <문제점 진단 한두 문장>\n")
	b.WriteString("개선: <수정 지시, 문제가 없으면 없음>\n\n")
	b.WriteString("[원문]\n")
	b.WriteString(original)
	b.WriteString("\n\n[재작성 기사]\n")
	b.WriteString(generated)
	b.WriteString("\n")
	return b.String()
}

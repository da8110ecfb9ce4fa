package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
)

const (
	defaultMinLengthRatio = 0.85
	verifyMaxTokens       = 512
	lengthImprovement     = "분량이 원문보다 지나치게 짧습니다. 누락된 문장을 원문대로 보완하세요."
)

var (
	gradeExpr = regexp.MustCompile(`(?im)^[\s*#>-]*(?:등급|grade)[\s*]*[:：][\s*]*([ABCD])\b`)

	summaryMarkers     = []string{"요약", "summary"}
	improvementMarkers = []string{"개선", "improvement"}
	allMarkers         = []string{"등급", "grade", "요약", "summary", "개선", "improvement"}
)

// Verifier grades a draft against its source with an independent model call.
type Verifier struct {
	generator ports.TextGenerator
	minRatio  float64
	logger    *slog.Logger
}

// NewVerifier wires the grading model. minRatio is the length ratio an A
// grade requires; zero selects 0.85.
func NewVerifier(generator ports.TextGenerator, minRatio float64, logger *slog.Logger) *Verifier {
	if minRatio <= 0 {
		minRatio = defaultMinLengthRatio
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{generator: generator, minRatio: minRatio, logger: logger}
}

// MinRatio returns the length ratio an accepted draft must reach.
func (v *Verifier) MinRatio() float64 { return v.minRatio }

// Verify grades generated against original. A model failure is returned as
// an error; an unreadable grade is not an error and resolves to D.
func (v *Verifier) Verify(ctx context.Context, original, generated string) (domain.VerificationResult, error) {
	if v.generator == nil {
		return domain.VerificationResult{}, fmt.Errorf("verify: text generator is not configured")
	}

	ratio := LengthRatio(original, generated)
	result := domain.VerificationResult{
		LengthRatio: ratio,
		Warnings:    CrossCheck(original, generated),
	}

	raw, err := v.generator.Generate(ctx, domain.GenerationRequest{
		System: verifySystemPrompt,
		Prompt: buildVerifyPrompt(original, generated, ratio, v.minRatio),
		Options: domain.GenerationOptions{
			Temperature:   0.1,
			TopP:          0.9,
			RepeatPenalty: rewriteRepeatPenalty,
			MaxTokens:     verifyMaxTokens,
		},
	})
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("verify: %w", err)
	}
	result.Raw = raw

	grade, ok := ParseGrade(raw)
	if !ok {
		v.logger.Warn("verification grade unreadable, treating as D", "response_head", head(raw, 120))
		grade = domain.GradeD
	}
	result.Grade = grade
	result.Summary = ParseField(raw, summaryMarkers)
	result.Improvement = ParseField(raw, improvementMarkers)
	if !ok && result.Summary == "" {
		result.Summary = "검증 응답에서 등급을 읽을 수 없습니다."
	}

	if result.Grade == domain.GradeA && ratio < v.minRatio {
		v.logger.Info("grade A below length threshold, downgrading to B", "ratio", ratio, "min_ratio", v.minRatio)
		result.Grade = domain.GradeB
		result.Improvement = strings.TrimSpace(strings.TrimSpace(result.Improvement) + "\n" + lengthImprovement)
	}

	return result, nil
}

// LengthRatio is generated length over original length, whitespace excluded.
func LengthRatio(original, generated string) float64 {
	n := countRunes(original)
	if n == 0 {
		return 0
	}
	return float64(countRunes(generated)) / float64(n)
}

// ParseGrade extracts the grade behind a "등급:" or "GRADE:" marker.
func ParseGrade(raw string) (domain.Grade, bool) {
	m := gradeExpr.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	g := domain.Grade(strings.ToUpper(m[1]))
	return g, g.Valid()
}

// ParseField returns the text after the first line starting with one of the
// markers, continuing until the next marker line.
func ParseField(raw string, markers []string) string {
	lines := strings.Split(raw, "\n")
	var (
		collected []string
		capturing bool
	)
	for _, line := range lines {
		if marker, rest, ok := splitMarker(line); ok {
			if capturing {
				break
			}
			if containsFold(markers, marker) {
				capturing = true
				if rest != "" {
					collected = append(collected, rest)
				}
			}
			continue
		}
		if capturing && strings.TrimSpace(line) != "" {
			collected = append(collected, strings.TrimSpace(line))
		}
	}
	return strings.TrimSpace(strings.Join(collected, "\n"))
}

func splitMarker(line string) (string, string, bool) {
	trimmed := strings.TrimLeft(line, " \t*#>-")
	idx := strings.IndexAny(trimmed, ":：")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(strings.Trim(trimmed[:idx], "* "))
	if !containsFold(allMarkers, key) {
		return "", "", false
	}
	rest := strings.TrimLeft(trimmed[idx:], ":：")
	return key, strings.TrimSpace(strings.Trim(rest, "* ")), true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package usecase

import (
	"regexp"
	"strings"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/domain"
)

var (
	digitRunExpr = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	quoteExprs   = []*regexp.Regexp{
		regexp.MustCompile(`“([^”]+)”`),
		regexp.MustCompile(`‘([^’]+)’`),
		regexp.MustCompile(`"([^"]+)"`),
		regexp.MustCompile(`「([^」]+)」`),
		regexp.MustCompile(`『([^』]+)』`),
	}
)

// CrossCheck flags numbers and quoted spans present in generated but absent
// from original. It runs independently of any model grade.
func CrossCheck(original, generated string) domain.CrossCheck {
	var result domain.CrossCheck

	known := numberSet(original)
	seen := map[string]struct{}{}
	for _, n := range numbers(generated) {
		if _, ok := known[n]; ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		result.UnknownNumbers = append(result.UnknownNumbers, n)
	}

	flatOriginal := collapseSpace(original)
	seenQuotes := map[string]struct{}{}
	for _, q := range quotes(generated) {
		if strings.Contains(flatOriginal, q) {
			continue
		}
		if _, dup := seenQuotes[q]; dup {
			continue
		}
		seenQuotes[q] = struct{}{}
		result.UnknownQuotes = append(result.UnknownQuotes, q)
	}

	return result
}

// numbers returns every numeric token of text in canonical form, so "1,200"
// matches "1200" and "3.50" matches "3.5" while 3.5 and 35 stay distinct.
func numbers(text string) []string {
	raw := digitRunExpr.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, canonicalNumber(r))
	}
	return out
}

func canonicalNumber(token string) string {
	whole, frac, _ := strings.Cut(strings.ReplaceAll(token, ",", ""), ".")
	whole = strings.TrimLeft(whole, "0")
	if whole == "" {
		whole = "0"
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

func numberSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, n := range numbers(text) {
		set[n] = struct{}{}
	}
	return set
}

func quotes(text string) []string {
	var out []string
	for _, expr := range quoteExprs {
		for _, m := range expr.FindAllStringSubmatch(text, -1) {
			q := collapseSpace(m[1])
			if countRunes(q) < 2 {
				continue
			}
			out = append(out, q)
		}
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

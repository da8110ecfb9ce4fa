package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p, div, li, tr, h1, h2, h3, h4, h5, h6, blockquote, section, article, table"

// PlainText converts a scraped press-release body to plain text: markup and
// entities are resolved, scripts and styles dropped, block elements become
// line breaks and runs of blank space collapse. Input without markup is only
// whitespace-normalized.
func PlainText(body string) string {
	if !strings.ContainsAny(body, "<&") {
		return normalizeLines(body)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return normalizeLines(body)
	}

	doc.Find("script, style, noscript, iframe, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
		s.AppendHtml("\n")
	})

	return normalizeLines(doc.Text())
}

func normalizeLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

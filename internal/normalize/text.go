// Package normalize turns loosely-typed extraction output into canonical job records.
package normalize

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanText collapses all whitespace runs (including NBSP) to single spaces
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// FoldAccents strips combining marks so "Zürich" and "Zurich" compare equal
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// HTMLToText returns the visible text of an HTML fragment; plain text passes through cleaned
func HTMLToText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return CleanText(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CleanText(fragment)
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, li, div, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return CleanText(doc.Text())
}

// DedupeStrings drops blanks and case-insensitive repeats, keeping first spelling
func DedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = CleanText(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

package processors

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"harvest-engine/pkg/utils"
)

var (
	commentPattern    = regexp.MustCompile(`<!--[\s\S]*?-->`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	gapPattern        = regexp.MustCompile(`>\s+<`)
)

// HTMLCleaner strips a career page down to the markup a model needs to find postings
type HTMLCleaner struct {
	// Tags to remove completely
	removeTags []string
	// Attributes to keep (others will be removed)
	keepAttributes map[string]bool
}

// NewHTMLCleaner creates a new HTML cleaner instance
func NewHTMLCleaner() *HTMLCleaner {
	return &HTMLCleaner{
		removeTags: []string{
			"script", "style", "noscript", "iframe", "object", "embed",
			"applet", "form", "input", "button", "select", "textarea",
			"svg", "path", "g", "defs", "use", "symbol", "img", "picture", "video",
			"meta", "link", "base", "head",
		},
		keepAttributes: map[string]bool{
			"href": true, "class": true, "id": true, "data-testid": true, "aria-label": true,
		},
	}
}

// CleanHTML removes clutter while keeping links and the class names that hint at job cards
func (hc *HTMLCleaner) CleanHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(commentPattern.ReplaceAllString(html, "")))
	if err != nil {
		return "", err
	}

	for _, tag := range hc.removeTags {
		doc.Find(tag).Remove()
	}

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		var drop []string
		for _, attr := range s.Nodes[0].Attr {
			if !hc.keepAttributes[attr.Key] {
				drop = append(drop, attr.Key)
			}
		}
		for _, key := range drop {
			s.RemoveAttr(key)
		}
	})

	doc.Find("div, span, p, li, section").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) == "" && s.Children().Length() == 0 {
			s.Remove()
		}
	})

	cleaned, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = gapPattern.ReplaceAllString(cleaned, "><")
	return strings.TrimSpace(cleaned), nil
}

// Prepare cleans html and cuts it to maxChars. The bool reports truncation.
func (hc *HTMLCleaner) Prepare(html string, maxChars int) (string, bool, error) {
	cleaned, err := hc.CleanHTML(html)
	if err != nil {
		return "", false, err
	}
	if maxChars > 0 && len(cleaned) > maxChars {
		return utils.Truncate(cleaned, maxChars), true, nil
	}
	return cleaned, false, nil
}

// EstimateTokens returns the approximate token count for text
func (hc *HTMLCleaner) EstimateTokens(text string) int {
	// Rough estimation: ~4 characters per token
	return len(text) / 4
}

// Package structured extracts schema.org JobPosting markup embedded as JSON-LD.
package structured

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/internal/normalize"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

// PageFetcher is the slice of the fetcher this strategy needs
type PageFetcher interface {
	GetPage(ctx context.Context, url string) (string, error)
}

// Extractor reads <script type="application/ld+json"> blocks
type Extractor struct {
	fetcher PageFetcher
	logger  types.Logger
	now     func() time.Time
}

// New creates a structured-data extractor
func New(fetcher PageFetcher) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		logger:  logging.Component("structured_extractor"),
		now:     time.Now,
	}
}

func (e *Extractor) Name() string { return config.StrategyStructured }

func (e *Extractor) Supports(company *models.CompanyConfig) bool {
	return company.CareerPageURL != ""
}

func (e *Extractor) Extract(ctx context.Context, company *models.CompanyConfig) ([]models.ScrapedJob, error) {
	html, err := e.fetcher.GetPage(ctx, company.CareerPageURL)
	if err != nil {
		return nil, err
	}

	raws, err := e.ExtractFromHTML(html)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, utils.NewNoJobsError("no JobPosting markup on career page")
	}

	now := e.now()
	jobs := make([]models.ScrapedJob, 0, len(raws))
	for _, raw := range raws {
		jobs = append(jobs, normalize.Build(company, raw, models.MethodStructuredData, now))
	}
	return jobs, nil
}

// ExtractFromHTML parses every JSON-LD block independently; a malformed block is logged and skipped
func (e *Extractor) ExtractFromHTML(html string) ([]normalize.RawJob, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, utils.NewParseError("invalid HTML").WithCause(err)
	}

	var raws []normalize.RawJob
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		var payload interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &payload); err != nil {
			e.logger.Debug("Skipping malformed JSON-LD block", map[string]interface{}{"block": i, "error": err.Error()})
			return
		}
		for _, posting := range collectPostings(payload, 0) {
			if raw, ok := mapPosting(posting); ok {
				raws = append(raws, raw)
			}
		}
	})
	return raws, nil
}

const maxGraphDepth = 6

// collectPostings finds JobPosting objects at the top level, in arrays, in @graph and in ItemList elements
func collectPostings(v interface{}, depth int) []map[string]interface{} {
	if depth > maxGraphDepth {
		return nil
	}
	switch node := v.(type) {
	case []interface{}:
		var out []map[string]interface{}
		for _, item := range node {
			out = append(out, collectPostings(item, depth+1)...)
		}
		return out
	case map[string]interface{}:
		if hasType(node, "JobPosting") {
			return []map[string]interface{}{node}
		}
		var out []map[string]interface{}
		for _, key := range []string{"@graph", "itemListElement", "item", "mainEntity"} {
			if child, ok := node[key]; ok {
				out = append(out, collectPostings(child, depth+1)...)
			}
		}
		return out
	}
	return nil
}

func hasType(node map[string]interface{}, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []interface{}:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func mapPosting(p map[string]interface{}) (normalize.RawJob, bool) {
	title := str(p["title"])
	if title == "" {
		title = str(p["name"])
	}
	if title == "" {
		return normalize.RawJob{}, false
	}

	raw := normalize.RawJob{
		Title:            title,
		Description:      str(p["description"]),
		Location:         location(p["jobLocation"]),
		EmploymentType:   strings.Join(strs(p["employmentType"]), " "),
		PostedAt:         str(p["datePosted"]),
		URL:              firstNonEmpty(str(p["url"]), str(p["sameAs"])),
		Department:       firstNonEmpty(str(p["occupationalCategory"]), str(p["industry"])),
		Requirements:     splitList(p["qualifications"], p["experienceRequirements"], p["educationRequirements"]),
		Responsibilities: splitList(p["responsibilities"]),
		Skills:           splitList(p["skills"]),
	}

	if strings.EqualFold(str(p["jobLocationType"]), "TELECOMMUTE") {
		remote := true
		raw.Remote = &remote
		raw.WorkTypeHint = "remote"
		if raw.Location == "" {
			raw.Location = applicantLocation(p["applicantLocationRequirements"])
		}
	}

	if salary, ok := baseSalary(p["baseSalary"]); ok {
		raw.Salary = &salary
	}
	return raw, true
}

func location(v interface{}) string {
	switch loc := v.(type) {
	case []interface{}:
		var parts []string
		for _, item := range loc {
			if s := location(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(normalize.DedupeStrings(parts), "; ")
	case map[string]interface{}:
		if addr, ok := loc["address"].(map[string]interface{}); ok {
			return joinNonEmpty(", ", str(addr["addressLocality"]), str(addr["addressRegion"]), country(addr["addressCountry"]))
		}
		if s := str(loc["address"]); s != "" {
			return s
		}
		return str(loc["name"])
	case string:
		return loc
	}
	return ""
}

func applicantLocation(v interface{}) string {
	switch loc := v.(type) {
	case map[string]interface{}:
		if name := str(loc["name"]); name != "" {
			return "Remote - " + name
		}
	case []interface{}:
		if len(loc) > 0 {
			return applicantLocation(loc[0])
		}
	}
	return "Remote"
}

func country(v interface{}) string {
	if m, ok := v.(map[string]interface{}); ok {
		return str(m["name"])
	}
	return str(v)
}

func baseSalary(v interface{}) (models.Salary, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return models.Salary{}, false
	}
	currency := str(m["currency"])
	period := ""
	var min, max float64

	switch value := m["value"].(type) {
	case map[string]interface{}:
		min, max = num(value["minValue"]), num(value["maxValue"])
		if min == 0 && max == 0 {
			min = num(value["value"])
			max = min
		}
		period = str(value["unitText"])
	default:
		min = num(value)
		max = min
	}
	if period == "" {
		period = str(m["unitText"])
	}

	s := normalize.NewSalary(min, max, currency, period)
	return s, s.IsDisclosed
}

func str(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]interface{}:
		return firstNonEmpty(str(t["name"]), str(t["@id"]), str(t["value"]))
	}
	return ""
}

func strs(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		var out []string
		for _, item := range t {
			if s := str(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := str(v); s != "" {
			return []string{s}
		}
	}
	return nil
}

var bulletSplitter = strings.NewReplacer("<li>", "\n", "•", "\n")

// splitList flattens string-or-array fields; HTML lists and bullet text become one entry per item
func splitList(values ...interface{}) []string {
	var out []string
	for _, v := range values {
		for _, s := range strs(v) {
			if !strings.Contains(s, "<li>") && !strings.Contains(s, "•") {
				if text := normalize.HTMLToText(s); text != "" {
					out = append(out, text)
				}
				continue
			}
			for _, part := range strings.Split(bulletSplitter.Replace(s), "\n") {
				if p := normalize.HTMLToText(part); p != "" {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

func num(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(strings.ReplaceAll(t, ",", ""), 64)
		return f
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

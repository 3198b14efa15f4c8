// Package embedded finds job lists inside application state that frameworks
// serialize into the page (__NEXT_DATA__, window.__INITIAL_STATE__ and friends).
package embedded

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

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

// probe locates one kind of serialized state; group 1 is the JSON text.
// decode, when set, rebuilds the state tree from a framework-specific encoding.
type probe struct {
	name   string
	re     *regexp.Regexp
	decode func(interface{}) interface{}
}

// probes are tried in order; the first one that yields at least one job wins
var probes = []probe{
	{"next_data", regexp.MustCompile(`(?s)<script[^>]*id=["']__NEXT_DATA__["'][^>]*>(.*?)</script>`), nil},
	{"nuxt_data", regexp.MustCompile(`(?s)<script[^>]*id=["']__NUXT_DATA__["'][^>]*>(.*?)</script>`), reviveDevalue},
	{"nuxt", regexp.MustCompile(`(?s)window\.__NUXT__\s*=\s*(\{.*?\})\s*;?\s*</script>`), nil},
	{"initial_state", regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\})\s*;?\s*</script>`), nil},
	{"preloaded_state", regexp.MustCompile(`(?s)window\.__PRELOADED_STATE__\s*=\s*(\{.*?\})\s*;?\s*</script>`), nil},
	{"apollo_state", regexp.MustCompile(`(?s)window\.__APOLLO_STATE__\s*=\s*(\{.*?\})\s*;?\s*</script>`), nil},
	{"window_data", regexp.MustCompile(`(?s)window\.__data\s*=\s*(\{.*?\})\s*;?\s*</script>`), nil},
	{"jobs_literal", regexp.MustCompile(`(?s)["']jobs["']\s*:\s*(\[\s*\{.*?\}\s*\])\s*[,}]`), nil},
}

// Extractor walks serialized state looking for job-shaped objects
type Extractor struct {
	fetcher  PageFetcher
	maxDepth int
	logger   types.Logger
	now      func() time.Time
}

// New creates an embedded-state extractor; maxDepth bounds the object walk
func New(fetcher PageFetcher, maxDepth int) *Extractor {
	if maxDepth <= 0 {
		maxDepth = 12
	}
	return &Extractor{
		fetcher:  fetcher,
		maxDepth: maxDepth,
		logger:   logging.Component("embedded_extractor"),
		now:      time.Now,
	}
}

func (e *Extractor) Name() string { return config.StrategyEmbedded }

func (e *Extractor) Supports(company *models.CompanyConfig) bool {
	return company.CareerPageURL != ""
}

func (e *Extractor) Extract(ctx context.Context, company *models.CompanyConfig) ([]models.ScrapedJob, error) {
	html, err := e.fetcher.GetPage(ctx, company.CareerPageURL)
	if err != nil {
		return nil, err
	}

	raws := e.ExtractFromHTML(html)
	if len(raws) == 0 {
		return nil, utils.NewNoJobsError("no job-shaped objects in embedded page state")
	}

	now := e.now()
	jobs := make([]models.ScrapedJob, 0, len(raws))
	for _, raw := range raws {
		jobs = append(jobs, normalize.Build(company, raw, models.MethodEmbeddedState, now))
	}
	return jobs, nil
}

// ExtractFromHTML runs the probes against already-fetched markup
func (e *Extractor) ExtractFromHTML(html string) []normalize.RawJob {
	for _, p := range probes {
		for _, m := range p.re.FindAllStringSubmatch(html, -1) {
			var state interface{}
			if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &state); err != nil {
				e.logger.Debug("Embedded state did not parse", map[string]interface{}{"probe": p.name, "error": err.Error()})
				continue
			}
			if p.decode != nil {
				state = p.decode(state)
			}
			if raws := e.FromState(state); len(raws) > 0 {
				e.logger.Debug("Embedded state matched", map[string]interface{}{"probe": p.name, "jobs": len(raws)})
				return raws
			}
		}
	}
	return nil
}

// FromState walks a decoded state tree and maps every job-shaped object
func (e *Extractor) FromState(state interface{}) []normalize.RawJob {
	var raws []normalize.RawJob
	seen := make(map[string]bool)
	walk(state, 0, e.maxDepth, func(obj map[string]interface{}) {
		raw := mapJob(obj)
		key := strings.ToLower(raw.Title + "|" + raw.Location + "|" + raw.URL)
		if seen[key] {
			return
		}
		seen[key] = true
		raws = append(raws, raw)
	})
	return raws
}

// walk visits objects depth-first. A job-shaped object is reported and not descended into.
func walk(v interface{}, depth, maxDepth int, visit func(map[string]interface{})) {
	if depth > maxDepth {
		return
	}
	switch node := v.(type) {
	case map[string]interface{}:
		if looksLikeJob(node) {
			visit(node)
			return
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(node[k], depth+1, maxDepth, visit)
		}
	case []interface{}:
		for _, child := range node {
			walk(child, depth+1, maxDepth, visit)
		}
	}
}

var (
	titleKeys    = []string{"title", "jobTitle", "job_title", "positionTitle", "name"}
	locationKeys = []string{"location", "locationName", "location_name", "locations", "city", "jobLocation"}
	urlKeys      = []string{"url", "applyUrl", "apply_url", "absolute_url", "hostedUrl", "jobUrl", "externalUrl", "href", "link"}
	jobOnlyKeys  = []string{
		"jobId", "job_id", "requisitionId", "reqId", "employmentType", "employment_type", "department",
		"applyUrl", "apply_url", "jobUrl", "hostedUrl", "absolute_url", "postedDate", "datePosted",
		"posted_at", "postingDate", "jobType", "workplaceType", "remote", "isRemote",
	}
)

// looksLikeJob requires a title field and at least one field only job postings carry.
// A plain "name" title also needs a location or URL so navigation items and people are skipped.
func looksLikeJob(obj map[string]interface{}) bool {
	titleKey := ""
	for _, k := range titleKeys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			titleKey = k
			break
		}
	}
	if titleKey == "" {
		return false
	}

	hasJobField := false
	for _, k := range jobOnlyKeys {
		if _, ok := obj[k]; ok {
			hasJobField = true
			break
		}
	}
	if !hasJobField {
		return false
	}
	if titleKey == "name" {
		return firstString(obj, locationKeys...) != "" || firstString(obj, urlKeys...) != ""
	}
	return true
}

func mapJob(obj map[string]interface{}) normalize.RawJob {
	raw := normalize.RawJob{
		Title:          firstString(obj, titleKeys...),
		Location:       firstString(obj, locationKeys...),
		Department:     firstString(obj, "department", "team", "departmentName", "category"),
		Description:    firstString(obj, "description", "descriptionHtml", "descriptionPlain", "summary", "content"),
		EmploymentType: firstString(obj, "employmentType", "employment_type", "jobType", "commitment"),
		WorkTypeHint:   firstString(obj, "workplaceType", "workplace_type", "locationType"),
		URL:            firstString(obj, urlKeys...),
		PostedAt:       firstString(obj, "postedDate", "datePosted", "posted_at", "postingDate", "publishedAt", "createdAt"),
	}
	for _, k := range []string{"remote", "isRemote"} {
		if b, ok := obj[k].(bool); ok {
			raw.Remote = &b
			break
		}
	}
	return raw
}

// firstString returns the first key holding a usable scalar; objects contribute their name and
// arrays their first element
func firstString(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := scalar(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

func scalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]interface{}:
		for _, k := range []string{"name", "label", "text", "title", "city"} {
			if s := scalar(t[k]); s != "" {
				return s
			}
		}
	case []interface{}:
		if len(t) > 0 {
			return scalar(t[0])
		}
	}
	return ""
}

// reviveDevalue rebuilds a Nuxt 3 payload. The payload is a flat array whose
// first element is the root; object values and array items are indexes into
// it, and wrapper types are tagged arrays such as ["Reactive", 3].
func reviveDevalue(v interface{}) interface{} {
	table, ok := v.([]interface{})
	if !ok || len(table) == 0 {
		return v
	}
	r := &devalueReviver{table: table, done: make(map[int]interface{}), active: make(map[int]bool)}
	return r.at(0)
}

type devalueReviver struct {
	table  []interface{}
	done   map[int]interface{}
	active map[int]bool
}

func (r *devalueReviver) ref(v interface{}) interface{} {
	f, ok := v.(float64)
	if !ok || f < 0 || f != float64(int(f)) {
		return nil
	}
	return r.at(int(f))
}

func (r *devalueReviver) at(i int) interface{} {
	if i < 0 || i >= len(r.table) || r.active[i] {
		return nil
	}
	if v, ok := r.done[i]; ok {
		return v
	}
	r.active[i] = true
	defer delete(r.active, i)

	var out interface{}
	switch node := r.table[i].(type) {
	case map[string]interface{}:
		obj := make(map[string]interface{}, len(node))
		for k, v := range node {
			obj[k] = r.ref(v)
		}
		out = obj
	case []interface{}:
		out = r.array(node)
	default:
		out = node
	}
	r.done[i] = out
	return out
}

func (r *devalueReviver) array(node []interface{}) interface{} {
	tag, tagged := "", false
	if len(node) > 0 {
		tag, tagged = node[0].(string)
	}
	if !tagged {
		items := make([]interface{}, 0, len(node))
		for _, v := range node {
			items = append(items, r.ref(v))
		}
		return items
	}
	switch tag {
	case "Date", "RegExp", "BigInt":
		if len(node) > 1 {
			return node[1]
		}
		return nil
	case "Set":
		items := make([]interface{}, 0, len(node)-1)
		for _, v := range node[1:] {
			items = append(items, r.ref(v))
		}
		return items
	case "Map", "null":
		obj := make(map[string]interface{})
		for j := 1; j+1 < len(node); j += 2 {
			if key, ok := r.ref(node[j]).(string); ok {
				obj[key] = r.ref(node[j+1])
			} else if key, ok := node[j].(string); ok {
				obj[key] = r.ref(node[j+1])
			}
		}
		return obj
	default:
		if len(node) > 1 {
			return r.ref(node[1])
		}
		return nil
	}
}

// Package pattern reads job cards out of plain career page markup using CSS
// selectors, with a title-pattern sweep over links as the last resort.
package pattern

import (
	"context"
	"regexp"
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

const minTitleLength = 5

// cardSelectors are common job card containers, most specific first
var cardSelectors = []string{
	"[data-testid*='job-card'], [data-testid*='job-listing'], [data-qa*='job']",
	"[class*='job-card'], [class*='jobCard'], [class*='job-listing'], [class*='jobListing']",
	"[class*='opening'], [class*='position'], [class*='vacancy'], [class*='posting']",
	"li[class*='job'], div[class*='job-item'], article[class*='job']",
}

var (
	titleSelectors    = []string{"[class*='title'], [data-testid*='title']", "h2, h3, h4", "a"}
	locationSelectors = []string{"[class*='location'], [data-testid*='location']", "[class*='city'], [class*='office']"}
	departmentSels    = []string{"[class*='department'], [class*='team'], [class*='category']"}
)

// roleTitle matches link text that reads like a job title
var roleTitle = regexp.MustCompile(`(?i)\b(engineer|developer|designer|manager|analyst|scientist|architect|specialist|consultant|coordinator|director|administrator|intern|recruiter|lead|head of|associate|representative|technician|accountant|writer|researcher|officer)\b`)

// navWords disqualify link text that is site chrome rather than a posting
var navWords = []string{
	"apply", "login", "log in", "sign in", "sign up", "menu", "home", "about us", "contact",
	"privacy", "cookie", "terms", "search jobs", "view all", "see all", "learn more", "read more",
	"our team", "benefits", "blog", "press", "careers home",
}

// Extractor is the HTML pattern strategy
type Extractor struct {
	fetcher PageFetcher
	maxJobs int
	logger  types.Logger
	now     func() time.Time
}

// New creates a pattern extractor returning at most maxJobs postings per page
func New(fetcher PageFetcher, maxJobs int) *Extractor {
	if maxJobs <= 0 {
		maxJobs = 20
	}
	return &Extractor{
		fetcher: fetcher,
		maxJobs: maxJobs,
		logger:  logging.Component("pattern_extractor"),
		now:     time.Now,
	}
}

func (e *Extractor) Name() string { return config.StrategyPattern }

func (e *Extractor) Supports(company *models.CompanyConfig) bool {
	return company.CareerPageURL != ""
}

func (e *Extractor) Extract(ctx context.Context, company *models.CompanyConfig) ([]models.ScrapedJob, error) {
	html, err := e.fetcher.GetPage(ctx, company.CareerPageURL)
	if err != nil {
		return nil, err
	}

	raws, err := e.ExtractFromHTML(html, company.CareerPageURL, company.ScrapeConfig.Selectors)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, utils.NewNoJobsError("no job cards or role links matched on career page")
	}

	now := e.now()
	jobs := make([]models.ScrapedJob, 0, len(raws))
	for _, raw := range raws {
		jobs = append(jobs, normalize.Build(company, raw, models.MethodHTMLPattern, now))
	}
	return jobs, nil
}

// ExtractFromHTML tries company selectors, then generic card selectors, then the link sweep.
// Links are resolved against baseURL.
func (e *Extractor) ExtractFromHTML(html, baseURL string, selectors models.SelectorConfig) ([]normalize.RawJob, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, utils.NewParseError("invalid HTML").WithCause(err)
	}
	doc.Find("script, style, noscript, nav, footer, header").Remove()

	c := &collector{max: e.maxJobs, base: baseURL, seen: make(map[string]bool)}

	if selectors.HasCustomSelectors() {
		e.fromCards(doc.Find(selectors.JobCard), c, selectors)
		if c.full() || len(c.jobs) > 0 {
			return c.jobs, nil
		}
		e.logger.Debug("Custom selectors matched nothing, trying generic cards", map[string]interface{}{"job_card": selectors.JobCard})
	}

	for _, sel := range cardSelectors {
		e.fromCards(doc.Find(sel), c, models.SelectorConfig{})
		if len(c.jobs) > 0 {
			return c.jobs, nil
		}
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		title := normalize.CleanText(a.Text())
		if roleTitle.MatchString(title) {
			href, _ := a.Attr("href")
			c.add(normalize.RawJob{Title: title, URL: href})
		}
		return !c.full()
	})
	return c.jobs, nil
}

func (e *Extractor) fromCards(cards *goquery.Selection, c *collector, sel models.SelectorConfig) {
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		raw := normalize.RawJob{
			Title:      pick(card, sel.Title, titleSelectors),
			Location:   pick(card, sel.Location, locationSelectors),
			Department: pick(card, "", departmentSels),
			URL:        link(card, sel.Link),
		}
		c.add(raw)
		return !c.full()
	})
}

// pick returns the text of the first matching selector inside card, custom selector first
func pick(card *goquery.Selection, custom string, fallbacks []string) string {
	if custom != "" {
		return normalize.CleanText(card.Find(custom).First().Text())
	}
	for _, s := range fallbacks {
		if text := normalize.CleanText(card.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func link(card *goquery.Selection, custom string) string {
	if custom != "" {
		href, _ := card.Find(custom).First().Attr("href")
		return href
	}
	if href, ok := card.Attr("href"); ok {
		return href
	}
	href, _ := card.Find("a[href]").First().Attr("href")
	return href
}

// collector applies the title rules, resolves links and drops repeats
type collector struct {
	max  int
	base string
	seen map[string]bool
	jobs []normalize.RawJob
}

func (c *collector) full() bool { return len(c.jobs) >= c.max }

func (c *collector) add(raw normalize.RawJob) {
	if c.full() || !PlausibleTitle(raw.Title) {
		return
	}
	raw.URL = utils.ResolveURL(c.base, raw.URL)
	key := strings.ToLower(raw.Title + "|" + raw.Location + "|" + raw.URL)
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.jobs = append(c.jobs, raw)
}

// PlausibleTitle rejects empty, oversized and navigation text
func PlausibleTitle(title string) bool {
	if len(title) < minTitleLength || len(title) > 150 {
		return false
	}
	lower := strings.ToLower(title)
	for _, w := range navWords {
		if lower == w || strings.HasPrefix(lower, w+" ") {
			return false
		}
	}
	return true
}

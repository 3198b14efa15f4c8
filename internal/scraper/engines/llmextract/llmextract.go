// Package llmextract asks a language model to list the postings on a career page.
package llmextract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"harvest-engine/internal/config"
	"harvest-engine/internal/llm"
	"harvest-engine/internal/llm/processors"
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

// Completer is the slice of *llm.Manager this strategy needs
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, string, error)
	IsConfigured() bool
	IsAvailable() bool
}

const systemPrompt = `You extract job postings from career page HTML.
Return ONLY a JSON object with exactly this shape:
{
  "jobs": [
    {
      "title": "string, required",
      "location": "string, empty if unknown",
      "department": "string, empty if unknown",
      "url": "string, link to the posting as written in the page, empty if none",
      "employmentType": "full-time | part-time | contract | internship | empty",
      "workType": "remote | hybrid | onsite | empty",
      "description": "string, one or two sentences if the page shows one",
      "salary": "string, pay exactly as shown, empty if not shown"
    }
  ],
  "confidence": number between 0 and 1 that the list is complete and correct,
  "totalFound": number of postings you saw on the page
}
Rules:
1. List only real open positions. Skip navigation, blog posts, team bios and benefits.
2. Never invent postings. If the page lists none, return "jobs": [] with a low confidence.
3. Do not wrap the JSON in markdown.`

// reply is the strict shape expected back; Jobs is a pointer so a missing key can be told from an empty list
type reply struct {
	Jobs       *[]replyJob `json:"jobs"`
	Confidence *float64    `json:"confidence"`
	TotalFound int         `json:"totalFound"`
}

type replyJob struct {
	Title          string `json:"title"`
	Location       string `json:"location"`
	Department     string `json:"department"`
	URL            string `json:"url"`
	EmploymentType string `json:"employmentType"`
	WorkType       string `json:"workType"`
	Description    string `json:"description"`
	Salary         string `json:"salary"`
}

// Extractor is the LLM-assisted strategy
type Extractor struct {
	fetcher       PageFetcher
	llm           Completer
	cleaner       *processors.HTMLCleaner
	maxHTMLChars  int
	maxJobs       int
	minConfidence float64
	logger        types.Logger
	now           func() time.Time
}

// New creates the LLM strategy from llm.* settings
func New(cfg *config.Config, fetcher PageFetcher, completer Completer) *Extractor {
	maxJobs := cfg.LLM.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 20
	}
	return &Extractor{
		fetcher:       fetcher,
		llm:           completer,
		cleaner:       processors.NewHTMLCleaner(),
		maxHTMLChars:  cfg.LLM.MaxHTMLChars,
		maxJobs:       maxJobs,
		minConfidence: cfg.LLM.MinConfidence,
		logger:        logging.Component("llm_extractor"),
		now:           time.Now,
	}
}

func (e *Extractor) Name() string { return config.StrategyLLM }

// Supports requires a career page and a configured, reachable provider
func (e *Extractor) Supports(company *models.CompanyConfig) bool {
	return company.CareerPageURL != "" && e.llm != nil && e.llm.IsConfigured() && e.llm.IsAvailable()
}

func (e *Extractor) Extract(ctx context.Context, company *models.CompanyConfig) ([]models.ScrapedJob, error) {
	html, err := e.fetcher.GetPage(ctx, company.CareerPageURL)
	if err != nil {
		return nil, err
	}
	return e.ExtractFromHTML(ctx, company, html)
}

// ExtractFromHTML runs the model over already-fetched markup
func (e *Extractor) ExtractFromHTML(ctx context.Context, company *models.CompanyConfig, html string) ([]models.ScrapedJob, error) {
	content, truncated, err := e.cleaner.Prepare(html, e.maxHTMLChars)
	if err != nil {
		return nil, utils.NewParseError("failed to clean HTML").WithCause(err)
	}
	if truncated {
		e.logger.Debug("Career page truncated for LLM", map[string]interface{}{"company_id": company.ID, "max_chars": e.maxHTMLChars})
	}

	user := fmt.Sprintf("Company: %s\nPage URL: %s\n\nHTML:\n%s", company.Name, company.CareerPageURL, content)
	text, provider, err := e.llm.Complete(ctx, systemPrompt, user)
	if err != nil {
		return nil, err
	}

	parsed, err := parseReply(text)
	if err != nil {
		e.logger.Warn("LLM reply rejected", map[string]interface{}{"company_id": company.ID, "provider": provider, "error": err.Error()})
		return nil, err
	}

	confidence := *parsed.Confidence
	if confidence < e.minConfidence {
		return nil, utils.NewParseError(fmt.Sprintf("LLM confidence %.2f below minimum %.2f", confidence, e.minConfidence))
	}

	now := e.now()
	var jobs []models.ScrapedJob
	for _, j := range *parsed.Jobs {
		if len(jobs) >= e.maxJobs {
			break
		}
		if normalize.CleanText(j.Title) == "" {
			continue
		}
		raw := normalize.RawJob{
			Title:          j.Title,
			Location:       j.Location,
			Department:     j.Department,
			URL:            j.URL,
			EmploymentType: j.EmploymentType,
			WorkTypeHint:   j.WorkType,
			Description:    j.Description,
			SalaryText:     j.Salary,
			Confidence:     confidence,
		}
		jobs = append(jobs, normalize.Build(company, raw, models.MethodLLM, now))
	}
	if len(jobs) == 0 {
		return nil, utils.NewNoJobsError("LLM found no postings on career page")
	}

	e.logger.Debug("LLM extraction complete", map[string]interface{}{
		"company_id":  company.ID,
		"provider":    provider,
		"jobs":        len(jobs),
		"total_found": parsed.TotalFound,
		"confidence":  confidence,
	})
	return jobs, nil
}

// parseReply rejects anything that is not the expected object; jobs and confidence are mandatory
func parseReply(text string) (*reply, error) {
	var r reply
	if err := json.Unmarshal([]byte(llm.CleanJSON(text)), &r); err != nil {
		return nil, utils.NewParseError("LLM reply is not valid JSON").WithCause(err)
	}
	if r.Jobs == nil {
		return nil, utils.NewParseError("LLM reply has no jobs array")
	}
	if r.Confidence == nil {
		return nil, utils.NewParseError("LLM reply has no confidence")
	}
	return &r, nil
}

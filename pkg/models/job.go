package models

import "time"

// Work types
const (
	WorkTypeRemote = "remote"
	WorkTypeOnsite = "onsite"
	WorkTypeHybrid = "hybrid"
)

// Scrape methods recorded in Source.ScrapeMethod
const (
	MethodStructuredData = "structured_data"
	MethodAPI            = "api"
	MethodEmbeddedState  = "embedded_state"
	MethodHTMLPattern    = "html_pattern"
	MethodLLM            = "llm"
	MethodHeadless       = "headless_browser"
)

// Source origin types
const (
	SourceCareerPage = "career_page"
	SourceATS        = "ats"
)

// JobStatusActive is the only status the engine assigns; closing postings is a downstream concern
const JobStatusActive = "active"

// Placeholder values used when a strategy could not discover a field
const (
	UnknownValue       = "unknown"
	NotSpecifiedValue  = "not_specified"
	DefaultCurrency    = "USD"
	DefaultSalaryRange = "yearly"
)

// ScrapedJob is the canonical job record every strategy produces
type ScrapedJob struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	NormalizedTitle  string    `json:"normalized_title"`
	Company          string    `json:"company"`
	CompanyID        string    `json:"company_id"`
	Location         Location  `json:"location"`
	Department       string    `json:"department"`
	Description      string    `json:"description"`
	Requirements     []string  `json:"requirements"`
	Responsibilities []string  `json:"responsibilities"`
	Skills           []string  `json:"skills"`
	WorkType         string    `json:"work_type"`
	EmploymentType   string    `json:"employment_type"`
	ExperienceLevel  string    `json:"experience_level"`
	Salary           Salary    `json:"salary"`
	ExternalURL      string    `json:"external_url"`
	Source           Source    `json:"source"`
	Confidence       float64   `json:"confidence"`
	PostedDate       time.Time `json:"posted_date"`
	ScrapedAt        time.Time `json:"scraped_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Status           string    `json:"status"`
}

// Location keeps the raw text next to the derived fields
type Location struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	IsRemote   bool   `json:"is_remote"`
}

// Salary represents compensation; zero Min/Max with IsDisclosed=false means not published
type Salary struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Currency    string  `json:"currency"`
	Period      string  `json:"period"` // hourly, monthly, yearly
	IsDisclosed bool    `json:"is_disclosed"`
}

// Source records where and how a job was obtained
type Source struct {
	Type         string `json:"type"`
	ScrapeMethod string `json:"scrape_method"`
	ATSVendor    string `json:"ats_vendor,omitempty"`
	URL          string `json:"url"`
}

// FilterCriteria holds the exact-match predicates for FilterJobs. Empty fields match everything.
type FilterCriteria struct {
	WorkType        string   `json:"work_type" query:"work_type" validate:"omitempty,oneof=remote onsite hybrid"`
	ExperienceLevel string   `json:"experience_level" query:"experience_level" validate:"omitempty,oneof=intern entry junior mid senior lead executive"`
	Location        string   `json:"location" query:"location"`
	IsRemote        *bool    `json:"is_remote" query:"is_remote"`
	Skills          []string `json:"skills" query:"skills"`
}

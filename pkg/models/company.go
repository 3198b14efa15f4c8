package models

// CompanyConfig describes one scrape target. It is read-only for the duration of a run.
type CompanyConfig struct {
	ID            string       `json:"id" yaml:"id" validate:"required,company_id"`
	Name          string       `json:"name" yaml:"name" validate:"required"`
	CareerPageURL string       `json:"career_page_url" yaml:"career_page_url" validate:"omitempty,url"`
	ATS           *ATSConfig   `json:"ats,omitempty" yaml:"ats,omitempty"`
	ScrapeConfig  ScrapeConfig `json:"scrape_config" yaml:"scrape_config"`
}

// ATSConfig identifies a vendor board. APIURL overrides the computed endpoint.
type ATSConfig struct {
	Type    string `json:"type" yaml:"type" validate:"required,ats_type"`
	BoardID string `json:"board_id" yaml:"board_id"`
	APIURL  string `json:"api_url,omitempty" yaml:"api_url,omitempty" validate:"omitempty,url"`
}

// ScrapeConfig carries per-company hints for the extraction strategies
type ScrapeConfig struct {
	Selectors          SelectorConfig `json:"selectors" yaml:"selectors"`
	WaitForSelector    string         `json:"wait_for_selector,omitempty" yaml:"wait_for_selector,omitempty"`
	WaitMs             int            `json:"wait_ms,omitempty" yaml:"wait_ms,omitempty" validate:"min=0"`
	AutoScroll         bool           `json:"auto_scroll" yaml:"auto_scroll"`
	RequiresJavaScript bool           `json:"requires_javascript" yaml:"requires_javascript"`
	// Strategies replaces the global order for this company when non-empty
	Strategies         []string `json:"strategies,omitempty" yaml:"strategies,omitempty" validate:"omitempty,dive,strategy"`
	DisabledStrategies []string `json:"disabled_strategies,omitempty" yaml:"disabled_strategies,omitempty" validate:"omitempty,dive,strategy"`
}

// SelectorConfig holds company-specific CSS selectors for the pattern extractor
type SelectorConfig struct {
	JobCard  string `json:"job_card,omitempty" yaml:"job_card,omitempty"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	Link     string `json:"link,omitempty" yaml:"link,omitempty"`
}

// HasCustomSelectors reports whether a job card selector was supplied
func (s SelectorConfig) HasCustomSelectors() bool {
	return s.JobCard != ""
}

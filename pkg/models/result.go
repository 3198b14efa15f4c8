package models

import "time"

// ScrapingError is the typed failure attached to an unsuccessful ScrapingResult
type ScrapingError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StrategyAttempt records one strategy run inside a company's cascade
type StrategyAttempt struct {
	Strategy  string        `json:"strategy"`
	Jobs      int           `json:"jobs"`
	Attempts  int           `json:"attempts"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// ScrapingResult is the per-company outcome of one engine run
type ScrapingResult struct {
	CompanyID    string            `json:"company_id"`
	CompanyName  string            `json:"company_name"`
	Success      bool              `json:"success"`
	Jobs         []ScrapedJob      `json:"jobs"`
	Error        *ScrapingError    `json:"error,omitempty"`
	StrategyUsed string            `json:"strategy_used,omitempty"`
	Attempts     []StrategyAttempt `json:"attempts"`
	StartedAt    time.Time         `json:"started_at"`
	Duration     time.Duration     `json:"duration"`
}

// SourceCount pairs a source label with the number of jobs it produced
type SourceCount struct {
	Source string `json:"source"`
	Jobs   int    `json:"jobs"`
}

// ScrapingMetrics aggregates one batch run
type ScrapingMetrics struct {
	RunID             string         `json:"run_id"`
	TotalJobsScraped  int            `json:"total_jobs_scraped"`
	SuccessRate       float64        `json:"success_rate"`
	AverageLatency    time.Duration  `json:"average_latency"`
	ErrorsByType      map[string]int `json:"errors_by_type"`
	TopSources        []SourceCount  `json:"top_sources"`
	CompaniesScraped  int            `json:"companies_scraped"`
	StoreSize         int            `json:"store_size"`
	NewJobsAdded      int            `json:"new_jobs_added"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       time.Time      `json:"completed_at"`
}

// Health states
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthDown     = "down"
)

// HealthCheck is the engine's self-assessment for the ops surface
type HealthCheck struct {
	Status          string           `json:"status"`
	Timestamp       time.Time        `json:"timestamp"`
	LastSuccessRate float64          `json:"last_success_rate"`
	LastRunAt       *time.Time       `json:"last_run_at,omitempty"`
	Running         bool             `json:"running"`
	Components      HealthComponents `json:"components"`
}

// HealthComponents are the component-level readings behind HealthCheck.Status
type HealthComponents struct {
	Database           bool `json:"database"`
	QueueDepth         int  `json:"queue_depth"`
	APIKeysConfigured  bool `json:"api_keys_configured"`
	AIServiceAvailable bool `json:"ai_service_available"`
	BrowserAvailable   bool `json:"browser_available"`
}

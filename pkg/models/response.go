package models

import "time"

// BatchResponse is returned by the batch scrape endpoint
type BatchResponse struct {
	Results   []*ScrapingResult `json:"results"`
	Metrics   *ScrapingMetrics  `json:"metrics"`
	RequestID string            `json:"request_id"`
}

// CompanyResponse is returned by the single-company scrape endpoint
type CompanyResponse struct {
	Result    *ScrapingResult `json:"result"`
	NewJobs   int             `json:"new_jobs"`
	RequestID string          `json:"request_id"`
}

// JobsResponse wraps job listings
type JobsResponse struct {
	Jobs  []ScrapedJob `json:"jobs"`
	Count int          `json:"count"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	HealthCheck
	Version string        `json:"version"`
	Uptime  time.Duration `json:"uptime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

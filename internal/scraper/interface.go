package scraper

import (
	"context"

	"harvest-engine/pkg/models"
)

// Strategy is one extraction technique in a company's cascade
type Strategy interface {
	// Name is the strategy key used in scraper.strategy_order
	Name() string

	// Supports reports whether the strategy can run for this company at all
	// (ATS configured, LLM credentials present, browser enabled...)
	Supports(company *models.CompanyConfig) bool

	// Extract returns at least one job or an error; zero jobs is reported as a no_jobs error
	Extract(ctx context.Context, company *models.CompanyConfig) ([]models.ScrapedJob, error)
}

// StrategyFactory builds strategies by name
type StrategyFactory interface {
	CreateStrategy(name string) (Strategy, error)
	GetSupportedStrategies() []string
}

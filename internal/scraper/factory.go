package scraper

import (
	"fmt"

	"harvest-engine/internal/config"
	"harvest-engine/internal/scraper/captcha"
	"harvest-engine/internal/scraper/engines/ats"
	"harvest-engine/internal/scraper/engines/embedded"
	"harvest-engine/internal/scraper/engines/headed"
	"harvest-engine/internal/scraper/engines/llmextract"
	"harvest-engine/internal/scraper/engines/pattern"
	"harvest-engine/internal/scraper/engines/structured"
	"harvest-engine/internal/scraper/fetcher"
)

// Dependencies are the shared resources strategies are built on. Nil fields disable what needs them.
type Dependencies struct {
	Fetcher  *fetcher.Fetcher
	LLM      llmextract.Completer
	Browser  headed.BrowserPool
	Renderer headed.Renderer
	Solver   captcha.Solver
}

// DefaultStrategyFactory implements StrategyFactory
type DefaultStrategyFactory struct {
	config *config.Config
	deps   Dependencies
}

// NewStrategyFactory creates a new strategy factory
func NewStrategyFactory(cfg *config.Config, deps Dependencies) *DefaultStrategyFactory {
	return &DefaultStrategyFactory{config: cfg, deps: deps}
}

// CreateStrategy creates the strategy registered under name
func (f *DefaultStrategyFactory) CreateStrategy(name string) (Strategy, error) {
	switch name {
	case config.StrategyATS, config.StrategyStructured, config.StrategyEmbedded, config.StrategyPattern, config.StrategyLLM:
		if f.deps.Fetcher == nil {
			return nil, fmt.Errorf("strategy %s needs an HTTP fetcher", name)
		}
	}

	switch name {
	case config.StrategyATS:
		return ats.New(f.deps.Fetcher), nil
	case config.StrategyStructured:
		return structured.New(f.deps.Fetcher), nil
	case config.StrategyEmbedded:
		return embedded.New(f.deps.Fetcher, f.config.Scraper.EmbeddedMaxDepth), nil
	case config.StrategyPattern:
		return pattern.New(f.deps.Fetcher, f.config.Scraper.MaxPatternJobs), nil
	case config.StrategyLLM:
		if f.deps.LLM == nil {
			return nil, fmt.Errorf("strategy %s needs an LLM manager", name)
		}
		return llmextract.New(f.config, f.deps.Fetcher, f.deps.LLM), nil
	case config.StrategyBrowser:
		return headed.New(f.config, f.deps.Browser, f.deps.Renderer, f.deps.Solver), nil
	default:
		return nil, fmt.Errorf("unsupported strategy: %s", name)
	}
}

// GetSupportedStrategies returns every strategy name this factory can build
func (f *DefaultStrategyFactory) GetSupportedStrategies() []string {
	return append([]string(nil), config.DefaultStrategyOrder...)
}

// BuildAll creates every known strategy; the engine decides per company which ones run.
// Strategies missing a dependency are skipped rather than failing startup.
func (f *DefaultStrategyFactory) BuildAll() ([]Strategy, []error) {
	var (
		built []Strategy
		errs  []error
	)
	for _, name := range f.GetSupportedStrategies() {
		s, err := f.CreateStrategy(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		built = append(built, s)
	}
	return built, errs
}

package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/internal/scraper/workers"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

// Engine runs the strategy cascade for one company and fans companies out over the worker pool
type Engine struct {
	cfg        *config.Config
	strategies map[string]Strategy
	pool       *workers.WorkerPool
	logger     types.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewEngine registers strategies by name; a later strategy with the same name replaces an earlier one
func NewEngine(cfg *config.Config, pool *workers.WorkerPool, strategies ...Strategy) *Engine {
	byName := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	if pool == nil {
		pool = workers.NewWorkerPool(cfg)
	}
	return &Engine{
		cfg:        cfg,
		strategies: byName,
		pool:       pool,
		logger:     logging.Component("scraper_engine"),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Pool exposes the worker pool for queue-depth reporting
func (e *Engine) Pool() *workers.WorkerPool {
	return e.pool
}

// ScrapeCompanies returns exactly one result per input company, at the same index.
// One company failing never affects the others.
func (e *Engine) ScrapeCompanies(ctx context.Context, companies []models.CompanyConfig) []*models.ScrapingResult {
	results := make([]*models.ScrapingResult, len(companies))
	e.pool.Run(ctx, len(companies), func(ctx context.Context, i int) {
		results[i] = e.ScrapeCompany(ctx, &companies[i])
	})
	return results
}

// ScrapeCompany runs the cascade under the per-company timeout and stops at the first strategy that yields jobs
func (e *Engine) ScrapeCompany(ctx context.Context, company *models.CompanyConfig) (result *models.ScrapingResult) {
	started := e.now()
	result = &models.ScrapingResult{
		CompanyID:   company.ID,
		CompanyName: company.Name,
		Jobs:        []models.ScrapedJob{},
		Attempts:    []models.StrategyAttempt{},
		StartedAt:   started.UTC(),
	}
	logger := e.logger.WithFields(map[string]interface{}{"company_id": company.ID, "company": company.Name})

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Strategy panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			result.Success = false
			result.Jobs = []models.ScrapedJob{}
			result.Error = &models.ScrapingError{Kind: string(utils.KindInternal), Message: fmt.Sprintf("panic: %v", r)}
		}
		result.Duration = e.now().Sub(started)
	}()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Workers.CompanyTimeout)
	defer cancel()

	plan := e.plan(company)
	if len(plan) == 0 {
		result.Error = &models.ScrapingError{
			Kind:    string(utils.KindUnsupported),
			Message: "no enabled strategy supports this company",
		}
		logger.Warn("No applicable strategy", nil)
		return result
	}

	var errs []error
	for _, strategy := range plan {
		if ctx.Err() != nil {
			errs = append(errs, utils.NewTimeoutError("company timeout reached before "+strategy.Name()).WithCause(ctx.Err()))
			break
		}

		attemptStart := e.now()
		jobs, tries, err := e.runWithRetry(ctx, strategy, company)
		attempt := models.StrategyAttempt{
			Strategy: strategy.Name(),
			Jobs:     len(jobs),
			Attempts: tries,
			Duration: e.now().Sub(attemptStart),
		}

		if err == nil && len(jobs) == 0 {
			err = utils.NewNoJobsError(strategy.Name() + " returned an empty list")
		}
		if err != nil {
			attempt.ErrorKind = string(utils.KindOf(err))
			attempt.Error = err.Error()
			result.Attempts = append(result.Attempts, attempt)
			errs = append(errs, fmt.Errorf("%s: %w", strategy.Name(), err))

			logger.Info("Strategy failed, advancing cascade", map[string]interface{}{
				"strategy":   strategy.Name(),
				"error_kind": attempt.ErrorKind,
				"error":      err.Error(),
				"tries":      tries,
			})
			continue
		}

		result.Attempts = append(result.Attempts, attempt)
		result.Success = true
		result.Jobs = jobs
		result.StrategyUsed = strategy.Name()
		logger.Info("Company scraped", map[string]interface{}{
			"strategy": strategy.Name(),
			"jobs":     len(jobs),
			"tries":    tries,
		})
		return result
	}

	result.Error = aggregate(errs)
	logger.Warn("Every strategy failed", map[string]interface{}{
		"error_kind": result.Error.Kind,
		"attempts":   len(result.Attempts),
	})
	return result
}

// plan is the company override order, or the global order, minus disabled and unsupported strategies
func (e *Engine) plan(company *models.CompanyConfig) []Strategy {
	order := e.cfg.Scraper.StrategyOrder
	if len(company.ScrapeConfig.Strategies) > 0 {
		order = company.ScrapeConfig.Strategies
	}
	disabled := make(map[string]bool, len(company.ScrapeConfig.DisabledStrategies))
	for _, name := range company.ScrapeConfig.DisabledStrategies {
		disabled[strings.ToLower(name)] = true
	}

	var plan []Strategy
	seen := make(map[string]bool)
	for _, name := range order {
		name = strings.ToLower(strings.TrimSpace(name))
		if seen[name] || disabled[name] {
			continue
		}
		seen[name] = true

		strategy, ok := e.strategies[name]
		if !ok || !strategy.Supports(company) {
			continue
		}
		plan = append(plan, strategy)
	}
	return plan
}

// runWithRetry retries transient failures only, with exponential backoff
func (e *Engine) runWithRetry(ctx context.Context, strategy Strategy, company *models.CompanyConfig) ([]models.ScrapedJob, int, error) {
	var lastErr error
	maxTries := e.cfg.Workers.MaxRetries + 1
	for try := 1; try <= maxTries; try++ {
		jobs, err := strategy.Extract(ctx, company)
		if err == nil {
			return jobs, try, nil
		}
		lastErr = err

		if !utils.IsRetryable(err) || try == maxTries || ctx.Err() != nil {
			return nil, try, err
		}

		backoff := e.cfg.Workers.RetryBackoff * time.Duration(1<<(try-1))
		e.logger.Debug("Retrying strategy after transient error", map[string]interface{}{
			"company_id": company.ID,
			"strategy":   strategy.Name(),
			"try":        try,
			"backoff":    backoff.String(),
			"error":      err.Error(),
		})
		if err := e.sleep(ctx, backoff); err != nil {
			return nil, try, lastErr
		}
	}
	return nil, maxTries, lastErr
}

// aggregate picks the most telling kind: a hard failure beats no_jobs, which beats unsupported
func aggregate(errs []error) *models.ScrapingError {
	if len(errs) == 0 {
		return &models.ScrapingError{Kind: string(utils.KindNoJobs), Message: "no strategy produced jobs"}
	}

	rank := func(k utils.ErrorKind) int {
		switch k {
		case utils.KindUnsupported:
			return 0
		case utils.KindNoJobs:
			return 1
		default:
			return 2
		}
	}

	kind := utils.KindOf(errs[0])
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		k := utils.KindOf(err)
		if rank(k) >= rank(kind) {
			kind = k
		}
		messages = append(messages, err.Error())
	}
	return &models.ScrapingError{Kind: string(kind), Message: strings.Join(messages, "; ")}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

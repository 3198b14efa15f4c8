// Package scheduler triggers batch runs on a cron spec over the configured companies file.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/internal/orchestrator"
	"harvest-engine/pkg/models"
)

// BatchRunner is the orchestrator surface the scheduler drives
type BatchRunner interface {
	ScrapeCompanies(ctx context.Context, companies []models.CompanyConfig) (*orchestrator.BatchOutcome, error)
}

// Scheduler wraps robfig/cron and manages the scrape loop
type Scheduler struct {
	cron   *cron.Cron
	runner BatchRunner
	spec   string
	load   func() ([]models.CompanyConfig, error)
	runNow bool
	logger types.Logger

	wg sync.WaitGroup
}

// New creates a scheduler from scheduler.spec and scheduler.companies_file
func New(cfg *config.Config, runner BatchRunner) *Scheduler {
	path := cfg.Scheduler.CompaniesFile
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   cfg.Scheduler.Spec,
		load:   func() ([]models.CompanyConfig, error) { return LoadCompanies(path) },
		runNow: cfg.Scheduler.RunOnStart,
		logger: logging.Component("scheduler"),
	}
}

// Start registers the job and starts the cron loop. With run_on_start one
// batch also runs immediately so the store is populated before the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid scheduler spec %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", map[string]interface{}{"spec": s.spec})

	if s.runNow {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.RunOnce(ctx)
		}()
	}
	return nil
}

// Stop stops the cron loop and waits for the running tick, if any, until ctx expires
func (s *Scheduler) Stop(ctx context.Context) {
	cronDone := s.cron.Stop().Done()

	done := make(chan struct{})
	go func() {
		<-cronDone
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped", nil)
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with a batch still running", nil)
	}
}

// RunOnce loads the companies file and runs one batch. A tick that finds a
// batch already running is skipped rather than queued.
func (s *Scheduler) RunOnce(ctx context.Context) {
	companies, err := s.load()
	if err != nil {
		s.logger.Error("Failed to load companies", map[string]interface{}{"error": err.Error()})
		return
	}
	if len(companies) == 0 {
		s.logger.Info("No companies configured, nothing to scrape", nil)
		return
	}

	outcome, err := s.runner.ScrapeCompanies(ctx, companies)
	if errors.Is(err, orchestrator.ErrBatchInProgress) {
		s.logger.Info("Skipping scheduled run, a batch is already in progress", nil)
		return
	}
	if err != nil {
		s.logger.Error("Scheduled batch failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s.logger.Info("Scheduled batch finished", map[string]interface{}{
		"run_id":       outcome.Metrics.RunID,
		"companies":    outcome.Metrics.CompaniesScraped,
		"success_rate": outcome.Metrics.SuccessRate,
		"new_jobs":     outcome.Metrics.NewJobsAdded,
	})
}

// Package orchestrator runs scrape batches through deduplication into the in-memory job store.
package orchestrator

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"harvest-engine/internal/config"
	"harvest-engine/internal/dedup"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/pkg/models"
	"harvest-engine/pkg/utils"
)

// ErrBatchInProgress is returned while another batch holds the orchestrator
var ErrBatchInProgress = utils.NewConflictError("a scrape batch is already running")

// Scraper is the engine surface the orchestrator drives
type Scraper interface {
	ScrapeCompany(ctx context.Context, company *models.CompanyConfig) *models.ScrapingResult
	ScrapeCompanies(ctx context.Context, companies []models.CompanyConfig) []*models.ScrapingResult
}

// Deduper is the deduplicator surface the orchestrator needs
type Deduper interface {
	Deduplicate(ctx context.Context, jobs []models.ScrapedJob) dedup.Result
	Reset(ctx context.Context) error
}

// LLMStatus reports AI-service readiness
type LLMStatus interface {
	IsConfigured() bool
	IsAvailable() bool
}

// BrowserStatus reports headless-browser readiness
type BrowserStatus interface {
	IsHealthy() bool
}

// Probes are the optional readings behind the health check
type Probes struct {
	LLM        LLMStatus
	Browser    BrowserStatus
	QueueDepth func() int
}

// BatchOutcome is what one batch produced
type BatchOutcome struct {
	Results    []*models.ScrapingResult `json:"results"`
	Metrics    *models.ScrapingMetrics  `json:"metrics"`
	NewJobs    []models.ScrapedJob      `json:"-"`
	Duplicates []dedup.Duplicate        `json:"-"`
}

// Orchestrator owns the job store; all methods are safe for concurrent use
type Orchestrator struct {
	cfg     *config.Config
	engine  Scraper
	deduper Deduper
	probes  Probes
	logger  types.Logger
	now     func() time.Time
	runID   func() string

	running atomic.Bool

	mu          sync.RWMutex
	jobs        map[string]models.ScrapedJob
	lastMetrics *models.ScrapingMetrics
	lastRunAt   *time.Time
}

// New wires an engine and a deduplicator to a fresh store
func New(cfg *config.Config, engine Scraper, deduper Deduper, probes Probes) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		engine:  engine,
		deduper: deduper,
		probes:  probes,
		logger:  logging.Component("orchestrator"),
		now:     time.Now,
		runID:   utils.GenerateRequestID,
		jobs:    make(map[string]models.ScrapedJob),
	}
}

// IsRunning reports whether a batch is in flight
func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

// ScrapeCompanies runs one batch. It fails with ErrBatchInProgress instead of interleaving batches.
func (o *Orchestrator) ScrapeCompanies(ctx context.Context, companies []models.CompanyConfig) (*BatchOutcome, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrBatchInProgress
	}
	defer o.running.Store(false)

	started := o.now()
	runID := o.runID()
	o.logger.Info("Batch started", map[string]interface{}{"run_id": runID, "companies": len(companies)})

	results := o.engine.ScrapeCompanies(ctx, companies)
	return o.absorb(ctx, runID, started, results), nil
}

// ScrapeCompany runs a batch of one and reports how many new jobs reached the store
func (o *Orchestrator) ScrapeCompany(ctx context.Context, company *models.CompanyConfig) (*models.ScrapingResult, int, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, 0, ErrBatchInProgress
	}
	defer o.running.Store(false)

	started := o.now()
	result := o.engine.ScrapeCompany(ctx, company)
	outcome := o.absorb(ctx, o.runID(), started, []*models.ScrapingResult{result})
	return result, outcome.Metrics.NewJobsAdded, nil
}

// absorb dedups every successful result, upserts the unique jobs and records metrics
func (o *Orchestrator) absorb(ctx context.Context, runID string, started time.Time, results []*models.ScrapingResult) *BatchOutcome {
	var scraped []models.ScrapedJob
	for _, r := range results {
		if r != nil && r.Success {
			scraped = append(scraped, r.Jobs...)
		}
	}
	deduped := o.deduper.Deduplicate(ctx, scraped)

	completed := o.now()

	o.mu.Lock()
	added := o.upsert(deduped.Unique)
	o.upsert(deduped.Known)
	o.evict(completed)
	storeSize := len(o.jobs)

	metrics := computeMetrics(results)
	metrics.RunID = runID
	metrics.StoreSize = storeSize
	metrics.NewJobsAdded = added
	metrics.DuplicatesRemoved = len(deduped.Duplicates)
	metrics.StartedAt = started.UTC()
	metrics.CompletedAt = completed.UTC()

	o.lastMetrics = metrics
	runAt := completed.UTC()
	o.lastRunAt = &runAt
	o.mu.Unlock()

	o.logger.Info("Batch completed", map[string]interface{}{
		"run_id":             runID,
		"companies":          metrics.CompaniesScraped,
		"success_rate":       metrics.SuccessRate,
		"jobs_scraped":       metrics.TotalJobsScraped,
		"new_jobs":           added,
		"duplicates_removed": metrics.DuplicatesRemoved,
		"store_size":         storeSize,
		"duration":           completed.Sub(started).String(),
	})

	return &BatchOutcome{Results: results, Metrics: metrics, NewJobs: deduped.Unique, Duplicates: deduped.Duplicates}
}

// upsert must hold o.mu; it returns how many ids were not already stored
func (o *Orchestrator) upsert(jobs []models.ScrapedJob) int {
	added := 0
	for _, job := range jobs {
		if _, exists := o.jobs[job.ID]; !exists {
			added++
		}
		o.jobs[job.ID] = job
	}
	return added
}

// evict applies store.max_age then store.max_jobs (oldest scrapedAt first); must hold o.mu
func (o *Orchestrator) evict(now time.Time) {
	if maxAge := o.cfg.Store.MaxAge; maxAge > 0 {
		cutoff := now.Add(-maxAge)
		for id, job := range o.jobs {
			if job.ScrapedAt.Before(cutoff) {
				delete(o.jobs, id)
			}
		}
	}

	maxJobs := o.cfg.Store.MaxJobs
	if maxJobs <= 0 || len(o.jobs) <= maxJobs {
		return
	}
	all := make([]models.ScrapedJob, 0, len(o.jobs))
	for _, job := range o.jobs {
		all = append(all, job)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ScrapedAt.Equal(all[j].ScrapedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].ScrapedAt.Before(all[j].ScrapedAt)
	})
	for _, job := range all[:len(all)-maxJobs] {
		delete(o.jobs, job.ID)
	}
}

// GetAllJobs returns every stored job, newest first
func (o *Orchestrator) GetAllJobs() []models.ScrapedJob {
	return o.collect(func(models.ScrapedJob) bool { return true })
}

// GetJobsByCompany matches the company id, or the name when jobs carry no id
func (o *Orchestrator) GetJobsByCompany(companyID string) []models.ScrapedJob {
	return o.collect(func(j models.ScrapedJob) bool {
		return j.CompanyID == companyID || (j.CompanyID == "" && strings.EqualFold(j.Company, companyID))
	})
}

// FilterJobs applies every non-empty criterion; skills match if the job has any of them
func (o *Orchestrator) FilterJobs(c models.FilterCriteria) []models.ScrapedJob {
	location := strings.ToLower(strings.TrimSpace(c.Location))
	skills := make([]string, 0, len(c.Skills))
	for _, s := range c.Skills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			skills = append(skills, s)
		}
	}

	return o.collect(func(j models.ScrapedJob) bool {
		if c.WorkType != "" && !strings.EqualFold(j.WorkType, c.WorkType) {
			return false
		}
		if c.ExperienceLevel != "" && !strings.EqualFold(j.ExperienceLevel, c.ExperienceLevel) {
			return false
		}
		if location != "" &&
			!strings.Contains(strings.ToLower(j.Location.Normalized), location) &&
			!strings.Contains(strings.ToLower(j.Location.Raw), location) {
			return false
		}
		if c.IsRemote != nil && j.Location.IsRemote != *c.IsRemote {
			return false
		}
		if len(skills) > 0 && !hasAnySkill(j.Skills, skills) {
			return false
		}
		return true
	})
}

// SearchJobs is a case-insensitive substring match over title, description, skills and company.
// A blank query matches everything.
func (o *Orchestrator) SearchJobs(query string) []models.ScrapedJob {
	q := strings.ToLower(strings.TrimSpace(query))
	return o.collect(func(j models.ScrapedJob) bool {
		if q == "" {
			return true
		}
		haystack := strings.ToLower(strings.Join([]string{j.Title, j.Description, strings.Join(j.Skills, " "), j.Company}, " "))
		return strings.Contains(haystack, q)
	})
}

func (o *Orchestrator) collect(keep func(models.ScrapedJob) bool) []models.ScrapedJob {
	o.mu.RLock()
	out := make([]models.ScrapedJob, 0, len(o.jobs))
	for _, job := range o.jobs {
		if keep(job) {
			out = append(out, job)
		}
	}
	o.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ScrapedAt.Equal(out[j].ScrapedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScrapedAt.After(out[j].ScrapedAt)
	})
	return out
}

func hasAnySkill(have, want []string) bool {
	for _, h := range have {
		h = strings.ToLower(h)
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// ClearJobs empties the store and the dedup index. It is refused while a batch runs.
func (o *Orchestrator) ClearJobs(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrBatchInProgress
	}
	defer o.running.Store(false)

	o.mu.Lock()
	cleared := len(o.jobs)
	o.jobs = make(map[string]models.ScrapedJob)
	o.mu.Unlock()

	if err := o.deduper.Reset(ctx); err != nil {
		o.logger.Warn("Dedup index reset incomplete", map[string]interface{}{"error": err.Error()})
		return err
	}
	o.logger.Info("Job store cleared", map[string]interface{}{"jobs_removed": cleared})
	return nil
}

// StoreSize is the number of stored jobs
func (o *Orchestrator) StoreSize() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.jobs)
}

// LastMetrics returns a copy of the most recent batch metrics, or nil before the first run
func (o *Orchestrator) LastMetrics() *models.ScrapingMetrics {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastMetrics == nil {
		return nil
	}
	m := *o.lastMetrics
	m.ErrorsByType = make(map[string]int, len(o.lastMetrics.ErrorsByType))
	for k, v := range o.lastMetrics.ErrorsByType {
		m.ErrorsByType[k] = v
	}
	m.TopSources = append([]models.SourceCount(nil), o.lastMetrics.TopSources...)
	return &m
}

// Package dedup drops repeated and near-identical postings seen within a trailing time window.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/internal/normalize"
	"harvest-engine/pkg/models"
)

// Match tiers
const (
	TierExact = "exact"
	TierFuzzy = "fuzzy"
)

// SeenStore remembers exact hashes beyond this process. MarkSeen reports
// whether the hash was new.
type SeenStore interface {
	MarkSeen(ctx context.Context, hash string, ttl time.Duration) (bool, error)
	Reset(ctx context.Context) error
}

// Duplicate is a job that was dropped and the record it matched
type Duplicate struct {
	Job        models.ScrapedJob `json:"job"`
	MatchedID  string            `json:"matched_id,omitempty"`
	Tier       string            `json:"tier"`
	Similarity float64           `json:"similarity"`
}

// Result splits one Deduplicate call. Known jobs were already reported through
// the seen store by another process or an earlier run: they belong in the local
// store but are not new.
type Result struct {
	Unique     []models.ScrapedJob `json:"unique"`
	Known      []models.ScrapedJob `json:"known"`
	Duplicates []Duplicate         `json:"duplicates"`
}

type fuzzyEntry struct {
	id       string
	title    string
	location string
	seenAt   time.Time
}

// Deduplicator is safe for concurrent use; every call holds one lock for its whole batch
type Deduplicator struct {
	threshold float64
	window    time.Duration
	seen      SeenStore
	logger    types.Logger
	now       func() time.Time

	mu    sync.Mutex
	exact map[string]time.Time
	fuzzy map[string][]fuzzyEntry // by company key
}

// New creates a deduplicator from dedup.similarity_threshold and dedup.time_window; seen may be nil
func New(cfg *config.Config, seen SeenStore) *Deduplicator {
	threshold := cfg.Dedup.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	window := cfg.Dedup.TimeWindow
	if window <= 0 {
		window = 168 * time.Hour
	}
	return &Deduplicator{
		threshold: threshold,
		window:    window,
		seen:      seen,
		logger:    logging.Component("deduplicator"),
		now:       time.Now,
		exact:     make(map[string]time.Time),
		fuzzy:     make(map[string][]fuzzyEntry),
	}
}

// Deduplicate classifies jobs against everything seen in the window, including
// earlier jobs of the same call. The first occurrence wins and is never replaced.
func (d *Deduplicator) Deduplicate(ctx context.Context, jobs []models.ScrapedJob) Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.evict(now)

	result := Result{Unique: make([]models.ScrapedJob, 0, len(jobs)), Known: []models.ScrapedJob{}, Duplicates: []Duplicate{}}
	for _, job := range jobs {
		hash := exactKey(job)
		if _, ok := d.exact[hash]; ok {
			result.Duplicates = append(result.Duplicates, Duplicate{Job: job, MatchedID: job.ID, Tier: TierExact, Similarity: 1})
			continue
		}

		company := companyKey(job)
		title := job.NormalizedTitle
		if title == "" {
			title = normalize.NormalizeTitle(job.Title)
		}
		location := normalize.LocationKey(job.Location.Normalized)

		if match, score, ok := d.bestFuzzy(company, title, location); ok {
			result.Duplicates = append(result.Duplicates, Duplicate{Job: job, MatchedID: match.id, Tier: TierFuzzy, Similarity: score})
			continue
		}

		d.exact[hash] = now
		d.fuzzy[company] = append(d.fuzzy[company], fuzzyEntry{id: job.ID, title: title, location: location, seenAt: now})

		if d.seen != nil {
			fresh, err := d.seen.MarkSeen(ctx, hash, d.window)
			if err != nil {
				// an unreachable store must not drop jobs
				d.logger.Warn("Seen store unavailable", map[string]interface{}{"error": err.Error()})
			} else if !fresh {
				result.Known = append(result.Known, job)
				continue
			}
		}
		result.Unique = append(result.Unique, job)
	}

	if len(result.Duplicates) > 0 || len(result.Known) > 0 {
		d.logger.Debug("Duplicates removed", map[string]interface{}{
			"input":      len(jobs),
			"unique":     len(result.Unique),
			"known":      len(result.Known),
			"duplicates": len(result.Duplicates),
		})
	}
	return result
}

func (d *Deduplicator) bestFuzzy(company, title, location string) (fuzzyEntry, float64, bool) {
	var (
		best      fuzzyEntry
		bestScore float64
		found     bool
	)
	for _, entry := range d.fuzzy[company] {
		if !sameLocation(entry.location, location) {
			continue
		}
		score := Similarity(entry.title, title)
		if score >= d.threshold && score > bestScore {
			best, bestScore, found = entry, score, true
		}
	}
	return best, bestScore, found
}

// evict drops both tiers' entries older than the window; must hold d.mu
func (d *Deduplicator) evict(now time.Time) {
	cutoff := now.Add(-d.window)
	for hash, seenAt := range d.exact {
		if seenAt.Before(cutoff) {
			delete(d.exact, hash)
		}
	}
	for company, entries := range d.fuzzy {
		kept := entries[:0]
		for _, e := range entries {
			if !e.seenAt.Before(cutoff) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(d.fuzzy, company)
			continue
		}
		d.fuzzy[company] = kept
	}
}

// Size is the number of exact hashes currently indexed
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.exact)
}

// Reset forgets everything, including the seen store
func (d *Deduplicator) Reset(ctx context.Context) error {
	d.mu.Lock()
	d.exact = make(map[string]time.Time)
	d.fuzzy = make(map[string][]fuzzyEntry)
	d.mu.Unlock()

	if d.seen != nil {
		return d.seen.Reset(ctx)
	}
	return nil
}

// Similarity is 1 - edit distance / longer length, over runes
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func sameLocation(a, b string) bool {
	return a == b || unknownLocation(a) || unknownLocation(b)
}

func unknownLocation(loc string) bool {
	return loc == "" || loc == models.UnknownValue
}

func companyKey(job models.ScrapedJob) string {
	if job.CompanyID != "" {
		return job.CompanyID
	}
	return job.Company
}

// exactKey is the job id when present, else the same content hash strategies assign
func exactKey(job models.ScrapedJob) string {
	if job.ID != "" {
		return job.ID
	}
	return normalize.ContentHash(companyKey(job), job.Title, job.Location.Raw)
}

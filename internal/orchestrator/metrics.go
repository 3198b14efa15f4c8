package orchestrator

import (
	"sort"
	"time"

	"harvest-engine/pkg/models"
)

const topSourcesLimit = 5

// computeMetrics aggregates per-company results; store-related fields are filled by the caller
func computeMetrics(results []*models.ScrapingResult) *models.ScrapingMetrics {
	m := &models.ScrapingMetrics{
		ErrorsByType: make(map[string]int),
		TopSources:   []models.SourceCount{},
	}

	var (
		succeeded int
		latency   time.Duration
		bySource  = make(map[string]int)
	)
	for _, r := range results {
		if r == nil {
			continue
		}
		m.CompaniesScraped++
		latency += r.Duration
		m.TotalJobsScraped += len(r.Jobs)

		if r.Success {
			succeeded++
		} else if r.Error != nil {
			m.ErrorsByType[r.Error.Kind]++
		}
		for _, job := range r.Jobs {
			bySource[job.Source.ScrapeMethod]++
		}
	}

	if m.CompaniesScraped > 0 {
		m.SuccessRate = float64(succeeded) / float64(m.CompaniesScraped)
		m.AverageLatency = latency / time.Duration(m.CompaniesScraped)
	}

	for source, n := range bySource {
		m.TopSources = append(m.TopSources, models.SourceCount{Source: source, Jobs: n})
	}
	sort.Slice(m.TopSources, func(i, j int) bool {
		if m.TopSources[i].Jobs == m.TopSources[j].Jobs {
			return m.TopSources[i].Source < m.TopSources[j].Source
		}
		return m.TopSources[i].Jobs > m.TopSources[j].Jobs
	})
	if len(m.TopSources) > topSourcesLimit {
		m.TopSources = m.TopSources[:topSourcesLimit]
	}
	return m
}

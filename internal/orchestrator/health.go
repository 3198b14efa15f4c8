package orchestrator

import (
	"harvest-engine/pkg/models"
)

// GetHealthCheck derives healthy/degraded/down from the last run's success rate.
// Before the first run there is nothing to judge, so the engine reports healthy.
func (o *Orchestrator) GetHealthCheck() models.HealthCheck {
	o.mu.RLock()
	rate := 1.0
	var lastRun *models.ScrapingMetrics
	if o.lastMetrics != nil {
		lastRun = o.lastMetrics
		rate = o.lastMetrics.SuccessRate
	}
	lastRunAt := o.lastRunAt
	o.mu.RUnlock()

	status := models.HealthDown
	switch {
	case rate >= o.cfg.Health.HealthyThreshold:
		status = models.HealthHealthy
	case rate >= o.cfg.Health.DegradedThreshold:
		status = models.HealthDegraded
	}

	check := models.HealthCheck{
		Status:    status,
		Timestamp: o.now().UTC(),
		Running:   o.IsRunning(),
		Components: models.HealthComponents{
			// persistence lives outside this service
			Database: true,
		},
	}
	if lastRun != nil {
		check.LastSuccessRate = rate
		check.LastRunAt = lastRunAt
	}
	if o.probes.QueueDepth != nil {
		check.Components.QueueDepth = o.probes.QueueDepth()
	}
	if o.probes.LLM != nil {
		check.Components.APIKeysConfigured = o.probes.LLM.IsConfigured()
		check.Components.AIServiceAvailable = o.probes.LLM.IsAvailable()
	}
	if o.probes.Browser != nil {
		check.Components.BrowserAvailable = o.probes.Browser.IsHealthy()
	}
	return check
}

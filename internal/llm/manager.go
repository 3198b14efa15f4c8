package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
	"harvest-engine/pkg/utils"
)

// Manager owns the preferred provider and its alternate. The alternate is only
// consulted when the preferred one reports a rate limit.
type Manager struct {
	primary  Provider
	fallback Provider
	logger   types.Logger

	mu      sync.RWMutex
	healthy map[string]bool
}

// NewManager builds the providers named by llm.provider and llm.fallback.
// Unknown or unconfigured providers are left out; the manager then reports itself unconfigured.
func NewManager(cfg *config.Config) *Manager {
	factory := NewFactory(cfg)
	logger := logging.Component("llm_manager")

	build := func(name string) Provider {
		if name == "" {
			return nil
		}
		p, err := factory.CreateProvider(name)
		if err != nil {
			logger.Warn("Skipping LLM provider", map[string]interface{}{"provider": name, "error": err.Error()})
			return nil
		}
		return p
	}

	var fallback Provider
	if cfg.LLM.Fallback != cfg.LLM.Provider {
		fallback = build(cfg.LLM.Fallback)
	}
	return NewManagerWithProviders(build(cfg.LLM.Provider), fallback)
}

// NewManagerWithProviders wires explicit providers; either may be nil
func NewManagerWithProviders(primary, fallback Provider) *Manager {
	m := &Manager{
		logger:  logging.Component("llm_manager"),
		healthy: make(map[string]bool),
	}
	if primary != nil && primary.IsConfigured() {
		m.primary = primary
	}
	if fallback != nil && fallback.IsConfigured() {
		m.fallback = fallback
	}
	// an alternate without a usable preferred provider simply becomes the preferred one
	if m.primary == nil {
		m.primary, m.fallback = m.fallback, nil
	}
	return m
}

// Start probes every configured provider. Failures only disable LLM extraction, never startup.
func (m *Manager) Start(ctx context.Context) {
	for _, p := range m.providers() {
		err := p.IsHealthy(ctx)
		m.setHealthy(p.Name(), err == nil)
		if err != nil {
			m.logger.Warn("LLM provider health check failed", map[string]interface{}{"provider": p.Name(), "error": err.Error()})
			continue
		}
		m.logger.Info("LLM provider ready", map[string]interface{}{"provider": p.Name()})
	}
}

// IsConfigured reports whether any provider has credentials
func (m *Manager) IsConfigured() bool {
	return m.primary != nil
}

// IsAvailable reports whether a configured provider passed its last health check.
// Providers never probed count as available.
func (m *Manager) IsAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.providers() {
		if ok, probed := m.healthy[p.Name()]; !probed || ok {
			return true
		}
	}
	return false
}

// ProviderName returns the preferred provider name or "none"
func (m *Manager) ProviderName() string {
	if m.primary == nil {
		return "none"
	}
	return m.primary.Name()
}

// Complete asks the preferred provider and fails over once on a rate limit.
// It returns the reply with the name of the provider that produced it.
func (m *Manager) Complete(ctx context.Context, system, user string) (string, string, error) {
	if m.primary == nil {
		return "", "", utils.NewConfigurationError("no LLM provider configured")
	}

	reply, err := m.primary.Complete(ctx, system, user)
	if err == nil {
		return reply, m.primary.Name(), nil
	}
	if utils.KindOf(err) != utils.KindRateLimit || m.fallback == nil {
		return "", m.primary.Name(), err
	}

	if healthErr := m.fallback.IsHealthy(ctx); healthErr != nil {
		m.setHealthy(m.fallback.Name(), false)
		m.logger.Warn("Alternate LLM provider unreachable, keeping rate limit error", map[string]interface{}{
			"provider": m.fallback.Name(),
			"error":    healthErr.Error(),
		})
		return "", m.primary.Name(), err
	}

	m.logger.Info("Preferred LLM provider rate limited, using alternate", map[string]interface{}{
		"preferred": m.primary.Name(),
		"alternate": m.fallback.Name(),
	})
	reply, fbErr := m.fallback.Complete(ctx, system, user)
	if fbErr != nil {
		return "", m.fallback.Name(), fbErr
	}
	return reply, m.fallback.Name(), nil
}

// CheckHealth probes the preferred provider and records the result
func (m *Manager) CheckHealth(ctx context.Context) error {
	if m.primary == nil {
		return fmt.Errorf("LLM provider not available")
	}
	err := m.primary.IsHealthy(ctx)
	m.setHealthy(m.primary.Name(), err == nil)
	return err
}

func (m *Manager) providers() []Provider {
	var out []Provider
	if m.primary != nil {
		out = append(out, m.primary)
	}
	if m.fallback != nil {
		out = append(out, m.fallback)
	}
	return out
}

func (m *Manager) setHealthy(name string, ok bool) {
	m.mu.Lock()
	m.healthy[name] = ok
	m.mu.Unlock()
}

// CleanJSON strips the markdown fences models like to wrap JSON in
func CleanJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}

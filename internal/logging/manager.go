package logging

import (
	"fmt"
	"os"
	"sync"

	"harvest-engine/internal/config"
	"harvest-engine/internal/logging/adapters"
)

// Manager owns the root logger and the adapters configured for it
type Manager struct {
	factory *AdapterFactory
	logger  *MultiLogger
}

// NewManager creates a new logging manager
func NewManager() *Manager {
	return &Manager{
		factory: NewAdapterFactory(),
		logger:  NewMultiLogger(),
	}
}

// Initialize configures level and adapters. Without an adapters list a single
// stdout adapter in logging.format is used.
func (m *Manager) Initialize(cfg *config.Config) error {
	m.logger.SetLevel(ParseLogLevel(cfg.Logging.Level))

	if len(cfg.Logging.Adapters) == 0 {
		out := os.Stdout
		if cfg.Logging.Output == "stderr" {
			out = os.Stderr
		}
		return m.logger.AddAdapter(adapters.NewStreamAdapter("stdout", out, adapters.StreamConfig{
			Format: cfg.Logging.Format,
		}))
	}

	for _, ac := range cfg.Logging.Adapters {
		if !ac.Enabled {
			continue
		}
		adapter, err := m.factory.CreateAdapter(AdapterConfig{
			Name:    ac.Name,
			Type:    ac.Type,
			Enabled: ac.Enabled,
			Options: ac.Options,
		})
		if err != nil {
			return fmt.Errorf("failed to create adapter %s: %w", ac.Name, err)
		}
		if err := m.logger.AddAdapter(adapter); err != nil {
			return fmt.Errorf("failed to add adapter %s: %w", ac.Name, err)
		}
	}
	return nil
}

// GetLogger returns the initialized logger
func (m *Manager) GetLogger() Logger {
	return m.logger
}

// Close closes the logging system
func (m *Manager) Close() error {
	return m.logger.Close()
}

var (
	globalMu      sync.Mutex
	globalManager *Manager
)

// InitializeLogging initializes the global logging system
func InitializeLogging(cfg *config.Config) error {
	manager := NewManager()
	if err := manager.Initialize(cfg); err != nil {
		return err
	}

	globalMu.Lock()
	globalManager = manager
	globalMu.Unlock()
	return nil
}

// GetGlobalLogger returns the global logger, falling back to JSON on stdout
// when InitializeLogging has not run (tests, tools).
func GetGlobalLogger() Logger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		manager := NewManager()
		_ = manager.logger.AddAdapter(adapters.NewStreamAdapter("fallback_stdout", os.Stdout, adapters.StreamConfig{Format: "json"}))
		manager.logger.SetLevel(WarnLevel)
		globalManager = manager
	}
	return globalManager.GetLogger()
}

// CloseLogging closes the global logging system
func CloseLogging() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager != nil {
		return globalManager.Close()
	}
	return nil
}

// Component returns the global logger tagged with a component name
func Component(name string) Logger {
	return GetGlobalLogger().WithField("component", name)
}

// LogWithRequestID creates a logger carrying a request id
func LogWithRequestID(requestID string) Logger {
	return GetGlobalLogger().WithField("request_id", requestID)
}

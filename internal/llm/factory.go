package llm

import (
	"fmt"

	"harvest-engine/internal/config"
	"harvest-engine/internal/llm/providers"
)

// Factory creates LLM provider instances
type Factory struct {
	config *config.Config
}

// NewFactory creates a new LLM factory instance
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{config: cfg}
}

// CreateProvider creates a provider by name
func (f *Factory) CreateProvider(name string) (Provider, error) {
	switch name {
	case "groq":
		return providers.NewGroqProvider(f.config), nil
	case "ollama":
		return providers.NewOllamaProvider(f.config), nil
	case "claude":
		return providers.NewClaudeProvider(f.config), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", name)
	}
}

// GetSupportedProviders returns a list of supported LLM providers
func (f *Factory) GetSupportedProviders() []string {
	return []string{"groq", "ollama", "claude"}
}

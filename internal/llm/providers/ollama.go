package providers

import (
	"context"
	"net/http"
	"strings"

	"harvest-engine/internal/config"
	"harvest-engine/pkg/utils"
)

// OllamaProvider talks to a local Ollama server's chat endpoint
type OllamaProvider struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	client      *http.Client
}

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   string                 `json:"format"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// NewOllamaProvider creates an Ollama provider from llm.ollama settings
func NewOllamaProvider(cfg *config.Config) *OllamaProvider {
	return &OllamaProvider{
		baseURL:     strings.TrimRight(cfg.LLM.Ollama.BaseURL, "/"),
		model:       cfg.LLM.Ollama.Model,
		maxTokens:   cfg.LLM.MaxTokens,
		temperature: cfg.LLM.Temperature,
		client:      &http.Client{Timeout: cfg.LLM.Timeout},
	}
}

func (o *OllamaProvider) Name() string { return "ollama" }

func (o *OllamaProvider) IsConfigured() bool {
	return o.baseURL != "" && o.model != ""
}

func (o *OllamaProvider) Complete(ctx context.Context, system, user string) (string, error) {
	if !o.IsConfigured() {
		return "", utils.NewConfigurationError("Ollama not configured - set OLLAMA_BASE_URL")
	}

	req := ollamaRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Format: "json",
		Options: map[string]interface{}{
			"temperature": o.temperature,
			"num_predict": o.maxTokens,
		},
	}

	var resp ollamaResponse
	if err := postJSON(ctx, o.client, o.baseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", utils.NewNetworkError(0, "Ollama error: "+resp.Error)
	}
	return resp.Message.Content, nil
}

func (o *OllamaProvider) IsHealthy(ctx context.Context) error {
	if !o.IsConfigured() {
		return utils.NewConfigurationError("Ollama not configured - set OLLAMA_BASE_URL")
	}
	return getJSON(ctx, o.client, o.baseURL+"/api/tags", nil, nil)
}

package providers

import (
	"context"
	"net/http"
	"strings"

	"harvest-engine/internal/config"
	"harvest-engine/pkg/utils"
)

// GroqProvider talks to Groq's OpenAI-compatible chat completions API
type GroqProvider struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	client      *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type groqResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGroqProvider creates a Groq provider from llm.groq settings
func NewGroqProvider(cfg *config.Config) *GroqProvider {
	return &GroqProvider{
		apiKey:      cfg.LLM.Groq.APIKey,
		baseURL:     strings.TrimRight(cfg.LLM.Groq.BaseURL, "/"),
		model:       cfg.LLM.Groq.Model,
		maxTokens:   cfg.LLM.MaxTokens,
		temperature: cfg.LLM.Temperature,
		client:      &http.Client{Timeout: cfg.LLM.Timeout},
	}
}

func (g *GroqProvider) Name() string { return "groq" }

func (g *GroqProvider) IsConfigured() bool {
	return g.apiKey != "" && g.baseURL != ""
}

func (g *GroqProvider) Complete(ctx context.Context, system, user string) (string, error) {
	if !g.IsConfigured() {
		return "", utils.NewConfigurationError("Groq API key not configured - set GROQ_API_KEY")
	}

	req := groqRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    g.temperature,
		MaxTokens:      g.maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var resp groqResponse
	if err := postJSON(ctx, g.client, g.baseURL+"/chat/completions", g.authHeader(), req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", utils.NewNetworkError(0, "Groq API error: "+resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", utils.NewParseError("no choices returned from Groq API")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *GroqProvider) IsHealthy(ctx context.Context) error {
	if !g.IsConfigured() {
		return utils.NewConfigurationError("Groq API key not configured - set GROQ_API_KEY")
	}
	return getJSON(ctx, g.client, g.baseURL+"/models", g.authHeader(), nil)
}

func (g *GroqProvider) authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + g.apiKey}
}

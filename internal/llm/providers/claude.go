package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"harvest-engine/internal/config"
	"harvest-engine/pkg/utils"
)

// ClaudeProvider implements the provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client      anthropic.Client
	apiKey      string
	model       string
	maxTokens   int
	temperature float32
}

// NewClaudeProvider creates a new Claude provider instance
func NewClaudeProvider(cfg *config.Config) *ClaudeProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.LLM.Claude.APIKey),
		option.WithRequestTimeout(cfg.LLM.Timeout),
	)

	maxTokens := cfg.LLM.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &ClaudeProvider{
		client:      client,
		apiKey:      cfg.LLM.Claude.APIKey,
		model:       cfg.LLM.Claude.Model,
		maxTokens:   maxTokens,
		temperature: cfg.LLM.Temperature,
	}
}

func (cp *ClaudeProvider) Name() string { return "claude" }

func (cp *ClaudeProvider) IsConfigured() bool {
	return cp.apiKey != ""
}

func (cp *ClaudeProvider) Complete(ctx context.Context, system, user string) (string, error) {
	if !cp.IsConfigured() {
		return "", utils.NewConfigurationError("Claude API key not configured - set ANTHROPIC_API_KEY")
	}

	response, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(cp.model),
		MaxTokens:   int64(cp.maxTokens),
		Temperature: anthropic.Float(float64(cp.temperature)),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: user},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return "", classifyClaudeError(err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", utils.NewParseError("no text content in Claude response")
	}
	return text.String(), nil
}

// IsHealthy sends a one-token request
func (cp *ClaudeProvider) IsHealthy(ctx context.Context) error {
	if !cp.IsConfigured() {
		return utils.NewConfigurationError("Claude API key not configured - set ANTHROPIC_API_KEY")
	}

	_, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(cp.model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: "ping"},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return classifyClaudeError(err)
	}
	return nil
}

func classifyClaudeError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return utils.NewRateLimitError("Claude API rate limited").WithCause(err)
		}
		return utils.NewNetworkError(apiErr.StatusCode, "Claude API call failed").WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return utils.NewTimeoutError("Claude API call timed out").WithCause(err)
	}
	return utils.NewNetworkError(0, "Claude API call failed").WithCause(err)
}

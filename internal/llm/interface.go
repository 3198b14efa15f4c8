package llm

import (
	"context"
)

// Provider is one chat-completion backend that can be asked for a JSON answer
type Provider interface {
	// Name returns the provider key used in llm.provider
	Name() string

	// Complete sends a system and a user message and returns the raw reply text
	Complete(ctx context.Context, system, user string) (string, error)

	// IsConfigured reports whether credentials or endpoints are present
	IsConfigured() bool

	// IsHealthy checks that the backend is reachable
	IsHealthy(ctx context.Context) error
}

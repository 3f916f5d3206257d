// Package oracle submits unclassified items to an external text
// generation endpoint and parses its liked/disliked partition.
package oracle

import (
	"context"
)

// Provider is the interface for oracle backends
type Provider interface {
	// Name returns the provider name (e.g., "anthropic", "ollama")
	Name() string

	// Available returns true if the provider is configured and ready
	Available() bool

	// Generate sends a prompt and returns the response
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a prompt request to an oracle backend
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// Response is the oracle backend's response
type Response struct {
	Content     string
	Model       string
	RawResponse string // The raw API response body for logging/debugging
}

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/siftnews/sift/internal/logging"
)

// AnthropicProvider implements the Provider interface for Anthropic's Claude
type AnthropicProvider struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	return &AnthropicProvider{
		apiKey:   apiKey,
		model:    model,
		endpoint: "https://api.anthropic.com/v1/messages",
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (a *AnthropicProvider) Name() string {
	return "anthropic"
}

func (a *AnthropicProvider) Available() bool {
	return a.apiKey != ""
}

func (a *AnthropicProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if !a.Available() {
		return Response{}, fmt.Errorf("anthropic provider not configured")
	}

	logging.Debug("Anthropic API request starting", "model", a.model)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	body := map[string]interface{}{
		"model":      a.model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": req.UserPrompt},
		},
	}

	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := postWithRetry(ctx, a.client, a.endpoint, map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
	}, jsonBody)
	if err != nil {
		return Response{}, err
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content"`
		Model      string `json:"model"`
		StopReason string `json:"stop_reason"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.StopReason == "max_tokens" {
		logging.Warn("Anthropic response truncated due to max tokens",
			"model", result.Model,
			"max_tokens", maxTokens)
	}

	var textParts []string
	for _, block := range result.Content {
		if block.Type == "text" && block.Text != "" {
			textParts = append(textParts, block.Text)
		}
	}
	content := strings.Join(textParts, "\n\n")

	logging.Debug("Anthropic API response parsed",
		"stop_reason", result.StopReason,
		"content_length", len(content),
		"model", result.Model)

	return Response{
		Content:     content,
		Model:       result.Model,
		RawResponse: string(respBody),
	}, nil
}


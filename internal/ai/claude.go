package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
)

const (
	defaultAnthropicBase = "https://api.anthropic.com/v1"
	anthropicVersion     = "2023-06-01"
	defaultClaudeModel   = "claude-sonnet-4-6"
)

// ClaudeProvider implements Provider using the Anthropic Messages API.
type ClaudeProvider struct {
	apiKey       string
	model        string
	baseURL      string
	maxTokens    int
	client       *http.Client
	debug        bool
	debugPrompts bool
}

// NewClaude creates a ClaudeProvider from cfg.
func NewClaude(cfg config.ProviderConfig) *ClaudeProvider {
	base := cfg.BaseURL
	if base == "" {
		base = defaultAnthropicBase
	}
	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeProvider{
		apiKey:       cfg.AnthropicKey,
		model:        model,
		baseURL:      strings.TrimRight(base, "/"),
		maxTokens:    cfg.MaxTokensOr(4096),
		client:       &http.Client{Timeout: cfg.TimeoutOr(90 * time.Second)},
		debug:        isDebug() || getLegacyDebug("claude"),
		debugPrompts: isDebugPrompts() || getLegacyDebugPrompts("claude"),
	}
}

func (c *ClaudeProvider) Name() string { return "claude" }

func (c *ClaudeProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	// #nosec G107,G704 -- baseURL is loaded from trusted local config.
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Review sends one file for review and returns the raw model response.
func (c *ClaudeProvider) Review(ctx context.Context, req ReviewRequest) (string, error) {
	system := systemPrompt(ctx)
	prompt := BuildReviewPrompt(req)
	return withRetry(ctx, c.Name(), func(ctx context.Context) (string, error) {
		return c.complete(ctx, system, prompt)
	})
}

// --- Internal ---

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ClaudeProvider) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := claudeRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Messages: []claudeMessage{
			{Role: "user", Content: userPrompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling Anthropic request: %w", err)
	}

	if c.debug {
		slog.Debug("Anthropic request",
			"model", c.model,
			"prompt_chars", len(userPrompt),
			"request_bytes", len(body),
		)
	}
	if c.debugPrompts {
		slog.Debug("Anthropic prompt", "prompt", userPrompt)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating Anthropic request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	// #nosec G107,G704 -- baseURL is loaded from trusted local config.
	resp, err := c.client.Do(req)
	if err != nil {
		return "", &TransientError{Provider: c.Name(), Err: err}
	}
	respBody, err := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if err != nil {
		return "", &TransientError{Provider: c.Name(), Err: fmt.Errorf("reading Anthropic response body: %w", err)}
	}
	if closeErr != nil {
		if c.debug {
			slog.Debug("closing Anthropic response body", "error", closeErr)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(c.Name(), resp.StatusCode, resp.Header.Get("Retry-After"), respBody)
	}

	var apiResp claudeResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", &MalformedResponseError{Provider: c.Name(), Reason: fmt.Sprintf("parsing Anthropic API response: %v", err)}
	}
	if apiResp.Error != nil {
		return "", &MalformedResponseError{Provider: c.Name(), Reason: apiResp.Error.Message}
	}
	if len(apiResp.Content) == 0 {
		return "", &MalformedResponseError{Provider: c.Name(), Reason: "response contained no content blocks"}
	}
	return strings.TrimSpace(apiResp.Content[0].Text), nil
}

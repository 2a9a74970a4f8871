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
	defaultDeepSeekBase  = "https://api.deepseek.com/v1"
	defaultDeepSeekModel = "deepseek-chat"
)

// DeepSeekProvider implements Provider using DeepSeek's OpenAI-compatible
// chat completions API.
type DeepSeekProvider struct {
	apiKey       string
	model        string
	baseURL      string
	maxTokens    int
	client       *http.Client
	debug        bool
	debugPrompts bool
}

// NewDeepSeek creates a DeepSeekProvider from cfg.
func NewDeepSeek(cfg config.ProviderConfig) *DeepSeekProvider {
	base := cfg.BaseURL
	if base == "" {
		base = defaultDeepSeekBase
	}
	model := cfg.Model
	if model == "" {
		model = defaultDeepSeekModel
	}
	return &DeepSeekProvider{
		apiKey:       cfg.DeepSeekKey,
		model:        model,
		baseURL:      strings.TrimRight(base, "/"),
		maxTokens:    cfg.MaxTokensOr(4096),
		client:       &http.Client{Timeout: cfg.TimeoutOr(120 * time.Second)},
		debug:        isDebug() || getLegacyDebug("deepseek"),
		debugPrompts: isDebugPrompts() || getLegacyDebugPrompts("deepseek"),
	}
}

func (d *DeepSeekProvider) Name() string { return "deepseek" }

func (d *DeepSeekProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	// #nosec G107,G704 -- baseURL is loaded from trusted local config.
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Review sends one file for review and returns the raw model response.
func (d *DeepSeekProvider) Review(ctx context.Context, req ReviewRequest) (string, error) {
	prompt := BuildReviewPrompt(req)
	return withRetry(ctx, d.Name(), func(ctx context.Context) (string, error) {
		return d.complete(ctx, prompt)
	})
}

// --- Internal ---

type deepseekRequest struct {
	Model     string        `json:"model"`
	Messages  []deepseekMsg `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type deepseekMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (d *DeepSeekProvider) complete(ctx context.Context, prompt string) (string, error) {
	payload := deepseekRequest{
		Model: d.model,
		Messages: []deepseekMsg{
			{Role: "system", Content: systemPrompt(ctx)},
			{Role: "user", Content: prompt},
		},
		MaxTokens: d.maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	if d.debug {
		slog.Info("DeepSeek request",
			"model", d.model,
			"max_tokens", d.maxTokens,
			"prompt_chars", len(prompt),
			"request_bytes", len(body),
		)
		if d.debugPrompts {
			slog.Info("DeepSeek prompt body", "prompt", prompt)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	// #nosec G107,G704 -- baseURL is loaded from trusted local config.
	resp, err := d.client.Do(req)
	if err != nil {
		return "", &TransientError{Provider: d.Name(), Err: err}
	}
	respBody, err := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if err != nil {
		return "", &TransientError{Provider: d.Name(), Err: fmt.Errorf("reading response body: %w", err)}
	}
	if closeErr != nil {
		slog.Debug("closing DeepSeek response body", "error", closeErr)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(d.Name(), resp.StatusCode, resp.Header.Get("Retry-After"), respBody)
	}

	var apiResp deepseekResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", &MalformedResponseError{Provider: d.Name(), Reason: fmt.Sprintf("parsing API response: %v", err)}
	}
	if apiResp.Error != nil {
		return "", &MalformedResponseError{Provider: d.Name(), Reason: apiResp.Error.Message}
	}
	if len(apiResp.Choices) == 0 {
		return "", &MalformedResponseError{Provider: d.Name(), Reason: "response contained no choices"}
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
)

const (
	defaultOpenAIBase  = "https://api.openai.com/v1"
	defaultOpenAIModel = "gpt-4o"
)

// OpenAIProvider implements Provider using the OpenAI REST API.
type OpenAIProvider struct {
	apiKey       string
	model        string
	baseURL      string
	maxTokens    int
	client       *http.Client
	debug        bool
	debugPrompts bool
}

// NewOpenAI creates an OpenAIProvider from cfg.
func NewOpenAI(cfg config.ProviderConfig) (*OpenAIProvider, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBase
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid OpenAI base URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("invalid OpenAI base URL scheme %q", u.Scheme)
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		apiKey:       cfg.OpenAIKey,
		model:        model,
		baseURL:      strings.TrimRight(base, "/"),
		maxTokens:    cfg.MaxTokensOr(4096),
		client:       &http.Client{Timeout: cfg.TimeoutOr(120 * time.Second)},
		debug:        isDebug() || getLegacyDebug("openai"),
		debugPrompts: isDebugPrompts() || getLegacyDebugPrompts("openai"),
	}, nil
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	// Probe the models endpoint.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	// #nosec G107,G704 -- baseURL is loaded from trusted local config and validated in NewOpenAI.
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Review sends one file for review and returns the raw model response.
func (o *OpenAIProvider) Review(ctx context.Context, req ReviewRequest) (string, error) {
	prompt := BuildReviewPrompt(req)
	return withRetry(ctx, o.Name(), func(ctx context.Context) (string, error) {
		return o.complete(ctx, prompt)
	})
}

// --- Internal ---

type openAIRequest struct {
	Model               string      `json:"model"`
	Messages            []openAIMsg `json:"messages"`
	MaxTokens           int         `json:"max_tokens,omitempty"`
	MaxCompletionTokens int         `json:"max_completion_tokens,omitempty"`
}

type openAIMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o *OpenAIProvider) complete(ctx context.Context, prompt string) (string, error) {
	payload := openAIRequest{
		Model: o.model,
		Messages: []openAIMsg{
			{Role: "system", Content: systemPrompt(ctx)},
			{Role: "user", Content: prompt},
		},
	}
	if usesMaxCompletionTokensParam(o.model) {
		payload.MaxCompletionTokens = o.maxTokens
	} else {
		payload.MaxTokens = o.maxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	if o.debug {
		slog.Info("OpenAI request",
			"model", o.model,
			"max_tokens", o.maxTokens,
			"prompt_chars", len(prompt),
			"request_bytes", len(body),
		)
		if o.debugPrompts {
			slog.Info("OpenAI prompt body", "prompt", prompt)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	// #nosec G107,G704 -- baseURL is loaded from trusted local config and validated in NewOpenAI.
	resp, err := o.client.Do(req)
	if err != nil {
		return "", &TransientError{Provider: o.Name(), Err: err}
	}
	respBody, err := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if err != nil {
		return "", &TransientError{Provider: o.Name(), Err: fmt.Errorf("reading response body: %w", err)}
	}
	if closeErr != nil {
		slog.Debug("closing OpenAI response body", "error", closeErr)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(o.Name(), resp.StatusCode, resp.Header.Get("Retry-After"), respBody)
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", &MalformedResponseError{Provider: o.Name(), Reason: fmt.Sprintf("parsing API response: %v", err)}
	}
	if apiResp.Error != nil {
		return "", &MalformedResponseError{Provider: o.Name(), Reason: apiResp.Error.Message}
	}
	if len(apiResp.Choices) == 0 {
		return "", &MalformedResponseError{Provider: o.Name(), Reason: "response contained no choices"}
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

// usesMaxCompletionTokensParam reports whether the model requires the newer
// max_completion_tokens parameter instead of max_tokens.
func usesMaxCompletionTokensParam(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.Contains(m, "gpt-5"):
		return true
	case strings.Contains(m, "codex"):
		return true
	case strings.HasPrefix(m, "o1"),
		strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "o4"):
		return true
	default:
		return false
	}
}

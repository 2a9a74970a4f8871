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
	azureAPIVersion        = "2024-02-01"
	defaultAzureDeployment = "gpt-4o"
)

// AzureProvider implements Provider using an Azure OpenAI deployment.
// Configure with: provider.name = "azure", plus AZURE_OPENAI_ENDPOINT and
// AZURE_OPENAI_KEY in the environment. provider.model names the deployment.
type AzureProvider struct {
	endpoint     string
	apiKey       string
	deployment   string
	maxTokens    int
	client       *http.Client
	debug        bool
	debugPrompts bool
}

// NewAzure creates an AzureProvider from cfg.
func NewAzure(cfg config.ProviderConfig) (*AzureProvider, error) {
	endpoint := strings.TrimRight(cfg.AzureEndpoint, "/")
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid Azure OpenAI endpoint: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("invalid Azure OpenAI endpoint scheme %q", u.Scheme)
	}
	deployment := cfg.Model
	if deployment == "" {
		deployment = defaultAzureDeployment
	}
	return &AzureProvider{
		endpoint:     endpoint,
		apiKey:       cfg.AzureKey,
		deployment:   deployment,
		maxTokens:    cfg.MaxTokensOr(4096),
		client:       &http.Client{Timeout: cfg.TimeoutOr(120 * time.Second)},
		debug:        isDebug() || getLegacyDebug("azure"),
		debugPrompts: isDebugPrompts() || getLegacyDebugPrompts("azure"),
	}, nil
}

func (a *AzureProvider) Name() string { return "azure" }

func (a *AzureProvider) IsAvailable(ctx context.Context) bool {
	// Probe the deployments endpoint.
	probe := fmt.Sprintf("%s/openai/deployments?api-version=%s", a.endpoint, azureAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe, nil)
	if err != nil {
		return false
	}
	req.Header.Set("api-key", a.apiKey)
	// #nosec G107,G704 -- endpoint is loaded from trusted local config and validated in NewAzure.
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Review sends one file for review and returns the raw model response.
func (a *AzureProvider) Review(ctx context.Context, req ReviewRequest) (string, error) {
	prompt := BuildReviewPrompt(req)
	return withRetry(ctx, a.Name(), func(ctx context.Context) (string, error) {
		return a.complete(ctx, prompt)
	})
}

// --- Internal ---

// Azure routes by deployment in the URL, so the payload carries no model
// field.
type azureRequest struct {
	Messages  []azureMsg `json:"messages"`
	MaxTokens int        `json:"max_tokens,omitempty"`
}

type azureMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type azureResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *AzureProvider) complete(ctx context.Context, prompt string) (string, error) {
	payload := azureRequest{
		Messages: []azureMsg{
			{Role: "system", Content: systemPrompt(ctx)},
			{Role: "user", Content: prompt},
		},
		MaxTokens: a.maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	if a.debug {
		slog.Info("Azure OpenAI request",
			"deployment", a.deployment,
			"max_tokens", a.maxTokens,
			"prompt_chars", len(prompt),
			"request_bytes", len(body),
		)
		if a.debugPrompts {
			slog.Info("Azure OpenAI prompt body", "prompt", prompt)
		}
	}

	completions := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		a.endpoint, url.PathEscape(a.deployment), azureAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, completions, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("api-key", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	// #nosec G107,G704 -- endpoint is loaded from trusted local config and validated in NewAzure.
	resp, err := a.client.Do(req)
	if err != nil {
		return "", &TransientError{Provider: a.Name(), Err: err}
	}
	respBody, err := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if err != nil {
		return "", &TransientError{Provider: a.Name(), Err: fmt.Errorf("reading response body: %w", err)}
	}
	if closeErr != nil {
		slog.Debug("closing Azure OpenAI response body", "error", closeErr)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(a.Name(), resp.StatusCode, resp.Header.Get("Retry-After"), respBody)
	}

	var apiResp azureResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", &MalformedResponseError{Provider: a.Name(), Reason: fmt.Sprintf("parsing API response: %v", err)}
	}
	if apiResp.Error != nil {
		return "", &MalformedResponseError{Provider: a.Name(), Reason: apiResp.Error.Message}
	}
	if len(apiResp.Choices) == 0 {
		return "", &MalformedResponseError{Provider: a.Name(), Reason: "response contained no choices"}
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

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
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

// LocalProvider implements Provider using a local Ollama server.
// Configure with: provider.name = "local", provider.ollama_url =
// "http://localhost:11434" (or the OLLAMA_HOST environment variable).
type LocalProvider struct {
	baseURL      string
	model        string
	client       *http.Client
	debug        bool
	debugPrompts bool
}

// NewLocal creates a LocalProvider from cfg.
func NewLocal(cfg config.ProviderConfig) *LocalProvider {
	base := cfg.OllamaURL
	if base == "" {
		base = defaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	return &LocalProvider{
		baseURL:      strings.TrimRight(base, "/"),
		model:        model,
		client:       &http.Client{Timeout: cfg.TimeoutOr(180 * time.Second)},
		debug:        isDebug() || getLegacyDebug("local"),
		debugPrompts: isDebugPrompts() || getLegacyDebugPrompts("local"),
	}
}

func (l *LocalProvider) Name() string { return "local" }

func (l *LocalProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Review sends one file for review and returns the raw model response.
func (l *LocalProvider) Review(ctx context.Context, req ReviewRequest) (string, error) {
	system := systemPrompt(ctx)
	prompt := BuildReviewPrompt(req)
	return withRetry(ctx, l.Name(), func(ctx context.Context) (string, error) {
		return l.complete(ctx, system, prompt)
	})
}

// --- Internal ---

type ollamaRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (l *LocalProvider) complete(ctx context.Context, system, prompt string) (string, error) {
	payload := ollamaRequest{
		Model:  l.model,
		System: system,
		Prompt: prompt,
		Stream: false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalling ollama request: %w", err)
	}
	if l.debug {
		slog.Info("Ollama request",
			"model", l.model,
			"prompt_chars", len(prompt),
			"request_bytes", len(body),
			"base_url", l.baseURL,
		)
		if l.debugPrompts {
			slog.Info("Ollama prompt body", "prompt", prompt)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		l.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", &TransientError{Provider: l.Name(), Err: fmt.Errorf("calling Ollama API: %w", err)}
	}
	data, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return "", &TransientError{Provider: l.Name(), Err: fmt.Errorf("reading Ollama response: %w", readErr)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(l.Name(), resp.StatusCode, resp.Header.Get("Retry-After"), data)
	}

	var apiResp ollamaResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return "", &MalformedResponseError{Provider: l.Name(), Reason: fmt.Sprintf("parsing Ollama response: %v", err)}
	}
	return strings.TrimSpace(apiResp.Response), nil
}

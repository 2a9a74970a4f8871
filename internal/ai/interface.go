package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/models"
)

// Provider abstracts calls to a language model that reviews code.
// To add a new provider:
//  1. Create a file in internal/ai/ (e.g. mymodel.go)
//  2. Implement Provider
//  3. Register in New()
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "local").
	Name() string

	// IsAvailable verifies the provider is reachable and configured.
	IsAvailable(ctx context.Context) bool

	// Review sends one file for review and returns the raw model response.
	Review(ctx context.Context, req ReviewRequest) (string, error)
}

// ReviewRequest carries everything the model needs to review a single file.
type ReviewRequest struct {
	// FilePath is the path shown to the model and used in patch headers.
	FilePath string
	// FileContent is the full text of the file under review.
	FileContent string
	// Findings holds static-analyzer results for this file, possibly empty.
	Findings []models.Finding
	// Language is the response language code ("en", "pt-BR", "es").
	Language string
	// IncludeFixes asks the model for patch suggestions in its response.
	IncludeFixes bool
}

// New returns the Provider selected by cfg.Name. Credentials and endpoints
// are validated here, before anything touches the network, so a
// misconfigured provider fails at startup instead of mid-session.
func New(cfg config.ProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", "openai":
		if cfg.OpenAIKey == "" {
			return nil, &config.Error{Key: "provider.name", Reason: "openai selected but OPENAI_API_KEY is not set"}
		}
		return NewOpenAI(cfg)
	case "azure":
		if cfg.AzureEndpoint == "" {
			return nil, &config.Error{Key: "provider.name", Reason: "azure selected but AZURE_OPENAI_ENDPOINT is not set"}
		}
		if cfg.AzureKey == "" {
			return nil, &config.Error{Key: "provider.name", Reason: "azure selected but AZURE_OPENAI_KEY is not set"}
		}
		return NewAzure(cfg)
	case "claude":
		if cfg.AnthropicKey == "" {
			return nil, &config.Error{Key: "provider.name", Reason: "claude selected but ANTHROPIC_API_KEY is not set"}
		}
		return NewClaude(cfg), nil
	case "deepseek":
		if cfg.DeepSeekKey == "" {
			return nil, &config.Error{Key: "provider.name", Reason: "deepseek selected but DEEPSEEK_API_KEY is not set"}
		}
		return NewDeepSeek(cfg), nil
	case "local", "ollama":
		return NewLocal(cfg), nil
	default:
		return nil, &config.Error{
			Key:    "provider.name",
			Reason: fmt.Sprintf("unknown provider %q (expected openai, azure, claude, deepseek, or local)", cfg.Name),
		}
	}
}

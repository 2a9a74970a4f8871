package config

import "time"

// Config is the root configuration structure for ctrlreview.
// Serialised to ~/.ctrlreview/config.yaml.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Output   OutputConfig   `mapstructure:"output"   yaml:"output"`
	Review   ReviewConfig   `mapstructure:"review"   yaml:"review"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Git      GitConfig      `mapstructure:"git"      yaml:"git"`
	Notify   NotifyConfig   `mapstructure:"notify"   yaml:"notify,omitempty"`
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"`
}

// ProviderConfig selects and parameterises the LLM provider.
type ProviderConfig struct {
	// Name is "openai" (default), "azure", "claude", "deepseek", or "local".
	Name  string `mapstructure:"name"  yaml:"name"`
	Model string `mapstructure:"model" yaml:"model"`
	// BaseURL overrides the API endpoint (useful for proxies).
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	// OllamaURL is used when Name == "local". The OLLAMA_HOST environment
	// variable takes precedence.
	OllamaURL string `mapstructure:"ollama_url" yaml:"ollama_url,omitempty"`
	// AzureEndpoint is used when Name == "azure". The AZURE_OPENAI_ENDPOINT
	// environment variable takes precedence.
	AzureEndpoint string `mapstructure:"azure_endpoint" yaml:"azure_endpoint,omitempty"`
	// TimeoutSeconds bounds a single provider call. 0 = provider default.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds,omitempty"`
	// MaxTokens caps the completion size. 0 = provider default.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	// UseAzure is the legacy toggle form of Name == "azure". Setting it
	// together with a different Name is a configuration error.
	UseAzure bool `mapstructure:"use_azure" yaml:"use_azure,omitempty"`

	// Credentials come only from the environment, never from the file.
	OpenAIKey    string `mapstructure:"-" yaml:"-"`
	AzureKey     string `mapstructure:"-" yaml:"-"`
	AnthropicKey string `mapstructure:"-" yaml:"-"`
	DeepSeekKey  string `mapstructure:"-" yaml:"-"`
}

// TimeoutOr returns the configured provider-call timeout, or fallback when
// unset.
func (p ProviderConfig) TimeoutOr(fallback time.Duration) time.Duration {
	if p.TimeoutSeconds <= 0 {
		return fallback
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// MaxTokensOr returns the configured completion cap, or fallback when unset.
func (p ProviderConfig) MaxTokensOr(fallback int) int {
	if p.MaxTokens <= 0 {
		return fallback
	}
	return p.MaxTokens
}

// AnalysisConfig controls the static analyzer stage.
type AnalysisConfig struct {
	// IgnorePatterns are glob patterns excluded from review.
	IgnorePatterns []string `mapstructure:"ignore_patterns" yaml:"ignore_patterns,omitempty"`
	// PylintConfig is a pylintrc path handed to the analyzer.
	PylintConfig string `mapstructure:"pylint_config" yaml:"pylint_config,omitempty"`
}

// OutputConfig controls rendering of results.
type OutputConfig struct {
	// Language is the response language: "en" (default), "pt-BR", or "es".
	Language string `mapstructure:"language" yaml:"language"`
	// HumanReadable enables styled terminal output instead of plain text.
	HumanReadable bool `mapstructure:"human_readable" yaml:"human_readable"`
}

// ReviewConfig controls the session orchestrator.
type ReviewConfig struct {
	// Workers is the number of files reviewed in parallel.
	Workers int `mapstructure:"workers" yaml:"workers"`
	// Profile names the active review guideline profile.
	Profile string `mapstructure:"profile" yaml:"profile,omitempty"`
	// ProfilesDir overrides ~/.ctrlreview/profiles.
	ProfilesDir string `mapstructure:"profiles_dir" yaml:"profiles_dir,omitempty"`
}

// DatabaseConfig controls the session history backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   yaml:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    yaml:"dsn,omitempty"`
}

// GitConfig holds hosting-platform settings. Tokens come from the
// environment (GITHUB_TOKEN, GITLAB_TOKEN).
type GitConfig struct {
	// GitHubHost allows enterprise GitHub (e.g. github.mycompany.com).
	GitHubHost string `mapstructure:"github_host" yaml:"github_host,omitempty"`
	// GitLabHost allows self-managed GitLab.
	GitLabHost string `mapstructure:"gitlab_host" yaml:"gitlab_host,omitempty"`
	// CloneDir is where review-pr checks out PR heads (expanded at runtime).
	CloneDir string `mapstructure:"clone_dir" yaml:"clone_dir,omitempty"`

	GitHubToken string `mapstructure:"-" yaml:"-"`
	GitLabToken string `mapstructure:"-" yaml:"-"`
}

// NotifyConfig controls session notifications.
type NotifyConfig struct {
	// Events lists which event types are sent. Empty = defaults
	// (session_failed, fixes_applied).
	Events   []string             `mapstructure:"events"   yaml:"events,omitempty"`
	Slack    SlackNotifyConfig    `mapstructure:"slack"    yaml:"slack,omitempty"`
	Telegram TelegramNotifyConfig `mapstructure:"telegram" yaml:"telegram,omitempty"`
	Email    EmailNotifyConfig    `mapstructure:"email"    yaml:"email,omitempty"`
	Webhook  WebhookNotifyConfig  `mapstructure:"webhook"  yaml:"webhook,omitempty"`
}

// SlackNotifyConfig configures the Slack incoming-webhook channel.
type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url,omitempty"`
}

// TelegramNotifyConfig configures the Telegram bot channel.
type TelegramNotifyConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"bot_token,omitempty"`
	ChatID   string `mapstructure:"chat_id"   yaml:"chat_id,omitempty"`
}

// EmailNotifyConfig configures the SMTP channel.
type EmailNotifyConfig struct {
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host,omitempty"`
	SMTPPort int    `mapstructure:"smtp_port" yaml:"smtp_port,omitempty"`
	From     string `mapstructure:"from"      yaml:"from,omitempty"`
	To       string `mapstructure:"to"        yaml:"to,omitempty"`
	Username string `mapstructure:"username"  yaml:"username,omitempty"`
	Password string `mapstructure:"password"  yaml:"password,omitempty"`
	UseTLS   bool   `mapstructure:"use_tls"   yaml:"use_tls,omitempty"`
}

// WebhookNotifyConfig configures the generic HTTP webhook channel.
type WebhookNotifyConfig struct {
	URL    string `mapstructure:"url"    yaml:"url,omitempty"`
	Secret string `mapstructure:"secret" yaml:"secret,omitempty"`
}

// ServerConfig controls serve mode.
type ServerConfig struct {
	// Addr is the listen address (default "127.0.0.1:6180").
	Addr string `mapstructure:"addr" yaml:"addr"`
	// WebhookSecret validates incoming GitHub webhook signatures.
	WebhookSecret string `mapstructure:"webhook_secret" yaml:"webhook_secret,omitempty"`
	// Schedules are cron-driven review jobs.
	Schedules []ScheduleConfig `mapstructure:"schedules" yaml:"schedules,omitempty"`
}

// ScheduleConfig is one cron-driven review job.
type ScheduleConfig struct {
	// Cron is a standard 5-field cron expression.
	Cron string `mapstructure:"cron" yaml:"cron"`
	// Paths are the files or directories to review.
	Paths []string `mapstructure:"paths" yaml:"paths"`
	// Profile optionally overrides review.profile for this job.
	Profile string `mapstructure:"profile" yaml:"profile,omitempty"`
}

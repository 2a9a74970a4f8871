package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

const (
	DefaultConfigDir  = ".ctrlreview"
	DefaultConfigFile = "config.yaml"
	DefaultDBFile     = ".ctrlreview/ctrlreview.db"

	defaultWorkers = 4
)

// Load reads the config file and the environment and returns a validated
// Config. The configPath flag may override the default location
// (~/.ctrlreview/config.yaml).
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CTRLREVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file exists but is malformed.
			if !isNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
		// No config file yet — defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg, home)
	loadCredentials(&cfg)
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to disk as YAML. Credentials are never written;
// they live only in the environment.
func Save(cfg *Config, configPath string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if configPath == "" {
		configPath = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(configPath, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// EnsureDir creates ~/.ctrlreview if it doesn't exist.
func EnsureDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, DefaultConfigDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// loadCredentials pulls secrets and credential-adjacent endpoints from the
// environment. Keys never live in the config file.
func loadCredentials(cfg *Config) {
	cfg.Provider.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Provider.AzureKey = os.Getenv("AZURE_OPENAI_KEY")
	cfg.Provider.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.Provider.DeepSeekKey = os.Getenv("DEEPSEEK_API_KEY")
	if ep := os.Getenv("AZURE_OPENAI_ENDPOINT"); ep != "" {
		cfg.Provider.AzureEndpoint = ep
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		cfg.Provider.OllamaURL = host
	}
	cfg.Git.GitHubToken = os.Getenv("GITHUB_TOKEN")
	cfg.Git.GitLabToken = os.Getenv("GITLAB_TOKEN")
}

// normalize resolves legacy settings and validates enumerated values.
func normalize(cfg *Config) error {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider.Name))
	if cfg.Provider.UseAzure {
		switch name {
		case "", "azure":
			name = "azure"
		default:
			return &Error{
				Key:    "provider.use_azure",
				Reason: fmt.Sprintf("use_azure conflicts with provider.name %q; set provider.name to \"azure\" instead", cfg.Provider.Name),
			}
		}
	}
	cfg.Provider.Name = name

	switch strings.ToLower(strings.TrimSpace(cfg.Output.Language)) {
	case "", "en":
		cfg.Output.Language = "en"
	case "pt-br":
		cfg.Output.Language = "pt-BR"
	case "es":
		cfg.Output.Language = "es"
	default:
		return &Error{
			Key:    "output.language",
			Reason: fmt.Sprintf("unsupported language %q (expected en, pt-BR, or es)", cfg.Output.Language),
		}
	}

	if cfg.Review.Workers <= 0 {
		cfg.Review.Workers = defaultWorkers
	}
	return nil
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("provider.name", "")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.ollama_url", "http://localhost:11434")
	v.SetDefault("provider.timeout_seconds", 120)

	v.SetDefault("analysis.ignore_patterns", []string{})
	v.SetDefault("analysis.pylint_config", "")

	v.SetDefault("output.language", "en")
	v.SetDefault("output.human_readable", false)

	v.SetDefault("review.workers", defaultWorkers)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")

	v.SetDefault("server.addr", "127.0.0.1:6180")
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
	cfg.Analysis.PylintConfig = expandHome(cfg.Analysis.PylintConfig, home)
	cfg.Review.ProfilesDir = expandHome(cfg.Review.ProfilesDir, home)
	cfg.Git.CloneDir = expandHome(cfg.Git.CloneDir, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}

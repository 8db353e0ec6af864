package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Embedding EmbeddingConfig
	Sources   SourcesConfig
	Storage   StorageConfig
	Matching  MatchingConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           int
	AllowedOrigins []string
	RateLimit      int // requests per minute per IP; 0 disables limiting
}

type AuthConfig struct {
	JWTSecret string
}

type EmbeddingConfig struct {
	Provider string // "openai" or "ollama"
	BaseURL  string
	Model    string
	APIKey   string
}

// SourcesConfig names the two streaming services a profile merges across.
type SourcesConfig struct {
	Primary   string
	Secondary string
}

type StorageConfig struct {
	DataDir string
}

type MatchingConfig struct {
	MaxK int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           5001,
			AllowedOrigins: []string{"*"},
			RateLimit:      120,
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOpenAI,
		},
		Sources: SourcesConfig{
			Primary:   "netflix",
			Secondary: "prime",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Matching: MatchingConfig{
			MaxK: 50,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// RecognizedSources returns the two service types accepted in submissions.
func (c Config) RecognizedSources() []string {
	return []string{c.Sources.Primary, c.Sources.Secondary}
}

// Load reads configuration in ascending precedence: defaults, the JSON file
// at $XDG_CONFIG_HOME/tastetwin/config.json, then TASTETWIN_* environment
// variables. A .env file in the working directory is loaded first so local
// development can keep secrets out of the shell profile.
//
// Secrets (the JWT signing secret and the embedding API key) are accepted
// from the environment only, never from the config file.
func Load() (Config, error) {
	godotenv.Load()
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("missing required config: JWT signing secret. Set it via environment variable TASTETWIN_JWT_SECRET")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("TASTETWIN_JWT_SECRET must be at least 32 bytes, got %d", len(c.Auth.JWTSecret))
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI:
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("missing required config: OpenAI API key. Set it via environment variable TASTETWIN_EMBEDDING_API_KEY")
		}
	case ProviderOllama:
		// No credentials needed for a local Ollama daemon.
	default:
		return fmt.Errorf("unknown embedding provider %q, want %q or %q", c.Embedding.Provider, ProviderOpenAI, ProviderOllama)
	}
	if c.Sources.Primary == "" || c.Sources.Secondary == "" {
		return fmt.Errorf("both source names must be non-empty")
	}
	if strings.EqualFold(c.Sources.Primary, c.Sources.Secondary) {
		return fmt.Errorf("sources must be two distinct services, got %q twice", c.Sources.Primary)
	}
	if c.Matching.MaxK < 1 {
		return fmt.Errorf("matching.max_k must be at least 1, got %d", c.Matching.MaxK)
	}
	return nil
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "TASTETWIN_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.allowed_origins", typ: kString, env: "TASTETWIN_SERVER_ALLOWED_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.AllowedOrigins = splitOrigins(v.(string)) },
		extract: func(cfg Config) any { return cfg.Server.AllowedOrigins },
	},
	{
		key: "server.rate_limit", typ: kInt, env: "TASTETWIN_SERVER_RATE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Server.RateLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.RateLimit },
	},
	{
		key: "auth.jwt_secret", typ: kString, env: "TASTETWIN_JWT_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Auth.JWTSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.JWTSecret },
	},
	{
		key: "embedding.provider", typ: kString, env: "TASTETWIN_EMBEDDING_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Embedding.Provider },
	},
	{
		key: "embedding.base_url", typ: kString, env: "TASTETWIN_EMBEDDING_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Embedding.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Embedding.BaseURL },
	},
	{
		key: "embedding.model", typ: kString, env: "TASTETWIN_EMBEDDING_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Embedding.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Embedding.Model },
	},
	{
		key: "embedding.api_key", typ: kString, env: "TASTETWIN_EMBEDDING_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Embedding.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Embedding.APIKey },
	},
	{
		key: "sources.primary", typ: kString, env: "TASTETWIN_SOURCES_PRIMARY",
		apply:   func(cfg *Config, v any) { cfg.Sources.Primary = v.(string) },
		extract: func(cfg Config) any { return cfg.Sources.Primary },
	},
	{
		key: "sources.secondary", typ: kString, env: "TASTETWIN_SOURCES_SECONDARY",
		apply:   func(cfg *Config, v any) { cfg.Sources.Secondary = v.(string) },
		extract: func(cfg Config) any { return cfg.Sources.Secondary },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TASTETWIN_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "matching.max_k", typ: kInt, env: "TASTETWIN_MATCHING_MAX_K",
		apply:   func(cfg *Config, v any) { cfg.Matching.MaxK = v.(int) },
		extract: func(cfg Config) any { return cfg.Matching.MaxK },
	},
	{
		key: "log.level", typ: kString, env: "TASTETWIN_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

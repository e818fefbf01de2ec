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
	kBool
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
		key: "server.port", typ: kInt, env: "ENGRAM_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "llm.api_key", typ: kString, env: "ENGRAM_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.model", typ: kString, env: "ENGRAM_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ENGRAM_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.vault_path", typ: kString, env: "ENGRAM_STORAGE_VAULT_PATH",
		apply:   func(cfg *Config, v any) { cfg.Storage.VaultPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.VaultPath },
	},
	{
		key: "storage.git_enabled", typ: kBool, env: "ENGRAM_STORAGE_GIT_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Storage.GitEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Storage.GitEnabled },
	},
	{
		key: "storage.git_user_name", typ: kString, env: "ENGRAM_STORAGE_GIT_USER_NAME",
		apply:   func(cfg *Config, v any) { cfg.Storage.GitUserName = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.GitUserName },
	},
	{
		key: "storage.git_user_email", typ: kString, env: "ENGRAM_STORAGE_GIT_USER_EMAIL",
		apply:   func(cfg *Config, v any) { cfg.Storage.GitUserEmail = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.GitUserEmail },
	},
	{
		key: "capture.inbox_ttl_days", typ: kInt, env: "ENGRAM_CAPTURE_INBOX_TTL_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Capture.InboxTTLDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Capture.InboxTTLDays },
	},
	{
		key: "capture.sweep_interval", typ: kString, env: "ENGRAM_CAPTURE_SWEEP_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Capture.SweepInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Capture.SweepInterval },
	},
	{
		key: "capture.max_content_chars", typ: kInt, env: "ENGRAM_CAPTURE_MAX_CONTENT_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Capture.MaxContentChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Capture.MaxContentChars },
	},
	{
		key: "log.level", typ: kString, env: "ENGRAM_LOG_LEVEL",
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
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
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
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Storage StorageConfig
	Capture CaptureConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type LLMConfig struct {
	APIKey string
	Model  string
}

type StorageConfig struct {
	DataDir      string
	VaultPath    string
	GitEnabled   bool
	GitUserName  string
	GitUserEmail string
}

type CaptureConfig struct {
	InboxTTLDays    int
	SweepInterval   string
	MaxContentChars int
}

type LogConfig struct {
	Level string
}

// InboxTTL returns the provisional-item lifetime as a duration.
func (c CaptureConfig) InboxTTL() time.Duration {
	days := c.InboxTTLDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// SweepIntervalDuration parses the sweep interval, falling back to one
// hour on an empty or malformed value.
func (c CaptureConfig) SweepIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		LLM: LLMConfig{
			Model: "anthropic/claude-sonnet-4",
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			VaultPath:    defaultVaultPath(dataDir),
			GitUserName:  "engram",
			GitUserEmail: "engram@localhost",
		},
		Capture: CaptureConfig{
			InboxTTLDays:    7,
			SweepInterval:   "1h",
			MaxContentChars: 8000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.engram.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/engram/config.json
// and secrets live in a mode-0600 secrets file.
//
// Environment variables (ENGRAM_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

// Keychain abstracts the platform secret store.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b ConfigBackend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform keychain for the API key if still empty.
	if cfg.LLM.APIKey == "" {
		if key, err := kc.Get(keychainService, "openrouter_api_key"); err == nil && key != "" {
			cfg.LLM.APIKey = key
		}
	}

	if cfg.LLM.APIKey == "" {
		msg := "missing required config: OpenRouter API key. " +
			"Set it via environment variable ENGRAM_OPENROUTER_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

const keychainService = "engram"

// NewKeychain returns the platform secret store.
func NewKeychain() Keychain { return keychainReader{} }

// keychainReader reads and writes platform secrets.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (keychainReader) Set(service, account, value string) error {
	return keychainSetExec(service, account, value)
}

package config

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

// mockBackend is an in-memory ConfigBackend.
type mockBackend struct {
	data map[string]string
}

func (m *mockBackend) GetString(key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(v)
	return i, true, err
}

func (m *mockBackend) SetString(key, val string) error { m.data[key] = val; return nil }
func (m *mockBackend) SetInt(key string, val int) error {
	m.data[key] = strconv.Itoa(val)
	return nil
}
func (m *mockBackend) Delete(key string) error { delete(m.data, key); return nil }

// mockKeychain is a test double for the platform secret store.
type mockKeychain struct {
	data map[string]string
	err  error
}

func (m *mockKeychain) Get(service, account string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.data[service+"/"+account], nil
}

func (m *mockKeychain) Set(service, account, value string) error {
	if m.err != nil {
		return m.err
	}
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.data[service+"/"+account] = value
	return nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
	}
	t.Setenv("ENGRAM_API_TOKEN", "")
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGRAM_OPENROUTER_API_KEY", "test-key")

	cfg, err := loadWith(&mockBackend{data: map[string]string{}}, &mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.LLM.Model != "anthropic/claude-sonnet-4" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Capture.InboxTTLDays != 7 {
		t.Errorf("Capture.InboxTTLDays = %d, want 7", cfg.Capture.InboxTTLDays)
	}
	if cfg.Capture.MaxContentChars != 8000 {
		t.Errorf("Capture.MaxContentChars = %d, want 8000", cfg.Capture.MaxContentChars)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Storage.VaultPath == "" {
		t.Error("Storage.VaultPath not defaulted")
	}
}

func TestBackendValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGRAM_OPENROUTER_API_KEY", "test-key")

	b := &mockBackend{data: map[string]string{
		"server.port":            "5100",
		"llm.model":              "openai/gpt-4o",
		"storage.vault_path":     "/tmp/vault",
		"storage.git_enabled":    "true",
		"capture.inbox_ttl_days": "3",
		"capture.sweep_interval": "30m",
	}}

	cfg, err := loadWith(b, &mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5100 {
		t.Errorf("Server.Port = %d, want 5100", cfg.Server.Port)
	}
	if cfg.LLM.Model != "openai/gpt-4o" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Storage.VaultPath != "/tmp/vault" {
		t.Errorf("Storage.VaultPath = %q", cfg.Storage.VaultPath)
	}
	if !cfg.Storage.GitEnabled {
		t.Error("Storage.GitEnabled not applied")
	}
	if cfg.Capture.InboxTTL() != 3*24*time.Hour {
		t.Errorf("InboxTTL = %v", cfg.Capture.InboxTTL())
	}
	if cfg.Capture.SweepIntervalDuration() != 30*time.Minute {
		t.Errorf("SweepIntervalDuration = %v", cfg.Capture.SweepIntervalDuration())
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGRAM_OPENROUTER_API_KEY", "env-key")
	t.Setenv("ENGRAM_SERVER_PORT", "6000")

	b := &mockBackend{data: map[string]string{"server.port": "5100"}}
	cfg, err := loadWith(b, &mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("LLM.APIKey = %q, want env-key", cfg.LLM.APIKey)
	}
}

func TestMissingAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := loadWith(&mockBackend{data: map[string]string{}}, &mockKeychain{})
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestKeychainFallback(t *testing.T) {
	clearEnv(t)

	kc := &mockKeychain{data: map[string]string{"engram/openrouter_api_key": "keychain-secret"}}
	cfg, err := loadWith(&mockBackend{data: map[string]string{}}, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "keychain-secret" {
		t.Errorf("LLM.APIKey = %q", cfg.LLM.APIKey)
	}
}

func TestMalformedBoolFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGRAM_OPENROUTER_API_KEY", "test-key")

	b := &mockBackend{data: map[string]string{"storage.git_enabled": "not-a-bool"}}
	cfg, err := loadWith(b, &mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.GitEnabled {
		t.Error("malformed bool applied")
	}
}

func TestSweepIntervalFallback(t *testing.T) {
	c := CaptureConfig{SweepInterval: "garbage"}
	if c.SweepIntervalDuration() != time.Hour {
		t.Errorf("SweepIntervalDuration = %v, want 1h", c.SweepIntervalDuration())
	}
}

func TestGetAPIToken(t *testing.T) {
	clearEnv(t)

	kc := &mockKeychain{}
	token, err := GetAPIToken(kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(token))
	}

	// A second call returns the stored token, not a new one.
	again, err := GetAPIToken(kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != token {
		t.Error("token not stable across calls")
	}

	t.Setenv("ENGRAM_API_TOKEN", "explicit")
	explicit, err := GetAPIToken(kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if explicit != "explicit" {
		t.Errorf("env token not preferred: %q", explicit)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.LLM.APIKey = "super-secret"

	for _, info := range ShowAll(cfg) {
		if info.Key == "llm.api_key" {
			t.Fatal("secret key listed in ShowAll")
		}
		if info.Value == "super-secret" {
			t.Fatal("secret value leaked in ShowAll")
		}
	}
}

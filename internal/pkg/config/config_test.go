package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsAndValues(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  chat_id: -1001534658039
betting:
  username: punter
  password: secret
engine:
  step_timeout: 30s
http:
  port: 8090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.ChatID != -1001534658039 {
		t.Errorf("chat_id = %d", cfg.Telegram.ChatID)
	}
	if cfg.Engine.StepTimeout != 30*time.Second {
		t.Errorf("step_timeout = %v, want 30s", cfg.Engine.StepTimeout)
	}
	if cfg.Engine.Decider != "static" {
		t.Errorf("decider default = %q, want static", cfg.Engine.Decider)
	}
	if cfg.History.Backend != "file" || cfg.History.Path != "bet_history.json" {
		t.Errorf("history defaults = %+v", cfg.History)
	}
	if cfg.Telegram.UpdateTimeout != 60 {
		t.Errorf("update_timeout default = %d, want 60", cfg.Telegram.UpdateTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("BETTING_PASSWORD", "env-pass")
	path := writeConfig(t, "telegram:\n  token: file-token\n  chat_id: 1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("token = %q, want env-token", cfg.Telegram.Token)
	}
	if cfg.Betting.Password != "env-pass" {
		t.Errorf("password = %q, want env-pass", cfg.Betting.Password)
	}
}

func TestValidate_Errors(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Engine.Decider = "browser"
	cfg.History.Backend = "postgres"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"telegram.token", "telegram.chat_id", "engine.browser.base_url", "postgres.dsn"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err.Error(), want)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T) string {
	t.Helper()
	content := `bidflow:
  name: "TestApp"
  version: "1.0"
channels:
  order_buffer: 1
  decision_buffer: 1
poller:
  interval_ms: 1000
source:
  haha:
    enabled: true
    url: "https://example.com/api/Synchro/pcToList"
    token: "tok"
  mahua:
    enabled: false
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Bidflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Bidflow.Name)
	}
	if cfg.Source.Haha.URL != "https://example.com/api/Synchro/pcToList" {
		t.Errorf("unexpected haha url: %s", cfg.Source.Haha.URL)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Dedup.WindowSize != 500 {
		t.Errorf("unexpected dedup window: %d", cfg.Dedup.WindowSize)
	}
	if cfg.Source.Haha.Timeout != 10*time.Second {
		t.Errorf("unexpected haha timeout: %v", cfg.Source.Haha.Timeout)
	}
	if cfg.Source.Mahua.TokenTTL != 30*time.Minute {
		t.Errorf("unexpected token ttl: %v", cfg.Source.Mahua.TokenTTL)
	}
	if cfg.Source.Haha.Limit != 200 {
		t.Errorf("unexpected haha limit: %d", cfg.Source.Haha.Limit)
	}
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	t.Setenv("TEST_HAHA_TOKEN", "from-env")
	content := `bidflow:
  name: "TestApp"
  version: "1.0"
source:
  haha:
    enabled: true
    url: "https://example.com/list"
    token: "${TEST_HAHA_TOKEN}"
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	defer os.Remove(f.Name())

	cfg, err := LoadConfig(f.Name())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Source.Haha.Token != "from-env" {
		t.Errorf("env expansion failed: %s", cfg.Source.Haha.Token)
	}
}

func TestLoadConfigMissingCredentials(t *testing.T) {
	content := `bidflow:
  name: "TestApp"
  version: "1.0"
source:
  mahua:
    enabled: true
    login_url: "https://example.com/login"
    order_list_url: "https://example.com/list"
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	defer os.Remove(f.Name())

	if _, err := LoadConfig(f.Name()); err == nil {
		t.Fatal("expected validation error for missing mahua credentials")
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	envPaths := map[string]string{
		"production": "config/config.production.yml",
	}
	got := ResolvePath("", "config/config.yml", envPaths)
	if got != "config/config.production.yml" {
		t.Errorf("unexpected path: %s", got)
	}
	// explicit path wins
	got = ResolvePath("custom.yml", "config/config.yml", envPaths)
	if got != "custom.yml" {
		t.Errorf("explicit path overridden: %s", got)
	}
}

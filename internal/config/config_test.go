package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
source:
  base_url: "https://store.example.com"
  api_key: "key"
  page_limit: 50
  request_timeout: "10s"
storage:
  driver: file
  path: ./data
cursor:
  grace: "1h"
  signature_window: 8
relay:
  interval: "@every 30s"
  send_delay: "50ms"
logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Source.PageLimit != 50 {
		t.Fatalf("page_limit = %d", cfg.Source.PageLimit)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Cursor.SignatureWindow != 8 {
		t.Fatalf("signature_window = %d", cfg.Cursor.SignatureWindow)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	body := `{
  "telegram": {"token": "123:abc"},
  "source": {"base_url": "https://store.example.com", "api_key": "k"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}}
}`
	cfg, err := NewManager(writeConfig(t, "config.json", body)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	body := strings.Replace(validYAML, "relay:", "not_a_section:\n  x: 1\nrelay:", 1)
	if _, err := NewManager(writeConfig(t, "config.yaml", body)).Load(); err == nil {
		t.Fatal("unknown section should be rejected")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	body := `{"telegram": {"token": "t"}, "source": {"base_url": "u", "api_key": "k"},
  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}}}{"extra": 1}`
	if _, err := NewManager(writeConfig(t, "config.json", body)).Load(); err == nil {
		t.Fatal("trailing JSON should be rejected")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t"},
			Source:   SourceConfig{BaseURL: "https://x", APIKey: "k"},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("minimal config should validate: %v", err)
	}

	c := base()
	c.Telegram.Token = " "
	if err := c.Validate(); err == nil {
		t.Fatal("blank token should fail")
	}

	c = base()
	c.Source.BaseURL = ""
	if err := c.Validate(); err == nil {
		t.Fatal("missing base_url should fail")
	}

	c = base()
	c.Relay.SendDelay = "fast"
	if err := c.Validate(); err == nil {
		t.Fatal("bad duration should fail")
	}

	c = base()
	c.Storage = &StorageConfig{Driver: "redis"}
	if err := c.Validate(); err == nil {
		t.Fatal("unknown storage driver should fail")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 90s "); err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration should fail")
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default: got %v, %v", d, err)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", validYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(200 * time.Millisecond) // let the watcher attach

	// Invalid edit: must not publish.
	if err := os.WriteFile(path, []byte("telegram: {token: ''}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case cfg := <-ch:
		t.Fatalf("invalid config published: %+v", cfg)
	case <-time.After(700 * time.Millisecond):
	}

	// Valid edit: published with the new level.
	updated := strings.Replace(validYAML, "level: info", "level: debug", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level = %q", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("valid change never published")
	}
}

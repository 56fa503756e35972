package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Source   SourceConfig   `json:"source"`
	Logging  LoggingConfig  `json:"logging"`

	Storage  *StorageConfig `json:"storage,omitempty"`
	Cursor   CursorConfig   `json:"cursor"`
	Registry RegistryConfig `json:"registry"`
	Relay    RelayConfig    `json:"relay"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// RequestTimeout is a Go duration string (e.g. "15s").
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// SourceConfig points at the record store's REST endpoint.
type SourceConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Table   string `json:"table,omitempty"` // default: restock_records

	PageLimit int `json:"page_limit,omitempty"` // default: 100
	// RequestTimeout is a Go duration string (e.g. "10s").
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./restockbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// CursorConfig tunes the dedup cursor. Window sizes of 0 take the defaults.
type CursorConfig struct {
	Key string `json:"key,omitempty"` // default: relay/cursor.json
	// Grace bounds the cold-start backfill window (Go duration string,
	// default "1h").
	Grace           string `json:"grace,omitempty"`
	IDWindow        int    `json:"id_window,omitempty"`
	SignatureWindow int    `json:"signature_window,omitempty"`
}

type RegistryConfig struct {
	Key string `json:"key,omitempty"` // default: relay/subscribers.json
}

// RelayConfig controls cycle cadence.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type RelayConfig struct {
	// Interval is a cron spec or descriptor (default "@every 30s").
	Interval     string `json:"interval,omitempty"`
	CycleTimeout string `json:"cycle_timeout,omitempty"` // default: "2m"
	SendDelay    string `json:"send_delay,omitempty"`    // default: "50ms"
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Validate checks the fields that must be right before the process can do
// anything useful. Duration fields are parsed here so a typo fails at load
// time rather than mid-cycle.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if strings.TrimSpace(c.Source.BaseURL) == "" {
		return errors.New("source.base_url is required")
	}
	if c.Source.PageLimit < 0 {
		return errors.New("source.page_limit must be >= 0")
	}
	if c.Cursor.IDWindow < 0 || c.Cursor.SignatureWindow < 0 {
		return errors.New("cursor windows must be >= 0")
	}
	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
		}
	}

	for _, d := range []struct{ path, raw string }{
		{"telegram.request_timeout", c.Telegram.RequestTimeout},
		{"source.request_timeout", c.Source.RequestTimeout},
		{"cursor.grace", c.Cursor.Grace},
		{"relay.cycle_timeout", c.Relay.CycleTimeout},
		{"relay.send_delay", c.Relay.SendDelay},
	} {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

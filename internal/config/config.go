package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that reads and writes as "3s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config represents the global ~/.connect/config.toml.
type Config struct {
	DefaultSession  string   `toml:"default_session"`
	APIURL          string   `toml:"api_url"`
	WSURL           string   `toml:"ws_url"`
	ReconnectDelay  Duration `toml:"reconnect_delay"`
	Heartbeat       Duration `toml:"heartbeat"`
	ReceiptTimeout  Duration `toml:"receipt_timeout"`
	RequestTimeout  Duration `toml:"request_timeout"`
	HistoryPageSize int      `toml:"history_page_size"`
	LogLevel        string   `toml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		APIURL:          "http://localhost:8080",
		WSURL:           "ws://localhost:8080/ws",
		ReconnectDelay:  Duration{3 * time.Second},
		Heartbeat:       Duration{10 * time.Second},
		ReceiptTimeout:  Duration{2 * time.Second},
		RequestTimeout:  Duration{10 * time.Second},
		HistoryPageSize: 30,
		LogLevel:        "info",
	}
}

// Load reads config from the given path on top of Default. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// fillDefaults restores zero values an explicit file may have cleared.
func (c *Config) fillDefaults() {
	d := Default()
	if c.APIURL == "" {
		c.APIURL = d.APIURL
	}
	if c.WSURL == "" {
		c.WSURL = d.WSURL
	}
	if c.ReconnectDelay.Duration <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.Heartbeat.Duration <= 0 {
		c.Heartbeat = d.Heartbeat
	}
	if c.ReceiptTimeout.Duration <= 0 {
		c.ReceiptTimeout = d.ReceiptTimeout
	}
	if c.RequestTimeout.Duration <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.HistoryPageSize <= 0 {
		c.HistoryPageSize = d.HistoryPageSize
	}
}

// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Exchange describes connectivity to the futures market data provider.
type Exchange struct {
	Provider  string `yaml:"provider"` // binance or stub
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
	PriceFeed bool   `yaml:"price_feed"` // subscribe to the websocket mark-price stream for tracking
}

// Scan groups the knobs of the signal evaluation pipeline.
type Scan struct {
	IntervalMinutes     int     `yaml:"interval_minutes"`
	FastInterval        string  `yaml:"fast_interval"`
	SlowInterval        string  `yaml:"slow_interval"`
	CandleLimit         int     `yaml:"candle_limit"`
	Workers             int     `yaml:"workers"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	Timezone            string  `yaml:"timezone"`
}

// Track groups the knobs of the position lifecycle tracker.
type Track struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	Workers         int `yaml:"workers"`
}

// Model points at the exported confidence classifier weights.
type Model struct {
	Path string `yaml:"path"`
}

// Store locates the durable signal stores on disk.
type Store struct {
	ActivePath   string `yaml:"active_path"`
	LogPath      string `yaml:"log_path"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// Email configures the best-effort alert notifier. Credentials come from the
// SMTP_USER / SMTP_PASS environment variables, never from the YAML file.
type Email struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	To      string `yaml:"to"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Exchange Exchange `yaml:"exchange"`
	Scan     Scan     `yaml:"scan"`
	Track    Track    `yaml:"track"`
	Model    Model    `yaml:"model"`
	Store    Store    `yaml:"store"`
	Email    Email    `yaml:"email"`
}

// Load reads a YAML file from disk and hydrates a Config struct with defaults applied.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Scan.FastInterval == "" {
		c.Scan.FastInterval = "1h"
	}
	if c.Scan.SlowInterval == "" {
		c.Scan.SlowInterval = "4h"
	}
	if c.Scan.CandleLimit <= 0 {
		// The slowest feature needs 200 periods of history to warm up.
		c.Scan.CandleLimit = 250
	}
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = 8
	}
	if c.Scan.ConfidenceThreshold <= 0 {
		c.Scan.ConfidenceThreshold = 0.97
	}
	if c.Scan.IntervalMinutes <= 0 {
		c.Scan.IntervalMinutes = 15
	}
	if c.Scan.Timezone == "" {
		c.Scan.Timezone = "Asia/Dhaka"
	}
	if c.Track.IntervalSeconds <= 0 {
		c.Track.IntervalSeconds = 60
	}
	if c.Track.Workers <= 0 {
		c.Track.Workers = 8
	}
	if c.Store.ActivePath == "" {
		c.Store.ActivePath = "active_signals.json"
	}
	if c.Store.LogPath == "" {
		c.Store.LogPath = "signals_log.csv"
	}
	if c.Store.SnapshotPath == "" {
		c.Store.SnapshotPath = "signals.json"
	}
	if c.Model.Path == "" {
		c.Model.Path = "model.json"
	}
}

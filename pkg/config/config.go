// Package config loads the dashboard configuration: JSON file with defaults,
// overridden by TOWNCRIER_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// GatewayConfig configures the local HTTP/websocket gateway.
type GatewayConfig struct {
	Addr string `json:"addr" env:"TOWNCRIER_GATEWAY_ADDR"`
}

// AlertsConfig configures outbound notification sinks. Empty values disable
// the corresponding sink.
type AlertsConfig struct {
	SlackWebhookURL  string `json:"slack_webhook_url,omitempty" env:"TOWNCRIER_SLACK_WEBHOOK"`
	DiscordWebhookID string `json:"discord_webhook_id,omitempty" env:"TOWNCRIER_DISCORD_WEBHOOK_ID"`
	DiscordToken     string `json:"discord_token,omitempty" env:"TOWNCRIER_DISCORD_TOKEN"`
	TelegramBotToken string `json:"telegram_bot_token,omitempty" env:"TOWNCRIER_TELEGRAM_TOKEN"`
	TelegramChatID   int64  `json:"telegram_chat_id,omitempty" env:"TOWNCRIER_TELEGRAM_CHAT_ID"`
}

// Config is the full dashboard configuration.
type Config struct {
	TownRoot string `json:"town_root" env:"TOWNCRIER_TOWN_ROOT"`
	BDBinary string `json:"bd_binary,omitempty" env:"TOWNCRIER_BD_BINARY"`

	// RefreshInterval is a Go duration string; RefreshCron, when set, takes
	// precedence and schedules refreshes by cron expression.
	RefreshInterval string `json:"refresh_interval" env:"TOWNCRIER_REFRESH_INTERVAL"`
	RefreshCron     string `json:"refresh_cron,omitempty" env:"TOWNCRIER_REFRESH_CRON"`

	Limit             int      `json:"limit" env:"TOWNCRIER_LIMIT"`
	ExcludeIDPrefixes []string `json:"exclude_id_prefixes,omitempty" env:"TOWNCRIER_EXCLUDE_ID_PREFIXES"`

	OverfetchFactor int `json:"overfetch_factor" env:"TOWNCRIER_OVERFETCH_FACTOR"`
	OverfetchFloor  int `json:"overfetch_floor" env:"TOWNCRIER_OVERFETCH_FLOOR"`
	OverfetchCap    int `json:"overfetch_cap" env:"TOWNCRIER_OVERFETCH_CAP"`

	AuditDir string `json:"audit_dir,omitempty" env:"TOWNCRIER_AUDIT_DIR"`

	Gateway GatewayConfig `json:"gateway"`
	Alerts  AlertsConfig  `json:"alerts"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval: "30s",
		Limit:           50,
		OverfetchFactor: 10,
		OverfetchFloor:  2000,
		OverfetchCap:    5000,
		Gateway:         GatewayConfig{Addr: "127.0.0.1:7717"},
	}
}

// Interval parses RefreshInterval, falling back to 30s on a bad value.
func (c *Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetConfigPath returns the config file location.
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".towncrier", "config.json")
	}
	return filepath.Join(home, ".towncrier", "config.json")
}

// LoadFrom reads path (when it exists), then applies environment overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	return cfg, nil
}

// Load reads the default config path with environment overrides.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// Save writes the config atomically.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Package config loads service configuration from an optional yaml
// file layered under VOICEDESK_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Telnyx   TelnyxConfig   `koanf:"telnyx"`
	IVR      IVRConfig      `koanf:"ivr"`
	Hours    HoursConfig    `koanf:"hours"`
	Transfer TransferConfig `koanf:"transfer"`
	Storage  StorageConfig  `koanf:"storage"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type TelnyxConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

type IVRConfig struct {
	// SettingsURL is the dashboard endpoint serving the menu. Empty
	// means the built-in menu is used.
	SettingsURL string `koanf:"settings_url"`
	APIKey      string `koanf:"api_key"`
	CacheTTL    string `koanf:"cache_ttl"`
}

// CacheTTLDuration parses CacheTTL, defaulting to five minutes.
func (c IVRConfig) CacheTTLDuration() time.Duration {
	if c.CacheTTL == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

type HoursConfig struct {
	Start    int    `koanf:"start"`
	End      int    `koanf:"end"`
	Timezone string `koanf:"timezone"`
}

type TransferConfig struct {
	OperatorNumber string `koanf:"operator_number"`
}

type StorageConfig struct {
	// Path is the sqlite database file for the call log.
	Path string `koanf:"path"`
}

// Load reads the named yaml file when it exists, then layers
// environment variables on top. VOICEDESK_TELNYX__API_KEY maps to
// telnyx.api_key, double underscore being the section separator.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = "config.yaml"
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("VOICEDESK_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "VOICEDESK_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	defaults := map[string]any{
		"server.port":    8080,
		"hours.start":    9,
		"hours.end":      21,
		"hours.timezone": "America/New_York",
		"storage.path":   "voicedesk.db",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Hours.Start < 0 || cfg.Hours.Start > 23 || cfg.Hours.End < 1 || cfg.Hours.End > 24 ||
		cfg.Hours.Start >= cfg.Hours.End {
		return nil, fmt.Errorf("invalid business hours %d-%d", cfg.Hours.Start, cfg.Hours.End)
	}

	return &cfg, nil
}

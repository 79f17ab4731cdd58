package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setenv(t *testing.T, key, value string) {
	t.Helper()
	orig, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, orig)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Hours.Start != 9 || cfg.Hours.End != 21 {
		t.Errorf("hours = %d-%d, want 9-21", cfg.Hours.Start, cfg.Hours.End)
	}
	if cfg.Hours.Timezone != "America/New_York" {
		t.Errorf("timezone = %q", cfg.Hours.Timezone)
	}
	if cfg.Storage.Path != "voicedesk.db" {
		t.Errorf("storage path = %q", cfg.Storage.Path)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setenv(t, "VOICEDESK_SERVER__PORT", "9100")
	setenv(t, "VOICEDESK_TELNYX__API_KEY", "key-from-env")
	setenv(t, "VOICEDESK_TRANSFER__OPERATOR_NUMBER", "+15557770000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Telnyx.APIKey != "key-from-env" {
		t.Errorf("api key = %q", cfg.Telnyx.APIKey)
	}
	if cfg.Transfer.OperatorNumber != "+15557770000" {
		t.Errorf("operator number = %q", cfg.Transfer.OperatorNumber)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9200
ivr:
  settings_url: https://dashboard.example.com/api/ivr
  cache_ttl: 90s
hours:
  start: 8
  end: 22
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want 9200", cfg.Server.Port)
	}
	if cfg.IVR.SettingsURL != "https://dashboard.example.com/api/ivr" {
		t.Errorf("settings url = %q", cfg.IVR.SettingsURL)
	}
	if got := cfg.IVR.CacheTTLDuration(); got != 90*time.Second {
		t.Errorf("cache ttl = %v, want 90s", got)
	}
	if cfg.Hours.Start != 8 || cfg.Hours.End != 22 {
		t.Errorf("hours = %d-%d, want 8-22", cfg.Hours.Start, cfg.Hours.End)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9200\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	setenv(t, "VOICEDESK_SERVER__PORT", "9300")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9300 {
		t.Errorf("port = %d, want env override 9300", cfg.Server.Port)
	}
}

func TestLoadRejectsBadHours(t *testing.T) {
	setenv(t, "VOICEDESK_HOURS__START", "22")
	setenv(t, "VOICEDESK_HOURS__END", "9")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() should reject an inverted hours window")
	}
}

func TestCacheTTLDurationFallback(t *testing.T) {
	if got := (IVRConfig{}).CacheTTLDuration(); got != 5*time.Minute {
		t.Errorf("empty ttl = %v, want 5m", got)
	}
	if got := (IVRConfig{CacheTTL: "nonsense"}).CacheTTLDuration(); got != 5*time.Minute {
		t.Errorf("bad ttl = %v, want 5m", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

// TestLoad_AllFields verifies that all config fields are parsed correctly from TOML.
func TestLoad_AllFields(t *testing.T) {
	path := writeConfig(t, `
host = "127.0.0.1"
port = 9600
port_attempts = 3
variant = "integrated"
workspace = "/work/project"
live_sync = false
mdns_enabled = true
qr = true
reply_mode = "command"
reply_command = "vtc"
dry_run = true
log_file = "/tmp/vtc.log"
state_db = "/tmp/state.db"
rate_limit = 20.5
rate_burst = 40
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Port != 9600 || cfg.PortAttempts != 3 {
		t.Errorf("Port = %d, PortAttempts = %d", cfg.Port, cfg.PortAttempts)
	}
	if cfg.Variant != VariantIntegrated {
		t.Errorf("Variant = %q", cfg.Variant)
	}
	if cfg.Workspace != "/work/project" {
		t.Errorf("Workspace = %q", cfg.Workspace)
	}
	if cfg.LiveSync == nil || *cfg.LiveSync {
		t.Errorf("LiveSync = %v, want explicit false", cfg.LiveSync)
	}
	if !cfg.MdnsEnabled || !cfg.QR || !cfg.DryRun {
		t.Errorf("bool fields not parsed: %+v", cfg)
	}
	if cfg.ReplyMode != ReplyModeCommand || cfg.ReplyCommand != "vtc" {
		t.Errorf("ReplyMode = %q, ReplyCommand = %q", cfg.ReplyMode, cfg.ReplyCommand)
	}
	if cfg.LogFile != "/tmp/vtc.log" || cfg.StateDB != "/tmp/state.db" {
		t.Errorf("LogFile = %q, StateDB = %q", cfg.LogFile, cfg.StateDB)
	}
	if cfg.RateLimit != 20.5 || cfg.RateBurst != 40 {
		t.Errorf("RateLimit = %v, RateBurst = %d", cfg.RateLimit, cfg.RateBurst)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, `port = "not a number`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Host != DefaultHost || cfg.Port != DefaultPort || cfg.PortAttempts != DefaultPortAttempts {
		t.Errorf("bind defaults = %s:%d x%d", cfg.Host, cfg.Port, cfg.PortAttempts)
	}
	if cfg.Variant != VariantStandalone || cfg.ReplyMode != ReplyModeSummary {
		t.Errorf("Variant = %q, ReplyMode = %q", cfg.Variant, cfg.ReplyMode)
	}
	if !cfg.LiveSyncEnabled() {
		t.Error("live sync should default to on")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestApplyDefaultsKeepsExplicitLiveSyncOff(t *testing.T) {
	off := false
	cfg := &Config{LiveSync: &off}
	cfg.ApplyDefaults()
	if cfg.LiveSyncEnabled() {
		t.Fatal("explicit live_sync = false was overridden")
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantPort int
		wantHost string
		wantErr  bool
	}{
		{
			name:     "VTC_PORT wins over PORT",
			env:      map[string]string{EnvPort: "9700", EnvPortAlt: "8000"},
			wantPort: 9700,
		},
		{
			name:     "PORT fallback",
			env:      map[string]string{EnvPortAlt: "8000"},
			wantPort: 8000,
		},
		{
			name:     "blank VTC_PORT falls through",
			env:      map[string]string{EnvPort: " ", EnvPortAlt: "8001"},
			wantPort: 8001,
		},
		{
			name:     "host override",
			env:      map[string]string{EnvHost: "127.0.0.1"},
			wantPort: 1234,
			wantHost: "127.0.0.1",
		},
		{
			name:    "bad port",
			env:     map[string]string{EnvPort: "abc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Port: 1234}
			lookup := func(k string) (string, bool) {
				v, ok := tt.env[k]
				return v, ok
			}
			err := cfg.ApplyEnv(lookup)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnv: %v", err)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", cfg.Port, tt.wantPort)
			}
			if cfg.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", cfg.Host, tt.wantHost)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("VTC_WORKSPACE=/from/dotenv\n"), 0600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv(EnvWorkspace, "")
	os.Unsetenv(EnvWorkspace)

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv(EnvWorkspace); got != "/from/dotenv" {
		t.Fatalf("%s = %q after LoadDotEnv", EnvWorkspace, got)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.ApplyDefaults()
		return c
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.Port = 0 }, "out of range"},
		{"port too high", func(c *Config) { c.Port = 70000 }, "out of range"},
		{"range overflow", func(c *Config) { c.Port = 65530 }, "exceeds"},
		{"bad variant", func(c *Config) { c.Variant = "plugin" }, "unknown variant"},
		{"bad reply mode", func(c *Config) { c.ReplyMode = "email" }, "unknown reply_mode"},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestListenAttempts(t *testing.T) {
	c := &Config{Variant: VariantIntegrated, PortAttempts: 10}
	if got := c.ListenAttempts(); got != 1 {
		t.Errorf("integrated ListenAttempts = %d, want 1", got)
	}
	c.Variant = VariantStandalone
	if got := c.ListenAttempts(); got != 10 {
		t.Errorf("standalone ListenAttempts = %d, want 10", got)
	}
}

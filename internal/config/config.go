// Package config provides TOML configuration file loading for the agent.
// The configuration file lives at ~/.voice-to-cursor/config.toml by default, but
// can be overridden with the --config flag. Precedence, lowest first: defaults,
// file, environment (including .env), CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the agent configuration file structure.
type Config struct {
	// Host is the bind address. Default: 0.0.0.0
	Host string `toml:"host"`

	// Port is the preferred port. Default: 9527
	Port int `toml:"port"`

	// PortAttempts is how many consecutive ports the standalone variant
	// scans when the preferred one is taken. The integrated variant always
	// fails fast. Default: 10
	PortAttempts int `toml:"port_attempts"`

	// Variant is "standalone" or "integrated". Default: standalone
	Variant string `toml:"variant"`

	// Workspace is the directory images and the legacy inbox are written to.
	// Default: the current working directory.
	Workspace string `toml:"workspace"`

	// LiveSync mirrors staged text into the focused field as it changes.
	// Nil means unset. Default: true
	LiveSync *bool `toml:"live_sync"`

	// MdnsEnabled advertises the agent on the LAN. Default: false
	MdnsEnabled bool `toml:"mdns_enabled"`

	// QR prints the connection URL as a QR code at startup. Default: false
	QR bool `toml:"qr"`

	// ReplyMode is "summary" or "command". Default: summary
	ReplyMode string `toml:"reply_mode"`

	// ReplyCommand is the CLI name used in command reply mode.
	ReplyCommand string `toml:"reply_command"`

	// DryRun records automation steps instead of touching the desktop.
	DryRun bool `toml:"dry_run"`

	// LogFile redirects logs to a file when set.
	LogFile string `toml:"log_file"`

	// StateDB is the SQLite file the phone client keeps its last URL in.
	// Default: ~/.voice-to-cursor/state.db
	StateDB string `toml:"state_db"`

	// RateLimit and RateBurst bound inbound frames per connection.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

// Dir returns ~/.voice-to-cursor.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".voice-to-cursor"), nil
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultStateDB returns the default client state database path.
func DefaultStateDB() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

// Load reads a TOML config file from the given path and returns a Config.
//
// Behavior:
//   - If path is empty, attempts to load from the default location.
//     Returns an empty Config without error if the default file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			return cfg, nil
		}
		path = defaultPath
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv. VTC_PORT wins over PORT.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, key := range []string{EnvPort, EnvPortAlt} {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		c.Port = port
		break
	}
	if v, ok := lookup(EnvHost); ok && v != "" {
		c.Host = v
	}
	if v, ok := lookup(EnvVariant); ok && v != "" {
		c.Variant = v
	}
	if v, ok := lookup(EnvWorkspace); ok && v != "" {
		c.Workspace = v
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.PortAttempts == 0 {
		c.PortAttempts = DefaultPortAttempts
	}
	if c.Variant == "" {
		c.Variant = VariantStandalone
	}
	if c.ReplyMode == "" {
		c.ReplyMode = ReplyModeSummary
	}
	if c.ReplyCommand == "" {
		c.ReplyCommand = DefaultReplyCommand
	}
	if c.LiveSync == nil {
		enabled := true
		c.LiveSync = &enabled
	}
	if c.StateDB == "" {
		if path, err := DefaultStateDB(); err == nil {
			c.StateDB = path
		}
	}
}

// LiveSyncEnabled reports the effective live-sync setting.
func (c *Config) LiveSyncEnabled() bool {
	return c.LiveSync == nil || *c.LiveSync
}

// ListenAttempts is the number of ports to try for the configured variant.
func (c *Config) ListenAttempts() int {
	if c.Variant == VariantIntegrated {
		return 1
	}
	if c.PortAttempts < 1 {
		return 1
	}
	return c.PortAttempts
}

// Validate rejects values the agent cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if c.PortAttempts < 0 {
		return fmt.Errorf("port_attempts must be >= 0, got %d", c.PortAttempts)
	}
	if c.Port+c.ListenAttempts()-1 > 65535 {
		return fmt.Errorf("port range %d+%d exceeds 65535", c.Port, c.ListenAttempts())
	}
	switch c.Variant {
	case VariantStandalone, VariantIntegrated:
	default:
		return fmt.Errorf("unknown variant %q (want %s or %s)", c.Variant, VariantStandalone, VariantIntegrated)
	}
	switch c.ReplyMode {
	case ReplyModeSummary, ReplyModeCommand:
	default:
		return fmt.Errorf("unknown reply_mode %q (want %s or %s)", c.ReplyMode, ReplyModeSummary, ReplyModeCommand)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("rate_limit and rate_burst must not be negative")
	}
	return nil
}

// Package config loads telebridge configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (TELEBRIDGE_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .telebridge.yaml in current directory
//  2. ~/.config/telebridge/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all telebridge configuration.
type Config struct {
	// Telegram settings
	Token           string  `yaml:"token"`
	AuthorizedUsers []int64 `yaml:"authorized_users"`

	// Poll and flush timing (Go duration strings, e.g. "1s")
	PollInterval string `yaml:"poll_interval"`
	QuietPeriod  string `yaml:"quiet_period"`
	MaxHold      string `yaml:"max_hold"`

	// Capture settings
	TerminalLines int    `yaml:"terminal_lines"` // visible lines sent on full refreshes
	Parallel      int    `yaml:"parallel"`       // concurrent pane captures per tick
	WorkDir       string `yaml:"work_dir"`       // working directory for created sessions

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"

	// Parsed durations (not from YAML, set after loading)
	PollIntervalDuration time.Duration `yaml:"-"`
	QuietPeriodDuration  time.Duration `yaml:"-"`
	MaxHoldDuration      time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		PollInterval:  "1s",
		QuietPeriod:   "400ms",
		MaxHold:       "2s",
		TerminalLines: 30,
		Parallel:      4,
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	// Try to load config file
	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	// Environment variables override everything
	mergeEnv(cfg)

	// Parse durations
	var err error
	cfg.PollIntervalDuration, err = parseDuration(cfg.PollInterval, time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid poll interval %q: %w", cfg.PollInterval, err)
	}
	cfg.QuietPeriodDuration, err = parseDuration(cfg.QuietPeriod, 400*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid quiet period %q: %w", cfg.QuietPeriod, err)
	}
	cfg.MaxHoldDuration, err = parseDuration(cfg.MaxHold, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid max hold %q: %w", cfg.MaxHold, err)
	}

	return cfg, nil
}

// Validate checks that the config can actually run the bridge daemon.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("no bot token: set token in the config file or TELEBRIDGE_TOKEN")
	}
	if len(c.AuthorizedUsers) == 0 {
		return fmt.Errorf("no authorized users: an empty whitelist would refuse every sender")
	}
	return nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".telebridge.yaml"); err == nil {
		return ".telebridge.yaml", data, nil
	}

	// 2. XDG config dir / ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "telebridge", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Token != "" {
		cfg.Token = file.Token
	}
	if len(file.AuthorizedUsers) > 0 {
		cfg.AuthorizedUsers = file.AuthorizedUsers
	}
	if file.PollInterval != "" {
		cfg.PollInterval = file.PollInterval
	}
	if file.QuietPeriod != "" {
		cfg.QuietPeriod = file.QuietPeriod
	}
	if file.MaxHold != "" {
		cfg.MaxHold = file.MaxHold
	}
	if file.TerminalLines > 0 {
		cfg.TerminalLines = file.TerminalLines
	}
	if file.Parallel > 0 {
		cfg.Parallel = file.Parallel
	}
	if file.WorkDir != "" {
		cfg.WorkDir = file.WorkDir
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	if v := os.Getenv("TELEBRIDGE_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("TELEBRIDGE_AUTHORIZED_USERS"); v != "" {
		if users, err := ParseUserList(v); err == nil {
			cfg.AuthorizedUsers = users
		}
	}
	if v := os.Getenv("TELEBRIDGE_POLL_INTERVAL"); v != "" {
		cfg.PollInterval = v
	}
	if v := os.Getenv("TELEBRIDGE_QUIET_PERIOD"); v != "" {
		cfg.QuietPeriod = v
	}
	if v := os.Getenv("TELEBRIDGE_MAX_HOLD"); v != "" {
		cfg.MaxHold = v
	}
	if v := os.Getenv("TELEBRIDGE_TERMINAL_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TerminalLines = n
		}
	}
	if v := os.Getenv("TELEBRIDGE_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Parallel = n
		}
	}
	if v := os.Getenv("TELEBRIDGE_WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}
}

// ParseUserList parses a comma-separated list of numeric Telegram user
// IDs, e.g. "123456,789012".
func ParseUserList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	users := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q: %w", part, err)
		}
		users = append(users, id)
	}
	return users, nil
}

// parseDuration parses a duration string. Empty string returns the
// fallback value.
func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

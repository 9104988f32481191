// Package config provides configuration loading and validation for the
// lead tracker.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreHTTP     = "http"
	StoreMemory   = "memory"
	StoreNone     = "none"
)

// Duration is a time.Duration written as a Go duration string in JSON.
type Duration struct {
	time.Duration
}

// UnmarshalJSON parses strings like "1.5s" or "48h".
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Config is the lead tracker configuration. Values come from an optional
// JSON file, then environment overrides, then defaults.
type Config struct {
	// Persistence
	Store        string `json:"store,omitempty"`          // postgres | http | memory | none
	DatabaseURL  string `json:"database_url,omitempty"`   // PostgreSQL connection URL
	StoreBaseURL string `json:"store_base_url,omitempty"` // Remote REST store
	StoreToken   string `json:"store_token,omitempty"`    // Bearer credential for the REST store
	UserID       string `json:"user_id,omitempty"`        // Owner of the pipeline (postgres)

	// Serving
	Port     string `json:"port,omitempty"`
	AMQPURL  string `json:"amqp_url,omitempty"` // Lead events go to RabbitMQ when set
	LogLevel string `json:"log_level,omitempty"`

	// Timing
	DebounceQuiet  Duration `json:"debounce_quiet,omitempty"`
	ApplyTick      Duration `json:"apply_tick,omitempty"`
	FollowUpTick   Duration `json:"follow_up_tick,omitempty"`
	ApplyWindow    Duration `json:"apply_window,omitempty"`
	FollowUpWindow Duration `json:"follow_up_window,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:           "8080",
		LogLevel:       "info",
		DebounceQuiet:  Duration{1500 * time.Millisecond},
		ApplyTick:      Duration{30 * time.Second},
		FollowUpTick:   Duration{60 * time.Second},
		ApplyWindow:    Duration{48 * time.Hour},
		FollowUpWindow: Duration{48 * time.Hour},
	}
}

// LoadConfig loads configuration from a JSON file after checking it against
// the embedded schema.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// Load builds the effective configuration: the file at path (optional),
// environment overrides, then defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"LEADTRACKER_STORE", &c.Store},
		{"DATABASE_URL", &c.DatabaseURL},
		{"STORE_BASE_URL", &c.StoreBaseURL},
		{"STORE_TOKEN", &c.StoreToken},
		{"USER_ID", &c.UserID},
		{"PORT", &c.Port},
		{"AMQP_URL", &c.AMQPURL},
		{"LOG_LEVEL", &c.LogLevel},
	}
	for _, s := range strs {
		if v := strings.TrimSpace(getenv(s.key)); v != "" {
			*s.dst = v
		}
	}

	durs := []struct {
		key string
		dst *Duration
	}{
		{"DEBOUNCE_QUIET", &c.DebounceQuiet},
		{"APPLY_TICK", &c.ApplyTick},
		{"FOLLOW_UP_TICK", &c.FollowUpTick},
		{"APPLY_WINDOW", &c.ApplyWindow},
		{"FOLLOW_UP_WINDOW", &c.FollowUpWindow},
	}
	for _, d := range durs {
		v := strings.TrimSpace(getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", d.key, err)
		}
		d.dst.Duration = parsed
	}
	return nil
}

// MergeWithDefaults returns a new Config with unset fields filled from
// defaults. An unset store is inferred from which backend is configured.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Store == "" {
		switch {
		case result.DatabaseURL != "":
			result.Store = StorePostgres
		case result.StoreBaseURL != "":
			result.Store = StoreHTTP
		case defaults.Store != "":
			result.Store = defaults.Store
		default:
			result.Store = StoreMemory
		}
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.StoreBaseURL == "" {
		result.StoreBaseURL = defaults.StoreBaseURL
	}
	if result.UserID == "" {
		result.UserID = defaults.UserID
	}
	if result.Port == "" {
		result.Port = defaults.Port
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}

	for _, d := range []struct{ dst, def *Duration }{
		{&result.DebounceQuiet, &defaults.DebounceQuiet},
		{&result.ApplyTick, &defaults.ApplyTick},
		{&result.FollowUpTick, &defaults.FollowUpTick},
		{&result.ApplyWindow, &defaults.ApplyWindow},
		{&result.FollowUpWindow, &defaults.FollowUpWindow},
	} {
		if d.dst.Duration == 0 {
			*d.dst = *d.def
		}
	}

	return result
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: 'database_url' is required for the postgres store")
		}
		if _, err := uuid.Parse(c.UserID); err != nil {
			return fmt.Errorf("config error: 'user_id' must be a UUID for the postgres store")
		}
	case StoreHTTP:
		if c.StoreBaseURL == "" {
			return fmt.Errorf("config error: 'store_base_url' is required for the http store")
		}
	case StoreMemory, StoreNone:
	default:
		return fmt.Errorf("config error: unknown store %q", c.Store)
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("config error: invalid port %q", c.Port)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config error: invalid log_level %q", c.LogLevel)
	}

	for name, d := range map[string]Duration{
		"debounce_quiet":   c.DebounceQuiet,
		"apply_tick":       c.ApplyTick,
		"follow_up_tick":   c.FollowUpTick,
		"apply_window":     c.ApplyWindow,
		"follow_up_window": c.FollowUpWindow,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("config error: '%s' must be positive", name)
		}
	}

	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for palaver.
//
// Supports TOML configuration with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file location: ~/.palaver/config.toml, falling back to
// built-in defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete palaver configuration.
type Config struct {
	Version string `toml:"version"`

	// Gateway connection settings
	Gateway GatewayConfig `toml:"gateway"`

	// Session settings
	Session SessionConfig `toml:"session"`

	// Command palette settings
	Palette PaletteConfig `toml:"palette"`

	// Command usage history settings
	History HistoryConfig `toml:"history"`

	// UI settings
	UI UIConfig `toml:"ui"`
}

// GatewayConfig contains session gateway connection configuration.
type GatewayConfig struct {
	// URL is the base URL of the session gateway
	URL string `toml:"url"`
	// Token is the bearer token for gateway authentication
	Token string `toml:"token"`
	// TimeoutSecs is the per-request timeout in seconds
	TimeoutSecs int `toml:"timeout_secs"`
	// MaxRetries is the retry attempt count for transient failures
	MaxRetries int `toml:"max_retries"`
	// CallsPerSecond bounds outgoing gateway calls
	CallsPerSecond float64 `toml:"calls_per_second"`
}

// SessionConfig contains session lifecycle configuration.
type SessionConfig struct {
	// IdleTimeoutSecs is how long the session may sit idle before it is
	// considered stale
	IdleTimeoutSecs int `toml:"idle_timeout_secs"`
	// WarningBeforeSecs is how long before timeout to surface a warning
	WarningBeforeSecs int `toml:"warning_before_secs"`
}

// PaletteConfig contains command palette configuration.
type PaletteConfig struct {
	// MaxVisible is the maximum number of rows shown in palette and
	// completion lists before scrolling
	MaxVisible int `toml:"max_visible"`
	// ShowRecent marks recently used commands in the palette
	ShowRecent bool `toml:"show_recent"`
}

// HistoryConfig contains command usage history configuration.
type HistoryConfig struct {
	// Enabled turns usage recording on or off
	Enabled bool `toml:"enabled"`
	// Path is the history database path (empty = ~/.palaver/history.db)
	Path string `toml:"path"`
	// RetentionDays is how long usage records are kept
	RetentionDays int `toml:"retention_days"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme selects the color theme: "dark" or "light"
	Theme string `toml:"theme"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration populated with default values.
func Default() *Config {
	return &Config{
		Version: "1",
		Gateway: GatewayConfig{
			URL:            "",
			Token:          "",
			TimeoutSecs:    30,
			MaxRetries:     3,
			CallsPerSecond: 5,
		},
		Session: SessionConfig{
			IdleTimeoutSecs:   1800,
			WarningBeforeSecs: 120,
		},
		Palette: PaletteConfig{
			MaxVisible: 8,
			ShowRecent: true,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
		UI: UIConfig{
			Theme: "dark",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the palaver configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".palaver"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// HistoryPath returns the effective history database path.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 to protect the gateway token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file, falling back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file into cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Gateway.TimeoutSecs == 0 {
		c.Gateway.TimeoutSecs = defaults.Gateway.TimeoutSecs
	}
	if c.Gateway.MaxRetries == 0 {
		c.Gateway.MaxRetries = defaults.Gateway.MaxRetries
	}
	if c.Gateway.CallsPerSecond == 0 {
		c.Gateway.CallsPerSecond = defaults.Gateway.CallsPerSecond
	}
	if c.Session.IdleTimeoutSecs == 0 {
		c.Session.IdleTimeoutSecs = defaults.Session.IdleTimeoutSecs
	}
	if c.Session.WarningBeforeSecs == 0 {
		c.Session.WarningBeforeSecs = defaults.Session.WarningBeforeSecs
	}
	if c.Palette.MaxVisible == 0 {
		c.Palette.MaxVisible = defaults.Palette.MaxVisible
	}
	if c.History.RetentionDays == 0 {
		c.History.RetentionDays = defaults.History.RetentionDays
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# palaver configuration file")
	fmt.Fprintln(file, "# Generated by palaver - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Gateway.URL != "" {
		if u, err := url.Parse(c.Gateway.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{
				Field:   "gateway.url",
				Message: fmt.Sprintf("invalid URL '%s', must be http(s)", c.Gateway.URL),
			})
		}
	}
	if c.Gateway.TimeoutSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "gateway.timeout_secs",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Gateway.TimeoutSecs),
		})
	}
	if c.Gateway.MaxRetries < 1 || c.Gateway.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "gateway.max_retries",
			Message: fmt.Sprintf("must be 1-10, got %d", c.Gateway.MaxRetries),
		})
	}
	if c.Gateway.CallsPerSecond <= 0 {
		errs = append(errs, ValidationError{
			Field:   "gateway.calls_per_second",
			Message: "must be positive",
		})
	}

	if c.Session.IdleTimeoutSecs < 60 {
		errs = append(errs, ValidationError{
			Field:   "session.idle_timeout_secs",
			Message: fmt.Sprintf("must be at least 60 seconds, got %d", c.Session.IdleTimeoutSecs),
		})
	}
	if c.Session.WarningBeforeSecs >= c.Session.IdleTimeoutSecs {
		errs = append(errs, ValidationError{
			Field:   "session.warning_before_secs",
			Message: "must be shorter than the idle timeout",
		})
	}

	if c.Palette.MaxVisible < 1 || c.Palette.MaxVisible > 50 {
		errs = append(errs, ValidationError{
			Field:   "palette.max_visible",
			Message: fmt.Sprintf("must be 1-50, got %d", c.Palette.MaxVisible),
		})
	}

	if c.History.RetentionDays < 1 {
		errs = append(errs, ValidationError{
			Field:   "history.retention_days",
			Message: fmt.Sprintf("must be at least 1, got %d", c.History.RetentionDays),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PALAVER_GATEWAY_URL: overrides gateway.url
//   - PALAVER_TOKEN: overrides gateway.token
//   - PALAVER_THEME: overrides ui.theme
//   - PALAVER_NO_HISTORY: set to "1" or "true" to disable usage history
func (c *Config) ApplyEnvOverrides() {
	if u := os.Getenv("PALAVER_GATEWAY_URL"); u != "" {
		c.Gateway.URL = u
	}
	if token := os.Getenv("PALAVER_TOKEN"); token != "" {
		c.Gateway.Token = token
	}
	if theme := os.Getenv("PALAVER_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if noHist := os.Getenv("PALAVER_NO_HISTORY"); noHist != "" {
		if noHist == "1" || strings.EqualFold(noHist, "true") {
			c.History.Enabled = false
		}
	}
}

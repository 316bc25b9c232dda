// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for citechat.
//
// Configuration file locations (in order of precedence):
//   - ~/.citechat/config.toml
//   - ~/.citechat/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/citechat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete citechat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Assistant relay endpoints and client limits
	Relay RelayConfig `toml:"relay" json:"relay"`

	// Tool-call handling
	Tools ToolsConfig `toml:"tools" json:"tools"`

	// Document names and downloads
	Files FilesConfig `toml:"files" json:"files"`

	Log LogConfig `toml:"log" json:"log"`

	UI UIConfig `toml:"ui" json:"ui"`
}

// RelayConfig configures the assistant relay client.
type RelayConfig struct {
	// BaseURL is the assistants endpoint (threads are created under it).
	BaseURL string `toml:"base_url" json:"base_url"`

	// FilesURL is the file reference endpoint embedded in citation markers.
	// A path is resolved against BaseURL for downloads.
	FilesURL string `toml:"files_url" json:"files_url"`

	// APIKey is sent as a bearer token when set.
	APIKey string `toml:"api_key" json:"api_key"`

	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// RequestsPerSecond limits outgoing relay calls. 0 disables the limit.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
}

// Timeout returns the relay timeout as a duration.
func (r RelayConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// ToolsConfig configures tool-call handling.
type ToolsConfig struct {
	// InterpreterKinds lists the tool kinds whose input is shown as a tool turn.
	InterpreterKinds []string `toml:"interpreter_kinds" json:"interpreter_kinds"`
}

// FilesConfig configures document display names and downloads.
type FilesConfig struct {
	// Names maps file ids to display names.
	Names map[string]string `toml:"names" json:"names"`

	DownloadDir string `toml:"download_dir" json:"download_dir"`

	// MaxLabelWidth is the display width of document names in reference lists.
	MaxLabelWidth int `toml:"max_label_width" json:"max_label_width"`
}

// LogConfig configures the log file.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	File  string `toml:"file" json:"file"`
}

// UIConfig configures terminal output.
type UIConfig struct {
	Theme          string `toml:"theme" json:"theme"` // auto, dark, light
	WordWrap       int    `toml:"word_wrap" json:"word_wrap"`
	ShowReferences bool   `toml:"show_references" json:"show_references"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// CurrentVersion is the configuration schema version written by SaveTOML.
const CurrentVersion = "1"

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Relay: RelayConfig{
			BaseURL:           "http://127.0.0.1:3000/api/assistants",
			FilesURL:          "/api/files",
			TimeoutSecs:       60,
			RequestsPerSecond: 5,
		},
		Tools: ToolsConfig{
			InterpreterKinds: []string{"code_interpreter"},
		},
		Files: FilesConfig{
			Names:         map[string]string{},
			DownloadDir:   defaultDownloadDir(),
			MaxLabelWidth: 40,
		},
		Log: LogConfig{
			Level: "info",
			File:  defaultLogFile(),
		},
		UI: UIConfig{
			Theme:          "auto",
			WordWrap:       80,
			ShowReferences: true,
		},
	}
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

func defaultLogFile() string {
	dir, err := ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "citechat.log")
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the citechat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".citechat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files may hold the relay API key and must be 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file on top of cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file on top of cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
// Missing keys take their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies env overrides, migration, defaults and validation.
func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	if err := c.Migrate(); err != nil {
		return fmt.Errorf("config migration failed: %w", err)
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Relay
	if cfg.Relay.BaseURL == "" {
		cfg.Relay.BaseURL = defaults.Relay.BaseURL
	}
	if cfg.Relay.FilesURL == "" {
		cfg.Relay.FilesURL = defaults.Relay.FilesURL
	}
	if cfg.Relay.TimeoutSecs == 0 {
		cfg.Relay.TimeoutSecs = defaults.Relay.TimeoutSecs
	}

	// Tools
	if cfg.Tools.InterpreterKinds == nil {
		cfg.Tools.InterpreterKinds = defaults.Tools.InterpreterKinds
	}

	// Files
	if cfg.Files.Names == nil {
		cfg.Files.Names = map[string]string{}
	}
	if cfg.Files.DownloadDir == "" {
		cfg.Files.DownloadDir = defaults.Files.DownloadDir
	}
	if cfg.Files.MaxLabelWidth == 0 {
		cfg.Files.MaxLabelWidth = defaults.Files.MaxLabelWidth
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.WordWrap == 0 {
		cfg.UI.WordWrap = defaults.UI.WordWrap
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# citechat configuration file\n")
	buf.WriteString("# Generated by citechat - edit with care\n")
	buf.WriteString("\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
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
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validThemes    = []string{"auto", "dark", "light"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Validate validates the configuration and returns ValidateErrors when
// anything is wrong.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Relay
	if c.Relay.BaseURL != "" {
		u, err := url.Parse(c.Relay.BaseURL)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{"relay.base_url", fmt.Sprintf("invalid URL: %v", err)})
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, ValidationError{"relay.base_url", "scheme must be http or https"})
		case u.Host == "":
			errs = append(errs, ValidationError{"relay.base_url", "missing host"})
		}
	}
	if c.Relay.FilesURL != "" {
		if _, err := url.Parse(c.Relay.FilesURL); err != nil {
			errs = append(errs, ValidationError{"relay.files_url", fmt.Sprintf("invalid URL: %v", err)})
		} else if strings.HasSuffix(c.Relay.FilesURL, "/") {
			errs = append(errs, ValidationError{"relay.files_url", "must not end with a slash"})
		}
	}
	if c.Relay.TimeoutSecs < 0 || c.Relay.TimeoutSecs > 3600 {
		errs = append(errs, ValidationError{"relay.timeout_secs", "must be between 0 and 3600"})
	}
	if c.Relay.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{"relay.requests_per_second", "must not be negative"})
	}

	// Tools
	for i, kind := range c.Tools.InterpreterKinds {
		if strings.TrimSpace(kind) == "" {
			errs = append(errs, ValidationError{fmt.Sprintf("tools.interpreter_kinds[%d]", i), "must not be empty"})
		}
	}

	// Files
	for id, name := range c.Files.Names {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, ValidationError{"files.names", "file id must not be empty"})
		} else if strings.TrimSpace(name) == "" {
			errs = append(errs, ValidationError{"files.names." + id, "name must not be empty"})
		}
	}
	if c.Files.MaxLabelWidth < 0 || (c.Files.MaxLabelWidth > 0 && c.Files.MaxLabelWidth < 8) {
		errs = append(errs, ValidationError{"files.max_label_width", "must be at least 8"})
	}

	// Log
	if c.Log.Level != "" && !slices.Contains(validLogLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, ValidationError{"log.level", fmt.Sprintf("must be one of %s", strings.Join(validLogLevels, ", "))})
	}

	// UI
	if !slices.Contains(validThemes, c.UI.Theme) {
		errs = append(errs, ValidationError{"ui.theme", fmt.Sprintf("must be one of %s", strings.Join(validThemes, ", "))})
	}
	if c.UI.WordWrap < 0 {
		errs = append(errs, ValidationError{"ui.word_wrap", "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults normalizes values that are present but written loosely.
func (c *Config) SetDefaults() {
	if c.UI.Theme == "" {
		c.UI.Theme = "auto"
	}
	c.UI.Theme = strings.ToLower(c.UI.Theme)
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Relay.FilesURL = strings.TrimRight(c.Relay.FilesURL, "/")
	if c.Relay.FilesURL == "" {
		c.Relay.FilesURL = "/api/files"
	}
	if c.Files.Names == nil {
		c.Files.Names = map[string]string{}
	}
}

// Migrate upgrades older configuration layouts to the current version.
func (c *Config) Migrate() error {
	switch c.Version {
	case "", "0":
		c.Version = CurrentVersion
	case CurrentVersion:
	default:
		return fmt.Errorf("unsupported config version %q", c.Version)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - CITECHAT_RELAY_URL: overrides relay.base_url
//   - CITECHAT_FILES_URL: overrides relay.files_url
//   - CITECHAT_API_KEY: overrides relay.api_key
//   - CITECHAT_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CITECHAT_RELAY_URL"); v != "" {
		c.Relay.BaseURL = v
	}
	if v := os.Getenv("CITECHAT_FILES_URL"); v != "" {
		c.Relay.FilesURL = v
	}
	if v := os.Getenv("CITECHAT_API_KEY"); v != "" {
		c.Relay.APIKey = v
	}
	if v := os.Getenv("CITECHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Tools.InterpreterKinds = slices.Clone(c.Tools.InterpreterKinds)
	if c.Files.Names != nil {
		clone.Files.Names = make(map[string]string, len(c.Files.Names))
		for k, v := range c.Files.Names {
			clone.Files.Names[k] = v
		}
	}
	return &clone
}

// String returns a JSON rendering of the config with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Relay.APIKey != "" {
		safe.Relay.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// ErrNoConfigFile is returned by ResolvePath when an explicit path does not exist.
var ErrNoConfigFile = errors.New("config file not found")

// ResolvePath returns the file to load. An empty explicit path selects the
// default TOML location, which need not exist.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNoConfigFile, explicit)
		}
		return explicit, nil
	}
	return ConfigPathTOML()
}

/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


/*
Package config provides configuration management for matsearch.

The configuration system supports multiple sources with clear precedence:
 1. Command-line flags (highest priority)
 2. Environment variables
 3. Configuration file (TOML)
 4. Default values (lowest priority)

Example configuration file:

	port = 5000
	data_dir = "./data"
	upload_dir = "./uploads"
	source_xlsx = "results-csv.xlsx"
	source_xls = "results-csv.xls"
	source_csv = "materials.csv"
	source_encoding = "utf-8"
	max_upload_mb = 64
	properties_cache = true
	log_level = "info"
	log_json = false

	[health]
	enabled = true
	addr = ":9095"

	[metrics]
	enabled = true
	addr = ":9094"

Environment Variables:
  - MATSEARCH_PORT: HTTP API port
  - MATSEARCH_DATA_DIR: Directory holding main.db and user.db
  - MATSEARCH_UPLOAD_DIR: Staging directory for uploaded workbooks
  - MATSEARCH_SOURCE_XLSX / MATSEARCH_SOURCE_XLS / MATSEARCH_SOURCE_CSV: primary source candidates
  - MATSEARCH_SOURCE_ENCODING: Encoding of the CSV source (utf-8, gbk, gb18030, latin1)
  - MATSEARCH_MAX_UPLOAD_MB: Upload size limit in megabytes
  - MATSEARCH_PROPERTIES_CACHE: Reuse property ranges while a dataset file is unchanged (true/false)
  - MATSEARCH_LOG_LEVEL: Log level (debug, info, warn, error)
  - MATSEARCH_LOG_JSON: Enable JSON logging (true/false)
  - MATSEARCH_HEALTH_ADDR / MATSEARCH_METRICS_ADDR: side listener addresses
  - MATSEARCH_CONFIG_FILE: Path to configuration file
*/
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"matsearch/internal/errors"
	"matsearch/internal/tabular"
)

// Environment variable names for configuration.
const (
	EnvPort           = "MATSEARCH_PORT"
	EnvDataDir        = "MATSEARCH_DATA_DIR"
	EnvUploadDir      = "MATSEARCH_UPLOAD_DIR"
	EnvSourceXLSX     = "MATSEARCH_SOURCE_XLSX"
	EnvSourceXLS      = "MATSEARCH_SOURCE_XLS"
	EnvSourceCSV      = "MATSEARCH_SOURCE_CSV"
	EnvSourceEncoding = "MATSEARCH_SOURCE_ENCODING"
	EnvMaxUploadMB    = "MATSEARCH_MAX_UPLOAD_MB"
	EnvPropsCache     = "MATSEARCH_PROPERTIES_CACHE"
	EnvLogLevel       = "MATSEARCH_LOG_LEVEL"
	EnvLogJSON        = "MATSEARCH_LOG_JSON"
	EnvHealthAddr     = "MATSEARCH_HEALTH_ADDR"
	EnvMetricsAddr    = "MATSEARCH_METRICS_ADDR"
	EnvConfigFile     = "MATSEARCH_CONFIG_FILE"
)

// DefaultConfigPaths are searched in order when no file is given explicitly.
var DefaultConfigPaths = []string{
	"/etc/matsearch/matsearch.toml",
	"$HOME/.config/matsearch/matsearch.toml",
	"./matsearch.toml",
}


// HealthConfig configures the health check listener.
type HealthConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Addr    string `toml:"addr" json:"addr"`
}

// MetricsConfig configures the Prometheus metrics listener.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Addr    string `toml:"addr" json:"addr"`
}

// Config holds all configuration values for matsearch.
type Config struct {
	Port int `toml:"port" json:"port"`

	// Storage
	DataDir   string `toml:"data_dir" json:"data_dir"`
	UploadDir string `toml:"upload_dir" json:"upload_dir"`

	// Primary source candidates, tried in order xlsx, xls, csv
	SourceXLSX     string `toml:"source_xlsx" json:"source_xlsx"`
	SourceXLS      string `toml:"source_xls" json:"source_xls"`
	SourceCSV      string `toml:"source_csv" json:"source_csv"`
	SourceEncoding string `toml:"source_encoding" json:"source_encoding"`

	MaxUploadMB int `toml:"max_upload_mb" json:"max_upload_mb"`

	// PropertiesCache reuses property ranges while the dataset file keeps
	// its modification time and size.
	PropertiesCache bool `toml:"properties_cache" json:"properties_cache"`

	LogLevel string `toml:"log_level" json:"log_level"`
	LogJSON  bool   `toml:"log_json" json:"log_json"`

	Health  HealthConfig  `toml:"health" json:"health"`
	Metrics MetricsConfig `toml:"metrics" json:"metrics"`

	// Path to the loaded config file
	ConfigFile string `toml:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Port:            5000,
		DataDir:         "./data",
		UploadDir:       "./uploads",
		SourceXLSX:      "results-csv.xlsx",
		SourceXLS:       "results-csv.xls",
		SourceCSV:       "materials.csv",
		SourceEncoding:  "utf-8",
		MaxUploadMB:     64,
		PropertiesCache: true,
		LogLevel:        "info",
		LogJSON:         false,
		Health:          HealthConfig{Enabled: true, Addr: ":9095"},
		Metrics:         MetricsConfig{Enabled: true, Addr: ":9094"},
	}
}

// Manager handles configuration loading and access.
type Manager struct {
	config *Config
	mu     sync.RWMutex
}

// NewManager creates a new configuration manager with default values.
func NewManager() *Manager {
	return &Manager{config: DefaultConfig()}
}

var globalManager = NewManager()

// Global returns the global configuration manager.
func Global() *Manager {
	return globalManager
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// Set updates the configuration.
func (m *Manager) Set(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

// Validate checks if the configuration is valid and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port: %d (must be 1-65535)", c.Port))
	}
	if c.DataDir == "" {
		errs = append(errs, "data_dir cannot be empty")
	}
	if c.UploadDir == "" {
		errs = append(errs, "upload_dir cannot be empty")
	}
	if c.SourceXLSX == "" && c.SourceXLS == "" && c.SourceCSV == "" {
		errs = append(errs, "at least one of source_xlsx, source_xls, source_csv must be set")
	}
	if !tabular.IsSupportedEncoding(c.SourceEncoding) {
		errs = append(errs, fmt.Sprintf("invalid source_encoding: %s (must be one of %s)",
			c.SourceEncoding, strings.Join(tabular.EncodingNames, ", ")))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, fmt.Sprintf("invalid max_upload_mb: %d (must be positive)", c.MaxUploadMB))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	if c.Health.Enabled && c.Health.Addr == "" {
		errs = append(errs, "health.addr is required when health is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics is enabled")
	}
	if c.Health.Enabled && c.Metrics.Enabled && c.Health.Addr == c.Metrics.Addr {
		errs = append(errs, "health.addr and metrics.addr cannot be the same")
	}

	if len(errs) > 0 {
		return errors.NewConfigError("configuration validation failed").
			WithDetail(strings.Join(errs, "; ")).
			WithHint("Check the config file, MATSEARCH_* environment variables and flags")
	}
	return nil
}

// PrimarySource returns the first configured source file that exists,
// preferring the xlsx workbook, then the legacy xls workbook, then the CSV.
// It returns "" when none exist.
func (c *Config) PrimarySource() string {
	for _, p := range []string{c.SourceXLSX, c.SourceXLS, c.SourceCSV} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// MainDBPath returns the path of the main dataset file.
func (c *Config) MainDBPath() string {
	return filepath.Join(c.DataDir, "main.db")
}

// UserDBPath returns the path of the user dataset file.
func (c *Config) UserDBPath() string {
	return filepath.Join(c.DataDir, "user.db")
}

// LoadFromFile loads configuration from a TOML file on top of the defaults.
func (m *Manager) LoadFromFile(path string) error {
	path = os.ExpandEnv(path)

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ConfigFile = path
	m.Set(cfg)
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Env values override file values.
func (m *Manager) LoadFromEnv() {
	cfg := m.Get()

	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvUploadDir); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv(EnvSourceXLSX); v != "" {
		cfg.SourceXLSX = v
	}
	if v := os.Getenv(EnvSourceXLS); v != "" {
		cfg.SourceXLS = v
	}
	if v := os.Getenv(EnvSourceCSV); v != "" {
		cfg.SourceCSV = v
	}
	if v := os.Getenv(EnvSourceEncoding); v != "" {
		cfg.SourceEncoding = v
	}
	if v := os.Getenv(EnvMaxUploadMB); v != "" {
		if mb, err := strconv.Atoi(v); err == nil {
			cfg.MaxUploadMB = mb
		}
	}
	if v := os.Getenv(EnvPropsCache); v != "" {
		cfg.PropertiesCache = parseBool(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	if v := os.Getenv(EnvHealthAddr); v != "" {
		cfg.Health.Addr = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		cfg.Metrics.Addr = v
	}

	m.Set(cfg)
}

func parseBool(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// FindConfigFile searches for a configuration file in default locations.
// Returns the path to the first file found, or empty string if none found.
func FindConfigFile() string {
	if envPath := os.Getenv(EnvConfigFile); envPath != "" {
		if _, err := os.Stat(os.ExpandEnv(envPath)); err == nil {
			return os.ExpandEnv(envPath)
		}
	}

	for _, path := range DefaultConfigPaths {
		expanded := os.ExpandEnv(path)
		if _, err := os.Stat(expanded); err == nil {
			return expanded
		}
	}

	return ""
}

// Load loads configuration from all sources with proper precedence.
// Order: defaults -> config file -> environment variables.
// Command-line flags should be applied after calling this function.
func (m *Manager) Load() error {
	if configPath := FindConfigFile(); configPath != "" {
		if err := m.LoadFromFile(configPath); err != nil {
			return err
		}
	}
	m.LoadFromEnv()
	return nil
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("matsearch Configuration:\n")
	fmt.Fprintf(&sb, "  Port:             %d\n", c.Port)
	fmt.Fprintf(&sb, "  Data Dir:         %s\n", c.DataDir)
	fmt.Fprintf(&sb, "  Upload Dir:       %s\n", c.UploadDir)
	fmt.Fprintf(&sb, "  Source:           %s\n", c.PrimarySource())
	fmt.Fprintf(&sb, "  Source Encoding:  %s\n", c.SourceEncoding)
	fmt.Fprintf(&sb, "  Max Upload MB:    %d\n", c.MaxUploadMB)
	fmt.Fprintf(&sb, "  Props Cache:      %v\n", c.PropertiesCache)
	fmt.Fprintf(&sb, "  Log Level:        %s\n", c.LogLevel)
	fmt.Fprintf(&sb, "  Log JSON:         %v\n", c.LogJSON)
	if c.ConfigFile != "" {
		fmt.Fprintf(&sb, "  Config File:      %s\n", c.ConfigFile)
	}
	return sb.String()
}

// ToTOML returns the configuration as a TOML document.
func (c *Config) ToTOML() (string, error) {
	var buf bytes.Buffer
	buf.WriteString("# matsearch configuration file\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.String(), nil
}

// SaveToFile saves the configuration to a file.
func (c *Config) SaveToFile(path string) error {
	path = os.ExpandEnv(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.ToTOML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

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


package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"matsearch/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Port != 5000 {
		t.Errorf("Expected default port 5000, got %d", cfg.Port)
	}
	if cfg.SourceEncoding != "utf-8" {
		t.Errorf("Expected default source_encoding 'utf-8', got '%s'", cfg.SourceEncoding)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log_level 'info', got '%s'", cfg.LogLevel)
	}
	if !cfg.PropertiesCache {
		t.Errorf("Expected properties_cache enabled by default")
	}
	if cfg.MainDBPath() != filepath.Join("data", "main.db") {
		t.Errorf("Expected main db under data dir, got '%s'", cfg.MainDBPath())
	}
	if cfg.UserDBPath() != filepath.Join("data", "user.db") {
		t.Errorf("Expected user db under data dir, got '%s'", cfg.UserDBPath())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"invalid port - zero", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"invalid port - too high", func(c *Config) { c.Port = 70000 }, "invalid port"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"no sources", func(c *Config) { c.SourceXLSX, c.SourceXLS, c.SourceCSV = "", "", "" }, "source_csv"},
		{"unknown encoding", func(c *Config) { c.SourceEncoding = "ebcdic" }, "source_encoding"},
		{"utf8 alias", func(c *Config) { c.SourceEncoding = "utf8" }, ""},
		{"iso-8859-1 alias", func(c *Config) { c.SourceEncoding = "ISO-8859-1" }, ""},
		{"invalid log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"zero upload limit", func(c *Config) { c.MaxUploadMB = 0 }, "max_upload_mb"},
		{"same side addresses", func(c *Config) { c.Metrics.Addr = c.Health.Addr }, "cannot be the same"},
		{"disabled health without addr", func(c *Config) { c.Health = HealthConfig{} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
			if !errors.IsConfigError(err) {
				t.Errorf("Expected a config error, got %T", err)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.DataDir = ""

	msg := errors.FormatError(cfg.Validate())
	if !strings.Contains(msg, "invalid port: 0") || !strings.Contains(msg, "data_dir cannot be empty") {
		t.Errorf("Expected both problems in message, got %q", msg)
	}
	if !strings.Contains(msg, "MATSEARCH_*") {
		t.Errorf("Expected hint in message, got %q", msg)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "matsearch.toml")

	content := `
port = 9000
data_dir = "/tmp/matsearch"
source_csv = "alloys.csv"
source_encoding = "gbk"
log_level = "debug"
log_json = true

[metrics]
enabled = false
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(configPath); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	cfg := mgr.Get()

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Port)
	}
	if cfg.DataDir != "/tmp/matsearch" {
		t.Errorf("Expected data_dir '/tmp/matsearch', got '%s'", cfg.DataDir)
	}
	if cfg.SourceCSV != "alloys.csv" {
		t.Errorf("Expected source_csv 'alloys.csv', got '%s'", cfg.SourceCSV)
	}
	if cfg.SourceXLSX != "results-csv.xlsx" {
		t.Errorf("Expected unset keys to keep defaults, got source_xlsx '%s'", cfg.SourceXLSX)
	}
	if cfg.SourceEncoding != "gbk" {
		t.Errorf("Expected source_encoding 'gbk', got '%s'", cfg.SourceEncoding)
	}
	if !cfg.LogJSON {
		t.Errorf("Expected log_json true, got %v", cfg.LogJSON)
	}
	if cfg.Metrics.Enabled {
		t.Errorf("Expected metrics disabled from file")
	}
	if !cfg.Health.Enabled {
		t.Errorf("Expected health to keep its default")
	}
	if cfg.ConfigFile != configPath {
		t.Errorf("Expected ConfigFile '%s', got '%s'", configPath, cfg.ConfigFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(configPath, []byte("port = = 1"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if err := NewManager().LoadFromFile(configPath); err == nil {
		t.Error("Expected parse error for malformed file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvPort, "7777")
	t.Setenv(EnvDataDir, "/srv/matsearch")
	t.Setenv(EnvLogJSON, "1")
	t.Setenv(EnvMaxUploadMB, "10")
	t.Setenv(EnvMetricsAddr, ":9200")
	t.Setenv(EnvPropsCache, "false")

	mgr := NewManager()
	mgr.LoadFromEnv()
	cfg := mgr.Get()

	if cfg.Port != 7777 {
		t.Errorf("Expected port 7777 from env, got %d", cfg.Port)
	}
	if cfg.DataDir != "/srv/matsearch" {
		t.Errorf("Expected data_dir from env, got '%s'", cfg.DataDir)
	}
	if !cfg.LogJSON {
		t.Errorf("Expected log_json true from env")
	}
	if cfg.MaxUploadMB != 10 {
		t.Errorf("Expected max_upload_mb 10 from env, got %d", cfg.MaxUploadMB)
	}
	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Expected metrics addr from env, got '%s'", cfg.Metrics.Addr)
	}
	if cfg.PropertiesCache {
		t.Errorf("Expected properties_cache false from env")
	}
}

func TestConfigPrecedence(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "matsearch.toml")
	if err := os.WriteFile(configPath, []byte("port = 9000\nlog_level = \"warn\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv(EnvConfigFile, configPath)
	t.Setenv(EnvPort, "9100")

	mgr := NewManager()
	if err := mgr.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := mgr.Get()

	if cfg.Port != 9100 {
		t.Errorf("Expected env to override file port, got %d", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected log_level 'warn' from file, got '%s'", cfg.LogLevel)
	}
}

func TestPrimarySource(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.SourceXLSX = filepath.Join(dir, "results-csv.xlsx")
	cfg.SourceXLS = filepath.Join(dir, "results-csv.xls")
	cfg.SourceCSV = filepath.Join(dir, "materials.csv")

	if got := cfg.PrimarySource(); got != "" {
		t.Errorf("Expected no source, got '%s'", got)
	}

	os.WriteFile(cfg.SourceCSV, []byte("id,name\n"), 0644)
	if got := cfg.PrimarySource(); got != cfg.SourceCSV {
		t.Errorf("Expected CSV source, got '%s'", got)
	}

	os.WriteFile(cfg.SourceXLS, []byte("legacy"), 0644)
	if got := cfg.PrimarySource(); got != cfg.SourceXLS {
		t.Errorf("Expected xls to win over CSV, got '%s'", got)
	}

	os.WriteFile(cfg.SourceXLSX, []byte("zip"), 0644)
	if got := cfg.PrimarySource(); got != cfg.SourceXLSX {
		t.Errorf("Expected xlsx to win over xls, got '%s'", got)
	}
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "matsearch.toml")
	cfg := DefaultConfig()
	cfg.Port = 6123
	cfg.SourceEncoding = "gb18030"
	cfg.PropertiesCache = false

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	loaded := mgr.Get()
	if loaded.Port != 6123 || loaded.SourceEncoding != "gb18030" {
		t.Errorf("Expected saved values to load back, got port %d encoding %s", loaded.Port, loaded.SourceEncoding)
	}
	if loaded.PropertiesCache {
		t.Errorf("Expected properties_cache false to load back")
	}
}

func TestGlobalManager(t *testing.T) {
	if Global() != Global() {
		t.Error("Expected Global to return the same manager")
	}
}

func TestString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PropertiesCache = false
	out := cfg.String()
	for _, want := range []string{"Port:             5000", "Max Upload MB:    64", "Props Cache:      false"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}
}

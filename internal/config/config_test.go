// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/codecraft-tui/internal/docstore"
)

var overrideVars = []string{
	"OPENROUTER_API_KEY", "CODECRAFT_API_KEY", "CODECRAFT_ENDPOINT",
	"CODECRAFT_MODEL", "CODECRAFT_VERBOSITY", "CODECRAFT_REMOTE_URL",
	"CODECRAFT_DATA_DIR", "CODECRAFT_LOG_LEVEL", "CODECRAFT_JWT_SECRET",
	"CODECRAFT_DB_DRIVER", "CODECRAFT_DB_DSN",
}

// isolate points the config dir at a temp dir and clears every override.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CODECRAFT_HOME", dir)
	for _, v := range overrideVars {
		t.Setenv(v, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Model.Default != "deepseek" {
		t.Errorf("Expected default model 'deepseek', got '%s'", cfg.Model.Default)
	}
	if cfg.Model.Verbosity != "medium" {
		t.Errorf("Expected default verbosity 'medium', got '%s'", cfg.Model.Verbosity)
	}
	if cfg.Session.SilenceTimeout.Std() != 5*time.Second {
		t.Errorf("Expected 5s silence timeout, got %s", cfg.Session.SilenceTimeout)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay.Std() != time.Second || cfg.Retry.Multiplier != 2 {
		t.Errorf("Unexpected retry defaults: %+v", cfg.Retry)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

// TestConfig_LoadMissingFile tests that a missing file yields defaults.
func TestConfig_LoadMissingFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Endpoint != Default().API.Endpoint {
		t.Errorf("Endpoint = %q", cfg.API.Endpoint)
	}
}

// TestConfig_LoadTOML tests that file values replace defaults and absent
// keys keep them.
func TestConfig_LoadTOML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, FileName)
	writeFile(t, path, `
[api]
key = "sk-file"
requests_per_minute = 20

[model]
default = "Gemma"
verbosity = "long"

[retry]
base_delay = "250ms"

[session]
silence_timeout = "8s"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Key != "sk-file" || cfg.API.RequestsPerMinute != 20 {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Model.Default != "Gemma" || cfg.Model.Verbosity != "long" {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Retry.BaseDelay.Std() != 250*time.Millisecond {
		t.Errorf("base_delay = %s", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("max_attempts should keep its default, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Session.SilenceTimeout.Std() != 8*time.Second {
		t.Errorf("silence_timeout = %s", cfg.Session.SilenceTimeout)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config perm = %o, want 600", perm)
	}
}

// TestConfig_LoadRejectsUnknownKeys tests that typos are reported.
func TestConfig_LoadRejectsUnknownKeys(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, FileName), "[api]\nendpiont = \"https://x\"\n")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "api.endpiont") {
		t.Errorf("Load() error = %v, want unknown key", err)
	}
}

// TestConfig_EnvOverrides tests that environment variables beat the file.
func TestConfig_EnvOverrides(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, FileName), "[api]\nkey = \"sk-file\"\n")
	t.Setenv("OPENROUTER_API_KEY", "sk-openrouter")
	t.Setenv("CODECRAFT_VERBOSITY", "short")
	t.Setenv("CODECRAFT_REMOTE_URL", "http://127.0.0.1:8788")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Key != "sk-openrouter" {
		t.Errorf("api.key = %q", cfg.API.Key)
	}
	if cfg.Model.Verbosity != "short" {
		t.Errorf("model.verbosity = %q", cfg.Model.Verbosity)
	}
	if cfg.Remote.URL != "http://127.0.0.1:8788" {
		t.Errorf("remote.url = %q", cfg.Remote.URL)
	}

	// The codecraft-specific key wins over the provider one.
	t.Setenv("CODECRAFT_API_KEY", "sk-codecraft")
	cfg, _ = Load()
	if cfg.API.Key != "sk-codecraft" {
		t.Errorf("api.key = %q, want sk-codecraft", cfg.API.Key)
	}
}

// TestConfig_DotEnv tests that .env in the config dir fills unset variables
// without replacing ones already set.
func TestConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	os.Unsetenv("CODECRAFT_MODEL")
	os.Unsetenv("CODECRAFT_LOG_LEVEL")
	t.Cleanup(func() {
		os.Unsetenv("CODECRAFT_MODEL")
		os.Unsetenv("CODECRAFT_LOG_LEVEL")
	})
	t.Setenv("CODECRAFT_VERBOSITY", "long")
	writeFile(t, filepath.Join(dir, ".env"),
		"CODECRAFT_MODEL=gemma\nCODECRAFT_LOG_LEVEL=debug\nCODECRAFT_VERBOSITY=short\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model.Default != "gemma" {
		t.Errorf("model.default = %q, want gemma from .env", cfg.Model.Default)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug from .env", cfg.Log.Level)
	}
	if cfg.Model.Verbosity != "long" {
		t.Errorf("model.verbosity = %q, the process env should win", cfg.Model.Verbosity)
	}
}

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"valid default config", func(c *Config) {}, ""},
		{"unknown model", func(c *Config) { c.Model.Default = "gpt-9" }, "model.default"},
		{"model display name", func(c *Config) { c.Model.Default = "DeepSeek" }, ""},
		{"bad verbosity", func(c *Config) { c.Model.Verbosity = "chatty" }, "model.verbosity"},
		{"endpoint scheme", func(c *Config) { c.API.Endpoint = "ftp://x" }, "api.endpoint"},
		{"endpoint host", func(c *Config) { c.API.Endpoint = "https://" }, "api.endpoint"},
		{"negative rate", func(c *Config) { c.API.RequestsPerMinute = -1 }, "api.requests_per_minute"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"shrinking backoff", func(c *Config) { c.Retry.Multiplier = 0.5 }, "retry.multiplier"},
		{"silence too short", func(c *Config) { c.Session.SilenceTimeout = Duration(100 * time.Millisecond) }, "session.silence_timeout"},
		{"bad remote", func(c *Config) { c.Remote.URL = "localhost:8788" }, "remote.url"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad driver", func(c *Config) { c.Docstore.Driver = "mysql" }, "docstore.driver"},
		{"postgres without dsn", func(c *Config) { c.Docstore.Driver = docstore.DriverPostgres }, "docstore.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			var errs ValidationErrors
			if !errors.As(err, &errs) {
				t.Fatalf("Validate() error = %v, want ValidationErrors", err)
			}
			if errs[0].Field != tt.field {
				t.Errorf("field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

// TestConfig_ValidateCollectsAll tests that every problem is reported.
func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Model.Verbosity = "x"
	cfg.Log.Level = "x"
	cfg.Retry.MaxAttempts = 99

	var errs ValidationErrors
	if !errors.As(cfg.Validate(), &errs) {
		t.Fatal("expected ValidationErrors")
	}
	if len(errs) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(errs), errs)
	}
}

// TestConfig_GetSet tests Get and Set methods with dot notation.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("model.verbosity")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != "medium" {
		t.Errorf("Get('model.verbosity') = %v, want 'medium'", val)
	}

	if err := cfg.Set("session.silence_timeout", "7s"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Session.SilenceTimeout.Std() != 7*time.Second {
		t.Errorf("silence_timeout = %s", cfg.Session.SilenceTimeout)
	}
	if val, _ := cfg.Get("session.silence_timeout"); val != "7s" {
		t.Errorf("Get('session.silence_timeout') = %v", val)
	}

	if err := cfg.Set("api.requests_per_minute", "30"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.API.RequestsPerMinute != 30 {
		t.Errorf("requests_per_minute = %d", cfg.API.RequestsPerMinute)
	}

	if err := cfg.Set("storage.watch", "off"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Storage.Watch {
		t.Error("storage.watch should be false")
	}

	if _, err := cfg.Get("invalid.key"); err == nil {
		t.Error("Get() with invalid key should return error")
	}
	if err := cfg.Set("retry.base_delay", "soon"); err == nil {
		t.Error("Set() with an invalid duration should return error")
	}
}

// TestConfig_GetAllKeys tests that every key resolves.
func TestConfig_GetAllKeys(t *testing.T) {
	cfg := Default()
	keys := GetAllKeys()
	if len(keys) < 20 {
		t.Fatalf("only %d keys", len(keys))
	}
	for _, k := range keys {
		if _, err := cfg.Get(k); err != nil {
			t.Errorf("Get(%q) error = %v", k, err)
		}
	}
}

// TestConfig_SaveRoundTrip tests that a saved file loads back unchanged.
func TestConfig_SaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	cfg.API.Key = "sk-saved"
	cfg.Session.SilenceTimeout = Duration(9 * time.Second)
	cfg.Storage.Watch = false

	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded = %+v\nwant %+v", loaded, cfg)
	}
}

// TestConfig_StringRedactsSecrets tests that secrets never print.
func TestConfig_StringRedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.API.Key = "sk-very-secret"
	cfg.Docstore.JWTSecret = "jwt-very-secret"

	s := cfg.String()
	if strings.Contains(s, "very-secret") {
		t.Errorf("String() leaked a secret: %s", s)
	}
	if !strings.Contains(s, redacted) {
		t.Error("String() should mark redacted fields")
	}
	if cfg.API.Key != "sk-very-secret" {
		t.Error("String() must not modify the config")
	}
}

// TestConfig_DerivedSettings tests the helpers that feed other packages.
func TestConfig_DerivedSettings(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	if got, _ := cfg.DataDir(); got != dir {
		t.Errorf("DataDir() = %q, want %q", got, dir)
	}
	if got, _ := cfg.LogFile(); got != filepath.Join(dir, "codecraft.log") {
		t.Errorf("LogFile() = %q", got)
	}
	if got, _ := cfg.DocstoreDSN(); got != filepath.Join(dir, "docstore.db") {
		t.Errorf("DocstoreDSN() = %q", got)
	}

	cfg.Retry.BaseDelay = Duration(500 * time.Millisecond)
	if got := cfg.Backoff().Schedule(); got[0] != 500*time.Millisecond || got[1] != time.Second {
		t.Errorf("Backoff().Schedule() = %v", got)
	}

	cfg.Model.MaxTokens = 4096
	m, err := cfg.Registry().Get("gemma")
	if err != nil {
		t.Fatal(err)
	}
	if m.OutputBudget() != 4096 {
		t.Errorf("OutputBudget() = %d, want 4096", m.OutputBudget())
	}
	if cfg.Registry().DefaultID() != "deepseek" {
		t.Error("MaxTokens override changed the default model")
	}
}

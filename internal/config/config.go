// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for codecraft.
//
// Configuration is read from a TOML file, with sensible defaults, .env
// files, environment variable overrides, and validation.
//
// Configuration file location:
//   - $CODECRAFT_HOME/config.toml when CODECRAFT_HOME is set
//   - ~/.codecraft/config.toml otherwise
//   - Built-in defaults when neither exists
package config

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/codecraft-tui/internal/cloud"
	"github.com/jeranaias/codecraft-tui/internal/docstore"
	"github.com/jeranaias/codecraft-tui/internal/registry"
	"github.com/jeranaias/codecraft-tui/internal/session"
	"github.com/jeranaias/codecraft-tui/internal/util"
)

// FileName is the name of the config file inside the config directory.
const FileName = "config.toml"

// redacted replaces secrets in String output.
const redacted = "[REDACTED]"

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration written as a Go duration string ("5s") in
// TOML and JSON.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete codecraft configuration.
type Config struct {
	// Completion service settings
	API APIConfig `toml:"api" json:"api"`

	// Model selection
	Model ModelConfig `toml:"model" json:"model"`

	// Retry policy for failed completion attempts
	Retry RetryConfig `toml:"retry" json:"retry"`

	// Session controller settings
	Session SessionConfig `toml:"session" json:"session"`

	// Local storage settings
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Remote document store used for sync
	Remote RemoteConfig `toml:"remote" json:"remote"`

	// Logging
	Log LogConfig `toml:"log" json:"log"`

	// Self-hosted document store (codecraft serve)
	Docstore DocstoreConfig `toml:"docstore" json:"docstore"`
}

// APIConfig configures the completion service.
type APIConfig struct {
	// Key is the bearer token sent to the completion service.
	Key string `toml:"key" json:"key"`
	// Endpoint is the chat completions URL.
	Endpoint string `toml:"endpoint" json:"endpoint"`
	// Origin is sent as HTTP-Referer.
	Origin string `toml:"origin" json:"origin"`
	// SiteName is sent as X-Title.
	SiteName string `toml:"site_name" json:"site_name"`
	// Timeout bounds the wait for response headers.
	Timeout Duration `toml:"timeout" json:"timeout"`
	// RequestsPerMinute paces outgoing requests (0 = unlimited).
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`
}

// ModelConfig selects the model and verbosity used for new sessions.
type ModelConfig struct {
	// Default is a registry key or display name.
	Default string `toml:"default" json:"default"`
	// Verbosity is "short", "medium" or "long".
	Verbosity string `toml:"verbosity" json:"verbosity"`
	// MaxTokens overrides every model's output budget when positive.
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
}

// RetryConfig is the backoff policy for transport failures.
type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts" json:"max_attempts"`
	BaseDelay   Duration `toml:"base_delay" json:"base_delay"`
	Multiplier  float64  `toml:"multiplier" json:"multiplier"`
}

// SessionConfig configures the session controller.
type SessionConfig struct {
	// SilenceTimeout is how long a stream may stay quiet before it is
	// reported as interrupted.
	SilenceTimeout Duration `toml:"silence_timeout" json:"silence_timeout"`
}

// StorageConfig configures the conversation store.
type StorageConfig struct {
	// DataDir holds chats.json, prefs.json and credentials (empty = config dir).
	DataDir string `toml:"data_dir" json:"data_dir"`
	// Watch reloads the store when another process changes it.
	Watch bool `toml:"watch" json:"watch"`
}

// RemoteConfig points at a document store for sync.
type RemoteConfig struct {
	// URL of the docstore server (empty = sync disabled).
	URL string `toml:"url" json:"url"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level" json:"level"`
	// File is the log path (empty = <data_dir>/codecraft.log).
	File string `toml:"file" json:"file"`
}

// DocstoreConfig configures `codecraft serve`.
type DocstoreConfig struct {
	Listen    string   `toml:"listen" json:"listen"`
	Driver    string   `toml:"driver" json:"driver"`
	DSN       string   `toml:"dsn" json:"dsn"`
	JWTSecret string   `toml:"jwt_secret" json:"jwt_secret"`
	TokenTTL  Duration `toml:"token_ttl" json:"token_ttl"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	backoff := cloud.DefaultBackoff()
	return &Config{
		API: APIConfig{
			Endpoint: cloud.DefaultEndpoint,
			Origin:   cloud.DefaultOrigin,
			SiteName: cloud.DefaultSiteName,
			Timeout:  Duration(cloud.DefaultHeaderTimeout),
		},
		Model: ModelConfig{
			Default:   registry.Default().DefaultID(),
			Verbosity: string(registry.DefaultMode),
		},
		Retry: RetryConfig{
			MaxAttempts: backoff.MaxAttempts,
			BaseDelay:   Duration(backoff.BaseDelay),
			Multiplier:  backoff.Multiplier,
		},
		Session: SessionConfig{
			SilenceTimeout: Duration(session.DefaultSilenceTimeout),
		},
		Storage: StorageConfig{
			Watch: true,
		},
		Log: LogConfig{
			Level: "info",
		},
		Docstore: DocstoreConfig{
			Listen:   docstore.DefaultListen,
			Driver:   docstore.DriverSQLite,
			TokenTTL: Duration(docstore.DefaultTokenTTL),
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the codecraft configuration directory path.
func ConfigDir() (string, error) {
	if home := os.Getenv("CODECRAFT_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".codecraft"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// DataDir returns Storage.DataDir, or the config directory when unset.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return expandHome(c.Storage.DataDir)
	}
	return ConfigDir()
}

// LogFile returns Log.File, or codecraft.log in the data directory.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return expandHome(c.Log.File)
	}
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "codecraft.log"), nil
}

// DocstoreDSN returns Docstore.DSN, defaulting to docstore.db in the data
// directory for sqlite.
func (c *Config) DocstoreDSN() (string, error) {
	if c.Docstore.DSN != "" || c.Docstore.Driver != docstore.DriverSQLite {
		return c.Docstore.DSN, nil
	}
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "docstore.db"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ensureSecurePermissions tightens a config file to 0600 since it may hold
// API keys.
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

// Load reads .env files, the config file (when present) and environment
// overrides, then validates the result.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from path. A missing file yields the
// defaults with environment overrides applied.
func LoadFromPath(path string) (*Config, error) {
	LoadDotEnv(".env", filepath.Join(filepath.Dir(path), ".env"))

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
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
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the
// process environment. Variables that are already set win. Missing files
// are skipped.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not read %s: %v\n", p, err)
		}
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# codecraft configuration file\n")
	b.WriteString("# Generated by codecraft - edit with care\n")
	b.WriteString("#\n")
	b.WriteString("# Environment variables (CODECRAFT_*, OPENROUTER_API_KEY) override these values.\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
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

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if err := validateURL(c.API.Endpoint); err != nil {
		add("api.endpoint", "%v", err)
	}
	if c.API.Timeout < 0 {
		add("api.timeout", "must not be negative")
	}
	if c.API.RequestsPerMinute < 0 {
		add("api.requests_per_minute", "must not be negative")
	}

	if _, err := registry.Default().Resolve(c.Model.Default); err != nil {
		add("model.default", "unknown model %q (available: %s)", c.Model.Default, strings.Join(registry.Default().IDs(), ", "))
	}
	if _, err := registry.ParseMode(c.Model.Verbosity); err != nil {
		add("model.verbosity", "must be one of short, medium, long")
	}
	if c.Model.MaxTokens < 0 {
		add("model.max_tokens", "must not be negative")
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		add("retry.max_attempts", "must be between 1 and 10")
	}
	if c.Retry.BaseDelay < 0 {
		add("retry.base_delay", "must not be negative")
	}
	if c.Retry.Multiplier < 1 {
		add("retry.multiplier", "must be at least 1")
	}

	if c.Session.SilenceTimeout.Std() < time.Second {
		add("session.silence_timeout", "must be at least 1s")
	}

	if c.Remote.URL != "" {
		if err := validateURL(c.Remote.URL); err != nil {
			add("remote.url", "%v", err)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "must be one of debug, info, warn, error")
	}

	switch c.Docstore.Driver {
	case docstore.DriverSQLite:
	case docstore.DriverPostgres:
		if c.Docstore.DSN == "" {
			add("docstore.dsn", "required for the postgres driver")
		}
	default:
		add("docstore.driver", "must be %q or %q", docstore.DriverSQLite, docstore.DriverPostgres)
	}
	if c.Docstore.TokenTTL.Std() < time.Minute {
		add("docstore.token_ttl", "must be at least 1m")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %q", raw)
	}
	return nil
}

// SetDefaults fills zero values that a partial file or an empty override
// left behind.
func (c *Config) SetDefaults() {
	d := Default()
	if c.API.Endpoint == "" {
		c.API.Endpoint = d.API.Endpoint
	}
	if c.API.Origin == "" {
		c.API.Origin = d.API.Origin
	}
	if c.API.SiteName == "" {
		c.API.SiteName = d.API.SiteName
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = d.API.Timeout
	}
	if c.Model.Default == "" {
		c.Model.Default = d.Model.Default
	}
	if c.Model.Verbosity == "" {
		c.Model.Verbosity = d.Model.Verbosity
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = d.Retry.Multiplier
	}
	if c.Session.SilenceTimeout == 0 {
		c.Session.SilenceTimeout = d.Session.SilenceTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Docstore.Listen == "" {
		c.Docstore.Listen = d.Docstore.Listen
	}
	if c.Docstore.Driver == "" {
		c.Docstore.Driver = d.Docstore.Driver
	}
	if c.Docstore.TokenTTL == 0 {
		c.Docstore.TokenTTL = d.Docstore.TokenTTL
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - OPENROUTER_API_KEY, CODECRAFT_API_KEY: api.key (the latter wins)
//   - CODECRAFT_ENDPOINT: api.endpoint
//   - CODECRAFT_MODEL: model.default
//   - CODECRAFT_VERBOSITY: model.verbosity
//   - CODECRAFT_REMOTE_URL: remote.url
//   - CODECRAFT_DATA_DIR: storage.data_dir
//   - CODECRAFT_LOG_LEVEL: log.level
//   - CODECRAFT_JWT_SECRET: docstore.jwt_secret
//   - CODECRAFT_DB_DRIVER: docstore.driver
//   - CODECRAFT_DB_DSN: docstore.dsn
func (c *Config) ApplyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"OPENROUTER_API_KEY", &c.API.Key},
		{"CODECRAFT_API_KEY", &c.API.Key},
		{"CODECRAFT_ENDPOINT", &c.API.Endpoint},
		{"CODECRAFT_MODEL", &c.Model.Default},
		{"CODECRAFT_VERBOSITY", &c.Model.Verbosity},
		{"CODECRAFT_REMOTE_URL", &c.Remote.URL},
		{"CODECRAFT_DATA_DIR", &c.Storage.DataDir},
		{"CODECRAFT_LOG_LEVEL", &c.Log.Level},
		{"CODECRAFT_JWT_SECRET", &c.Docstore.JWTSecret},
		{"CODECRAFT_DB_DRIVER", &c.Docstore.Driver},
		{"CODECRAFT_DB_DSN", &c.Docstore.DSN},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// Backoff returns the retry policy.
func (c *Config) Backoff() cloud.BackoffPolicy {
	return cloud.BackoffPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay.Std(),
		Multiplier:  c.Retry.Multiplier,
	}
}

// Registry returns the model catalog with Model.MaxTokens applied.
func (c *Config) Registry() *registry.Registry {
	if c.Model.MaxTokens <= 0 {
		return registry.Default()
	}
	models := registry.Default().List()
	for i := range models {
		models[i].MaxTokens = c.Model.MaxTokens
	}
	return registry.New(models...)
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "api.endpoint").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	if d, ok := field.Interface().(Duration); ok {
		return d.String(), nil
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "model.default").
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from a value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(strVal))
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				lower := strings.ToLower(strVal)
				boolVal = lower == "yes" || lower == "on"
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := strings.Split(f.Tag.Get("toml"), ",")[0]
			if prefix != "" {
				name = prefix + "." + name
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, name)
				continue
			}
			keys = append(keys, name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// IsSecret reports whether key holds a credential.
func IsSecret(key string) bool {
	return key == "api.key" || key == "docstore.jwt_secret" || key == "docstore.dsn"
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as JSON with secrets redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// Redacted returns a copy with credentials masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.API.Key != "" {
		safe.API.Key = redacted
	}
	if safe.Docstore.JWTSecret != "" {
		safe.Docstore.JWTSecret = redacted
	}
	if safe.Docstore.DSN != "" && safe.Docstore.Driver == docstore.DriverPostgres {
		safe.Docstore.DSN = redacted
	}
	return safe
}

// Package config handles process configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Environment variables consulted by LoadFromEnv.
const (
	EnvDatabasePath = "SQLITE_PROVIDER_PATH"
	EnvStatePath    = "SQLITE_PROVIDER_STATE"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
)

// DefaultStatePath is where the CLI keeps host state when nothing else is configured.
const DefaultStatePath = ".sqlite-provider/state.db"

// Config holds process-level settings. Provider configuration proper (the
// database path) arrives through the lifecycle protocol; DatabasePath here
// is only the environment fallback.
type Config struct {
	DatabasePath string // fallback database path (SQLITE_PROVIDER_PATH)
	StatePath    string // host state store path (default ".sqlite-provider/state.db")
	LogLevel     string // log level: debug, info, warn, error (default "info")
	LogFormat    string // log format: text (default) or json

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LookupEnv resolves environment fallbacks from the loaded configuration,
// so the database path trimmed by LoadFromEnv is the one a provider sees.
func (c *Config) LookupEnv(key string) (string, bool) {
	if key == EnvDatabasePath {
		return c.DatabasePath, c.DatabasePath != ""
	}
	return os.LookupEnv(key)
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DatabasePath: strings.TrimSpace(os.Getenv(EnvDatabasePath)),
		StatePath:    strings.TrimSpace(os.Getenv(EnvStatePath)),
		LogLevel:     os.Getenv(EnvLogLevel),
		LogFormat:    os.Getenv(EnvLogFormat),
	}

	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown %s %q, using info", EnvLogLevel, cfg.LogLevel))
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if f := strings.ToLower(cfg.LogFormat); f != "text" && f != "json" {
		return nil, fmt.Errorf("unsupported %s %q: use 'text' or 'json'", EnvLogFormat, cfg.LogFormat)
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Package config loads runtime configuration from an optional YAML
// file and environment variables. Environment variables always win
// over file values; defaults apply when neither is set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the order ledger.
type Config struct {
	Port     int
	LogLevel string

	SnapshotPath     string
	AutosaveInterval time.Duration
	AuditDBPath      string

	EnforceSession  bool
	SessionTimezone string

	// MaxOrderQuantity registers a built-in quantity limit risk check
	// when greater than zero.
	MaxOrderQuantity float64

	WSSendBuffer    int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// fileConfig mirrors Config for the optional YAML file. Pointer fields
// distinguish "not set" from zero values.
type fileConfig struct {
	Port     *int    `yaml:"port"`
	LogLevel *string `yaml:"log_level"`

	SnapshotPath     *string        `yaml:"snapshot_path"`
	AutosaveInterval *time.Duration `yaml:"autosave_interval"`
	AuditDBPath      *string        `yaml:"audit_db_path"`

	EnforceSession  *bool   `yaml:"enforce_session"`
	SessionTimezone *string `yaml:"session_timezone"`

	MaxOrderQuantity *float64 `yaml:"max_order_quantity"`

	WSSendBuffer    *int           `yaml:"ws_send_buffer"`
	ReadTimeout     *time.Duration `yaml:"read_timeout"`
	WriteTimeout    *time.Duration `yaml:"write_timeout"`
	IdleTimeout     *time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout *time.Duration `yaml:"shutdown_timeout"`
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables. It returns an
// error for an unreadable file or any invalid value.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             8080,
		LogLevel:         "info",
		SnapshotPath:     "data/orders.json",
		AutosaveInterval: 30 * time.Second,
		SessionTimezone:  "America/New_York",
		WSSendBuffer:     64,
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     10 * time.Second,
		IdleTimeout:      60 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid log level: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.AutosaveInterval <= 0 {
		return nil, fmt.Errorf("autosave interval must be positive, got %s", cfg.AutosaveInterval)
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setIf(&cfg.Port, fc.Port)
	setIf(&cfg.LogLevel, fc.LogLevel)
	setIf(&cfg.SnapshotPath, fc.SnapshotPath)
	setIf(&cfg.AutosaveInterval, fc.AutosaveInterval)
	setIf(&cfg.AuditDBPath, fc.AuditDBPath)
	setIf(&cfg.EnforceSession, fc.EnforceSession)
	setIf(&cfg.SessionTimezone, fc.SessionTimezone)
	setIf(&cfg.MaxOrderQuantity, fc.MaxOrderQuantity)
	setIf(&cfg.WSSendBuffer, fc.WSSendBuffer)
	setIf(&cfg.ReadTimeout, fc.ReadTimeout)
	setIf(&cfg.WriteTimeout, fc.WriteTimeout)
	setIf(&cfg.IdleTimeout, fc.IdleTimeout)
	setIf(&cfg.ShutdownTimeout, fc.ShutdownTimeout)

	return nil
}

func applyEnv(cfg *Config) error {
	var err error

	if cfg.Port, err = getInt("PORT", cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.LogLevel = getStr("LOG_LEVEL", cfg.LogLevel)
	cfg.SnapshotPath = getStr("SNAPSHOT_PATH", cfg.SnapshotPath)
	if cfg.AutosaveInterval, err = getDuration("AUTOSAVE_INTERVAL", cfg.AutosaveInterval); err != nil {
		return fmt.Errorf("invalid AUTOSAVE_INTERVAL: %w", err)
	}
	cfg.AuditDBPath = getStr("AUDIT_DB_PATH", cfg.AuditDBPath)
	if cfg.EnforceSession, err = getBool("ENFORCE_SESSION", cfg.EnforceSession); err != nil {
		return fmt.Errorf("invalid ENFORCE_SESSION: %w", err)
	}
	cfg.SessionTimezone = getStr("SESSION_TIMEZONE", cfg.SessionTimezone)
	if cfg.MaxOrderQuantity, err = getFloat("MAX_ORDER_QUANTITY", cfg.MaxOrderQuantity); err != nil {
		return fmt.Errorf("invalid MAX_ORDER_QUANTITY: %w", err)
	}
	if cfg.WSSendBuffer, err = getInt("WS_SEND_BUFFER", cfg.WSSendBuffer); err != nil {
		return fmt.Errorf("invalid WS_SEND_BUFFER: %w", err)
	}
	if cfg.ReadTimeout, err = getDuration("READ_TIMEOUT", cfg.ReadTimeout); err != nil {
		return fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}
	if cfg.WriteTimeout, err = getDuration("WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}
	if cfg.IdleTimeout, err = getDuration("IDLE_TIMEOUT", cfg.IdleTimeout); err != nil {
		return fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

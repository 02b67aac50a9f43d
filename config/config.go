/*
Package config loads application configuration with viper.

PURPOSE:
  Centralizes every tunable of the payroll engine: HTTP server settings,
  the SQLite path, CORS origins, and the reconciliation knobs that the
  domain deliberately exposes as configuration (anomaly threshold and
  ordering) instead of hiding as constants.

SOURCES, in precedence order:
  1. Environment variables with prefix PAYROLL_ (PAYROLL_HTTP_PORT, ...)
  2. An optional payroll.yaml in the working directory or /etc/payroll
  3. Built-in defaults
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	HTTP           HTTPConfig
	Database       DatabaseConfig
	Log            LogConfig
	Reconciliation ReconciliationConfig
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// ReconciliationConfig exposes the anomaly knobs as explicit settings.
type ReconciliationConfig struct {
	// ThresholdPercent is the minimum |change %| flagged as an anomaly.
	// "0" flags any non-zero change.
	ThresholdPercent string

	// AnomalyOrder is "employee_id" or "magnitude".
	AnomalyOrder string
}

// Threshold parses ThresholdPercent as a decimal.
func (r ReconciliationConfig) Threshold() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(r.ThresholdPercent)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid reconciliation threshold %q: %w", r.ThresholdPercent, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("reconciliation threshold %q must not be negative", r.ThresholdPercent)
	}
	return d, nil
}

// Load reads configuration from the environment and optional config file.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.cors_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("database.path", "payroll.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("reconciliation.threshold_percent", "0")
	v.SetDefault("reconciliation.anomaly_order", "employee_id")

	v.SetEnvPrefix("PAYROLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("payroll")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/payroll")
	if err := v.ReadInConfig(); err != nil {
		// The config file is optional; only a malformed file is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:         v.GetInt("http.port"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
			CORSOrigins:  v.GetStringSlice("http.cors_origins"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Reconciliation: ReconciliationConfig{
			ThresholdPercent: v.GetString("reconciliation.threshold_percent"),
			AnomalyOrder:     v.GetString("reconciliation.anomaly_order"),
		},
	}

	if _, err := cfg.Reconciliation.Threshold(); err != nil {
		return nil, err
	}
	switch cfg.Reconciliation.AnomalyOrder {
	case "employee_id", "magnitude":
	default:
		return nil, fmt.Errorf("invalid anomaly order %q (want employee_id or magnitude)", cfg.Reconciliation.AnomalyOrder)
	}

	return cfg, nil
}

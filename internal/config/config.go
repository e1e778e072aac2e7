package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Auth
	JWTSecret string

	// Ledger
	SessionStartMonth time.Month
	PaidWindow        string

	// Archive
	RestoreMode     string
	MaxArchiveBytes int64

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment and, when LEDGER_CONFIG names
// one, a TOML file. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8081")
	v.SetDefault("rate_limit_per_minute", 30)
	v.SetDefault("sqlite_db_path", "./data/ledger.db")
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "ledger")
	v.SetDefault("amqp_queue", "ledger_events")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("session_start_month", 4)
	v.SetDefault("paid_window", "session")
	v.SetDefault("restore_mode", "additive")
	v.SetDefault("max_archive_bytes", int64(100<<20))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetConfigType("toml")
	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{
		Port:               v.GetString("port"),
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),
		SQLiteDBPath:       v.GetString("sqlite_db_path"),
		AMQPURL:            v.GetString("amqp_url"),
		AMQPExchange:       v.GetString("amqp_exchange"),
		AMQPQueue:          v.GetString("amqp_queue"),
		JWTSecret:          v.GetString("jwt_secret"),
		SessionStartMonth:  time.Month(v.GetInt("session_start_month")),
		PaidWindow:         strings.ToLower(v.GetString("paid_window")),
		RestoreMode:        strings.ToLower(v.GetString("restore_mode")),
		MaxArchiveBytes:    v.GetInt64("max_archive_bytes"),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          strings.ToLower(v.GetString("log_format")),
	}, nil
}

// Validate validates the configuration and returns all problems at once
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT secret must be at least 16 characters")
	}

	if c.SessionStartMonth < time.January || c.SessionStartMonth > time.December {
		errors = append(errors, fmt.Sprintf("invalid session start month %d: must be between 1 and 12", c.SessionStartMonth))
	}
	if c.PaidWindow != "session" && c.PaidWindow != "calendar-year" {
		errors = append(errors, fmt.Sprintf("invalid paid window '%s': must be 'session' or 'calendar-year'", c.PaidWindow))
	}
	if c.RestoreMode != "additive" && c.RestoreMode != "replace" {
		errors = append(errors, fmt.Sprintf("invalid restore mode '%s': must be 'additive' or 'replace'", c.RestoreMode))
	}
	if c.MaxArchiveBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max archive bytes %d: must be positive", c.MaxArchiveBytes))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks only what the event worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the worker")
	}
	if c.PaidWindow != "session" && c.PaidWindow != "calendar-year" {
		errors = append(errors, fmt.Sprintf("invalid paid window '%s': must be 'session' or 'calendar-year'", c.PaidWindow))
	}
	if c.SessionStartMonth < time.January || c.SessionStartMonth > time.December {
		errors = append(errors, fmt.Sprintf("invalid session start month %d: must be between 1 and 12", c.SessionStartMonth))
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

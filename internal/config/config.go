package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Log      LogConfig
	Recalc   RecalcConfig
	Import   ImportConfig
	Accuracy AccuracyConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
	// MaxAge is how long browsers may cache a preflight response, in seconds.
	MaxAge int
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  zerolog.Level
	Format string // "json" or "console"
}

// RecalcConfig controls bulk position recalculation.
type RecalcConfig struct {
	// Workers bounds how many distinct positions a bulk run recalculates at once.
	Workers int
	// Schedule is a cron expression with a seconds field. Empty disables the scheduled sweep.
	Schedule string
}

// AccuracyConfig controls the estimate accuracy audit.
type AccuracyConfig struct {
	// AuditSchedule is a cron expression with a seconds field. Empty disables the scheduled audit.
	AuditSchedule string
}

// ImportConfig holds broker feed import settings.
type ImportConfig struct {
	// ParentAccountName is the root account that receives one child per imported broker account.
	ParentAccountName string
	// BrokerURL is the base URL of the broker API used by pull imports. Empty disables them.
	BrokerURL string
	// BrokerToken is sent as a bearer token to the broker API.
	BrokerToken string
}

// ScheduleParser parses cron expressions with a leading seconds field.
var ScheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	format := getEnv("LOG_FORMAT", "json")
	if format != "json" && format != "console" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: must be json or console", format)
	}

	workers, err := strconv.Atoi(getEnv("RECALC_WORKERS", "1"))
	if err != nil || workers < 1 {
		return nil, fmt.Errorf("invalid RECALC_WORKERS: must be a positive integer")
	}

	corsMaxAge, err := strconv.Atoi(getEnv("CORS_MAX_AGE", "300"))
	if err != nil || corsMaxAge < 0 {
		return nil, fmt.Errorf("invalid CORS_MAX_AGE: must be a non-negative integer")
	}

	schedule, err := getSchedule("RECALC_SCHEDULE")
	if err != nil {
		return nil, err
	}
	auditSchedule, err := getSchedule("ACCURACY_AUDIT_SCHEDULE")
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/fundval.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost")),
			MaxAge:         corsMaxAge,
		},
		Log: LogConfig{
			Level:  level,
			Format: format,
		},
		Recalc: RecalcConfig{
			Workers:  workers,
			Schedule: schedule,
		},
		Import: ImportConfig{
			ParentAccountName: getEnv("IMPORT_PARENT_ACCOUNT", "Broker Import"),
			BrokerURL:         strings.TrimRight(os.Getenv("BROKER_API_URL"), "/"),
			BrokerToken:       os.Getenv("BROKER_API_TOKEN"),
		},
		Accuracy: AccuracyConfig{
			AuditSchedule: auditSchedule,
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getSchedule reads an optional cron expression and checks that it parses.
func getSchedule(key string) (string, error) {
	schedule := os.Getenv(key)
	if schedule == "" {
		return "", nil
	}
	if _, err := ScheduleParser.Parse(schedule); err != nil {
		return "", fmt.Errorf("invalid %s: %w", key, err)
	}
	return schedule, nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

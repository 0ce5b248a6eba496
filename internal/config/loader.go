package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers supported by the service.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures environment driven configuration values for the library service.
type Config struct {
	HTTPPort      int
	StorageDriver string
	SQLiteDSN     string
	PostgresDSN   string
	SessionTTL    time.Duration
	SweepInterval time.Duration

	AssistantAPIKey  string
	AssistantBaseURL string
	AssistantModel   string

	LogLevel  string
	LogFormat string
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields while validating required
// values and reporting every missing or malformed entry at once.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      8080,
		StorageDriver: DriverSQLite,
		SQLiteDSN:     "file:library.db?_pragma=foreign_keys(1)",
		SessionTTL:    24 * time.Hour,
		SweepInterval: 5 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "json",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("LIBRARY_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "LIBRARY_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := strings.ToLower(strings.TrimSpace(os.Getenv("LIBRARY_STORAGE_DRIVER"))); driver != "" {
		switch driver {
		case DriverSQLite, DriverPostgres:
			cfg.StorageDriver = driver
		default:
			invalid = append(invalid, "LIBRARY_STORAGE_DRIVER")
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("LIBRARY_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.PostgresDSN = strings.TrimSpace(os.Getenv("LIBRARY_POSTGRES_DSN"))
	if cfg.StorageDriver == DriverPostgres && cfg.PostgresDSN == "" {
		missing = append(missing, "LIBRARY_POSTGRES_DSN")
	}

	if ttlValue := strings.TrimSpace(os.Getenv("LIBRARY_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "LIBRARY_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if intervalValue := strings.TrimSpace(os.Getenv("LIBRARY_SWEEP_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "LIBRARY_SWEEP_INTERVAL")
		} else {
			cfg.SweepInterval = interval
		}
	}

	cfg.AssistantAPIKey = strings.TrimSpace(os.Getenv("LIBRARY_ASSISTANT_API_KEY"))
	cfg.AssistantBaseURL = strings.TrimSpace(os.Getenv("LIBRARY_ASSISTANT_BASE_URL"))
	cfg.AssistantModel = strings.TrimSpace(os.Getenv("LIBRARY_ASSISTANT_MODEL"))

	if level := strings.TrimSpace(os.Getenv("LIBRARY_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if format := strings.TrimSpace(os.Getenv("LIBRARY_LOG_FORMAT")); format != "" {
		cfg.LogFormat = format
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

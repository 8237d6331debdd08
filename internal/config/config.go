package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Calendar backends.
const (
	BackendGoogle = "google"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds the infrastructure settings read from the environment.
type Config struct {
	CalendarBackend string
	SQLitePath      string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	MetricsAddr     string
	ConfigPath      string
}

// Load loads configuration from environment variables only.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from an optional .env file and environment variables.
func LoadWithFile(envFile string) (*Config, error) {
	// Attempt to load .env file if provided, but don't fail if it doesn't exist.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	redisDB, err := parseRedisDB(os.Getenv("REDIS_DB"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CalendarBackend: strings.ToLower(strings.TrimSpace(os.Getenv("CALENDAR_BACKEND"))),
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		ConfigPath:      os.Getenv("CONFIG_PATH"),
	}
	if cfg.CalendarBackend == "" {
		cfg.CalendarBackend = BackendGoogle
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required fields are set.
func (c *Config) Validate() error {
	switch c.CalendarBackend {
	case BackendGoogle, BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	case "":
		return fmt.Errorf("CALENDAR_BACKEND is required")
	default:
		return fmt.Errorf("CALENDAR_BACKEND must be one of %s, %s, %s: got %q",
			BackendGoogle, BackendSQLite, BackendMemory, c.CalendarBackend)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must not be negative")
	}
	return nil
}

// UseRedis reports whether bookings are serialized through Redis.
func (c *Config) UseRedis() bool {
	return c.RedisAddr != ""
}

// parseRedisDB converts REDIS_DB, defaulting to 0 when empty.
func parseRedisDB(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("REDIS_DB must be an integer: %w", err)
	}
	return n, nil
}

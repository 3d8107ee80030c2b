package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"energy-analytics/pkg/database"
)

// Config holds the application configuration
type Config struct {
	Logging  LoggingConfig
	Data     DataConfig
	Server   ServerConfig
	Database DatabaseConfig
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

// DataConfig locates the raw sources and tunes the analysis
type DataConfig struct {
	Dir         string
	CatalogPath string // empty means the embedded default catalog
	Workers     int
	TopN        *int // nil keeps the catalog's top_n
}

// TopNOverride returns TOP_N when it was set explicitly
func (d DataConfig) TopNOverride() (int, bool) {
	if d.TopN == nil {
		return 0, false
	}
	return *d.TopN, true
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds optional persistence settings
type DatabaseConfig struct {
	Enabled         bool
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadConfig reads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level: strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		},
		Data: DataConfig{
			Dir:         getEnvOrDefault("DATA_DIR", "./data"),
			CatalogPath: getEnvOrDefault("CATALOG_PATH", ""),
		},
		Server: ServerConfig{
			Host: getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Driver:   getEnvOrDefault("DB_DRIVER", database.DriverPostgres),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Database: getEnvOrDefault("DB_NAME", "energy"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
			Path:     getEnvOrDefault("DB_PATH", "energy.db"),
		},
	}

	var err error
	if cfg.Data.Workers, err = getEnvInt("NORMALIZE_WORKERS", 1); err != nil {
		return nil, err
	}
	if cfg.Data.TopN, err = getEnvOptionalInt("TOP_N"); err != nil {
		return nil, err
	}
	if cfg.Server.Port, err = getEnvInt("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Server.ReadTimeout, err = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Database.Enabled, err = getEnvBool("DB_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.Database.Port, err = getEnvInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.Database.ConnMaxLifetime, err = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Database.ConnMaxIdleTime, err = getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges and cross-field constraints
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	if strings.TrimSpace(c.Data.Dir) == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.Data.Workers < 1 {
		return fmt.Errorf("NORMALIZE_WORKERS must be at least 1 (got %d)", c.Data.Workers)
	}
	if n, ok := c.Data.TopNOverride(); ok && n < 0 {
		return fmt.Errorf("TOP_N must not be negative (got %d)", n)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}

	if !c.Database.Enabled {
		return nil
	}
	switch c.Database.Driver {
	case database.DriverPostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for the postgres driver")
		}
	case database.DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q (got %q)", database.DriverPostgres, database.DriverSQLite, c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS (%d) exceeds DB_MAX_OPEN_CONNS (%d)", c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	return nil
}

// DatabaseConnConfig converts the persistence settings into a connection config
func (c *Config) DatabaseConnConfig() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return n, nil
}

func getEnvOptionalInt(key string) (*int, error) {
	if os.Getenv(key) == "" {
		return nil, nil
	}
	n, err := getEnvInt(key, 0)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

// Package config defines the server configuration and its loader.
//
// Keys are flat so that every setting maps to one AGENDA_ environment
// variable, e.g. daily_capacity <-> AGENDA_DAILY_CAPACITY.
package config

import (
	"fmt"
	"time"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the record store backend.
	StorageDriver string `koanf:"storage_driver"`

	SQLitePath       string `koanf:"sqlite_path"`
	PostgresDSN      string `koanf:"postgres_dsn"`
	PostgresMaxConns int    `koanf:"postgres_max_conns"`

	// DailyCapacity is the number of people allowed off on one day.
	DailyCapacity int `koanf:"daily_capacity"`

	// CacheTTL bounds how stale read screens may be. Zero disables caching.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// AdminPassword guards the import and diagnostics endpoints. Empty
	// disables them.
	AdminPassword string `koanf:"admin_password"`

	// CORSOrigins lists allowed browser origins. Empty allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	ReservationsTable string `koanf:"reservations_table"`
	EmployeesTable    string `koanf:"employees_table"`

	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":8080",
		StorageDriver:     DriverSQLite,
		SQLitePath:        "agenda.db",
		PostgresMaxConns:  10,
		DailyCapacity:     3,
		CacheTTL:          5 * time.Second,
		ReservationsTable: "agenda",
		EmployeesTable:    "empleados",
		MetricsEnabled:    true,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DailyCapacity < 1:
		return fmt.Errorf("%w: daily_capacity must be at least 1, got %d", ErrInvalidConfig, c.DailyCapacity)
	case c.CacheTTL < 0:
		return fmt.Errorf("%w: cache_ttl must not be negative", ErrInvalidConfig)
	case c.ReservationsTable == "" || c.EmployeesTable == "":
		return fmt.Errorf("%w: table names must not be empty", ErrInvalidConfig)
	case c.ReservationsTable == c.EmployeesTable:
		return fmt.Errorf("%w: reservations_table and employees_table must differ", ErrInvalidConfig)
	}

	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the postgres driver", ErrInvalidConfig)
		}
		if c.PostgresMaxConns < 1 {
			return fmt.Errorf("%w: postgres_max_conns must be positive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	}
	return nil
}

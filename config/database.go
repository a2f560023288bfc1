package config

import (
	"fmt"
	"strings"
	"time"
)

// VendorPostgres is the only database vendor this build supports.
const VendorPostgres = "postgres"

// DBConfig contains the monitored database configuration. The engine
// keeps its own tables in the same database the controls inspect.
type DBConfig struct {
	Vendor   string `env:"VENDOR"   envDefault:"postgres"`
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	Name     string `env:"NAME"     envDefault:"rapo"`
	Username string `env:"USERNAME" envDefault:"rapo"`
	Password string `env:"PASSWORD" envDefault:"rapo"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production

	// Pool settings. Control statements can hold connections for a long
	// time, so the pool is sized for the scheduler's control parallelism
	// plus API traffic.
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"     envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"  envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME" envDefault:"5m"`

	// RunMigrationsOnStart controls whether the application automatically
	// applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// Validate rejects vendors this build was not compiled against.
func (c *DBConfig) Validate() error {
	if strings.ToLower(strings.TrimSpace(c.Vendor)) != VendorPostgres {
		return fmt.Errorf("unsupported database vendor %q (this build supports %q only)",
			c.Vendor, VendorPostgres)
	}
	if c.Name == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

// CacheConfig contains the optional Redis cache configuration. When
// disabled, API projections always read the database directly.
type CacheConfig struct {
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`

	// TTL bounds staleness of cached catalog and run projections.
	TTL time.Duration `env:"TTL" envDefault:"60s"`
}

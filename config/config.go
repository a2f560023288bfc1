package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Values come from three layers, strongest first: environment variables
// (RAPO_*), the INI file (~/.rapo/rapo.ini or $RAPO_CONFIG), and the
// envDefault tags below. See ini.go for the file layer and the
// individual domain config files for available variables:
//   - database.go: monitored database and cache configuration
//   - http.go: web API configuration
//   - services.go: service mode, scheduler and reaper configuration
//   - logging.go: log level and destination
type AppConfig struct {
	// IsDev controls development mode behavior (verbose errors, relaxed
	// token checks never happen here; dev mode only widens logging).
	IsDev bool `env:"RAPO_DEV" envDefault:"false"`

	// Database is the monitored database where controls run and every
	// engine table lives.
	Database DBConfig `envPrefix:"RAPO_DB_"`

	// Cache is the optional Redis read-through cache for catalog and
	// run projections served by the web API.
	Cache CacheConfig `envPrefix:"RAPO_CACHE_"`

	// API is the web API server configuration.
	API APIConfig

	// Services is a comma-delimited list of enabled services.
	Services string `env:"RAPO_SERVICES" envDefault:"api,scheduler,reaper"`

	// Scheduler configuration.
	Scheduler SchedulerConfig

	// Reaper configuration.
	Reaper ReaperConfig

	// Logging configuration.
	Logging LoggingConfig

	// Observability configuration.
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from the
// environment and the INI file. Call it after both layers are applied.
func (c *AppConfig) Sanitize() {
	c.API.Sanitize()
	c.Scheduler.Sanitize()
	c.Reaper.Sanitize()
	c.Logging.Sanitize()
	c.Observability.Sanitize()
	c.detectDevMode()
}

// detectDevMode checks RAPO_DEV and the conventional RAPO_ENV fallback.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		env := strings.ToLower(os.Getenv("RAPO_ENV"))
		c.IsDev = env == "development" || env == "dev"
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *AppConfig) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if _, err := c.GetEnabledServices(); err != nil {
		return err
	}
	return nil
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsAPIEnabled returns true if the web API service is enabled.
func (c *AppConfig) IsAPIEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeAPI]
}

// IsSchedulerEnabled returns true if the scheduler service is enabled.
func (c *AppConfig) IsSchedulerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeScheduler]
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReaper]
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeAPI runs the web API server.
	ServiceModeAPI ServiceMode = "api"
	// ServiceModeScheduler runs the control scheduler.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeReaper runs the reaper for checkpoint and temp table cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeAPI, ServiceModeScheduler, ServiceModeReaper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeAPI, ServiceModeScheduler, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: api, scheduler, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// SchedulerConfig contains control scheduler configuration.
type SchedulerConfig struct {
	// ControlParallelism is the number of controls run concurrently.
	ControlParallelism int `env:"RAPO_SCHEDULER_CONTROL_PARALLELISM" envDefault:"4"`

	// DispatchQueueSize bounds the queue between the tick loop and the
	// control workers. A full queue makes the tick skip the control.
	DispatchQueueSize int `env:"RAPO_SCHEDULER_DISPATCH_QUEUE_SIZE" envDefault:"100"`

	// RefreshInterval is how often the in-memory schedule snapshot is
	// rebuilt from the configuration table.
	RefreshInterval time.Duration `env:"RAPO_SCHEDULER_REFRESH_INTERVAL" envDefault:"5m"`

	// MaintenanceInterval is how often retention cleanup runs over all
	// configured controls.
	MaintenanceInterval time.Duration `env:"RAPO_SCHEDULER_MAINTENANCE_INTERVAL" envDefault:"24h"`

	// DatabaseReportInterval is how often connection pool statistics are
	// written to the log. Zero disables the report.
	DatabaseReportInterval time.Duration `env:"RAPO_SCHEDULER_DB_REPORT_INTERVAL" envDefault:"5m"`

	// RecordCheckInterval is how often the scheduler re-reads its own
	// singleton record. A record cleared or reassigned from outside
	// stops the loop.
	RecordCheckInterval time.Duration `env:"RAPO_SCHEDULER_RECORD_CHECK_INTERVAL" envDefault:"10s"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.ControlParallelism < 1 {
		s.ControlParallelism = 1
	}
	if s.DispatchQueueSize < 1 {
		s.DispatchQueueSize = 1
	}
	if s.RefreshInterval < time.Minute {
		s.RefreshInterval = time.Minute
	}
	if s.MaintenanceInterval < time.Hour {
		s.MaintenanceInterval = time.Hour
	}
	if s.DatabaseReportInterval < 0 {
		s.DatabaseReportInterval = 0
	}
	if s.RecordCheckInterval < time.Second {
		s.RecordCheckInterval = 10 * time.Second
	}
}

// ReaperConfig contains reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"RAPO_REAPER_INTERVAL" envDefault:"5m"`

	// CheckpointMaxAge is how long a checkpoint may exist before the
	// reaper releases it. Checkpoints outliving their run mean the run
	// died without cleanup.
	CheckpointMaxAge time.Duration `env:"RAPO_REAPER_CHECKPOINT_MAX_AGE" envDefault:"24h"`

	// HungRunMaxAge is how long a run may stay non-terminal before the
	// reaper marks it failed.
	HungRunMaxAge time.Duration `env:"RAPO_REAPER_HUNG_RUN_MAX_AGE" envDefault:"24h"`

	// TempTableMaxAge is how long temp tables of a finished run may
	// linger before the reaper drops them.
	TempTableMaxAge time.Duration `env:"RAPO_REAPER_TEMP_TABLE_MAX_AGE" envDefault:"24h"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.CheckpointMaxAge < time.Hour {
		r.CheckpointMaxAge = time.Hour
	}
	if r.HungRunMaxAge < time.Hour {
		r.HungRunMaxAge = time.Hour
	}
	if r.TempTableMaxAge < time.Hour {
		r.TempTableMaxAge = time.Hour
	}
}

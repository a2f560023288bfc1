// Command rapo runs the control engine: the 1 Hz scheduler, the web API
// and the reaper, in any combination the configuration enables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/t3eHawk/rapo/config"
	"github.com/t3eHawk/rapo/internal/bootstrap"
)

type cliFlags struct {
	Stop          bool
	Force         bool
	APIOnly       bool
	SchedulerOnly bool
}

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func parseFlags() cliFlags {
	var flags cliFlags
	flag.BoolVar(&flags.Stop, "stop", false,
		"release the scheduler record, signalling a running scheduler to stop, then exit")
	flag.BoolVar(&flags.Force, "force", false,
		"seize the scheduler record even when another scheduler holds it")
	flag.BoolVar(&flags.APIOnly, "api-only", false,
		"run only the web API regardless of the configured services")
	flag.BoolVar(&flags.SchedulerOnly, "scheduler-only", false,
		"run only the scheduler regardless of the configured services")
	flag.Parse()
	return flags
}

func run(ctx context.Context, startupLogger *slog.Logger) error {
	flags := parseFlags()

	cfg, warnings, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(&cfg, flags)

	logger, logCloser, err := bootstrap.BuildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := logCloser.Close(); cerr != nil {
			startupLogger.ErrorContext(ctx, "close log file failed", "error", cerr)
		}
	}()
	for _, warning := range warnings {
		logger.WarnContext(ctx, warning)
	}

	logStartupInfo(ctx, logger, &cfg)

	if err = bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}

	db, err := bootstrap.ConnectDB(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()

	if flags.Stop {
		return bootstrap.ReleaseScheduler(ctx, db, logger)
	}

	redisClient, err := bootstrap.ConnectRedis(cfg.Cache, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	if cfg.Database.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	services := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
	defer bootstrap.CloseMetrics(services.Observability, logger)

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:         &cfg,
		Services:       services,
		DB:             db,
		Logger:         logger,
		ForceScheduler: flags.Force,
	})
}

// applyFlagOverrides narrows the enabled services when an exclusive
// mode flag is set.
func applyFlagOverrides(cfg *config.AppConfig, flags cliFlags) {
	switch {
	case flags.APIOnly:
		cfg.Services = string(config.ServiceModeAPI)
	case flags.SchedulerOnly:
		cfg.Services = string(config.ServiceModeScheduler)
	}
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	enabledServices := bootstrap.GetEnabledServices(cfg)
	logger.InfoContext(ctx, "starting rapo",
		"db_host", cfg.Database.Host,
		"db_port", cfg.Database.Port,
		"db_name", cfg.Database.Name,
		"enabled_services", enabledServices)
}

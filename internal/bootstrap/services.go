package bootstrap

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/t3eHawk/rapo/config"
	"github.com/t3eHawk/rapo/internal/data"
	"github.com/t3eHawk/rapo/internal/observability/notify/pagerduty"
	"github.com/t3eHawk/rapo/internal/observability/notify/slack"
	"github.com/t3eHawk/rapo/internal/observability/statsd"
	"github.com/t3eHawk/rapo/internal/service"
	"github.com/t3eHawk/rapo/internal/service/failurenotifier"
	"github.com/t3eHawk/rapo/internal/service/runner"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Controls      *service.ControlService
	Reader        *service.ReaderService
	Runner        *runner.Runner
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB             *sql.DB
	ControlRepo    *data.ControlRepo
	RunRepo        *data.RunRepo
	CheckpointRepo *data.CheckpointRepo
	CatalogRepo    *data.CatalogRepo
	ReaperRepo     *data.ReaperRepo
	Executor       *data.Executor
	CacheRepo      *data.RedisCacheRepo
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "rapo",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	failureNotifier := buildFailureNotifier(obsLogger, cfg.Notifications)

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: failureNotifier,
		NotifierConfig:  cfg.Notifications,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient) *serviceRepositories {
	repos := &serviceRepositories{
		DB:             db,
		ControlRepo:    data.NewControlRepo(db),
		RunRepo:        data.NewRunRepo(db),
		CheckpointRepo: data.NewCheckpointRepo(db),
		CatalogRepo:    data.NewCatalogRepo(db),
		ReaperRepo:     data.NewReaperRepo(db),
		Executor:       data.NewExecutor(db),
	}
	if redisClient != nil {
		repos.CacheRepo = data.NewRedisCacheRepo(redisClient)
	}
	return repos
}

// NewServices wires repositories, observability adapters and the
// domain services of the engine.
func NewServices(deps *ServiceDeps) ServiceContainer {
	if deps == nil {
		return ServiceContainer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	observability := buildObservability(logger, appCfg.Observability)
	repos := buildRepositories(deps.DB, deps.RedisClient)
	repos.Executor.Logger = logger.With("component", "control_executor")

	controlOpts := service.ControlServiceOptions{
		Controls: repos.ControlRepo,
		Catalog:  repos.CatalogRepo,
		Executor: repos.Executor,
		Logger:   logger.With("component", "control_service"),
	}
	readerOpts := service.ReaderServiceOptions{
		Controls: repos.ControlRepo,
		Runs:     repos.RunRepo,
		Catalog:  repos.CatalogRepo,
		CacheTTL: appCfg.Cache.TTL,
		Logger:   logger.With("component", "reader_service"),
	}
	if repos.CacheRepo != nil {
		controlOpts.Cache = repos.CacheRepo
		readerOpts.Cache = repos.CacheRepo
	}

	runRunner := runner.MustNewRunner(runner.Options{
		Controls:    repos.ControlRepo,
		Runs:        repos.RunRepo,
		Checkpoints: repos.CheckpointRepo,
		Executor:    repos.Executor,
		Notifier:    observability.FailureNotifier,
		Metrics:     observability.MetricsSink,
		Logger:      logger.With("component", "run_lifecycle"),
		Debug:       appCfg.IsDev,
	})

	return ServiceContainer{
		Controls:      service.MustNewControlService(controlOpts),
		Reader:        service.MustNewReaderService(readerOpts),
		Runner:        runRunner,
		Observability: observability,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			RunURLPrefix: cfg.Slack.RunURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name:   "slack",
				Sink:   client,
				Filter: cfg.Slack.Filter,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name:   "pagerduty",
				Sink:   client,
				Filter: cfg.PagerDuty.Filter,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

// CloseMetrics flushes and closes the statsd client, when one exists.
func CloseMetrics(container ObservabilityContainer, logger *slog.Logger) {
	if container.MetricsSink == nil {
		return
	}
	if err := container.MetricsSink.Close(); err != nil && logger != nil {
		logger.Warn("closing statsd client", "error", err)
	}
}

package bootstrap

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t3eHawk/rapo/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetEnabledServices(t *testing.T) {
	cfg := &config.AppConfig{Services: "api,reaper"}

	names := GetEnabledServices(cfg)

	assert.ElementsMatch(t, []string{"api", "reaper"}, names)
}

func TestGetEnabledServices_NilConfig(t *testing.T) {
	assert.Empty(t, GetEnabledServices(nil))
}

func TestValidateServiceConfig(t *testing.T) {
	cfg := &config.AppConfig{Services: "api,scheduler,reaper"}
	assert.NoError(t, ValidateServiceConfig(cfg))

	bad := &config.AppConfig{Services: "api,rules-engine"}
	assert.Error(t, ValidateServiceConfig(bad))

	assert.Error(t, ValidateServiceConfig(nil))
}

func TestBuildFailureNotifier_DisabledHasNoSinks(t *testing.T) {
	notifier := buildFailureNotifier(testLogger(), config.ObservabilityNotificationsConfig{})

	require.NotNil(t, notifier)
	assert.False(t, notifier.Enabled())
}

func TestBuildObservability_MetricsDisabled(t *testing.T) {
	container := buildObservability(testLogger(), config.ObservabilityConfig{})

	assert.Nil(t, container.MetricsSink)
	require.NotNil(t, container.FailureNotifier)
}

func TestBuildLogger_JSONFormat(t *testing.T) {
	logger, closer, err := BuildLogger(config.LoggingConfig{Level: "debug", Format: "json"})

	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NoError(t, closer.Close())
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}

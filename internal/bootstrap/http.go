package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/user"
	"time"

	"github.com/t3eHawk/rapo/config"
	"github.com/t3eHawk/rapo/internal/adapters/oidc"
	"github.com/t3eHawk/rapo/internal/core"
	"github.com/t3eHawk/rapo/internal/data"
	httpx "github.com/t3eHawk/rapo/internal/http"
	"golang.org/x/net/netutil"
)

// HTTPServerConfig contains configuration for the web API server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// StartHTTPServer builds the router, occupies the web API owner record
// and starts serving on a connection-limited listener. Returns the
// server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, fmt.Errorf("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	apiCfg := cfg.Config.API

	auth := httpx.BearerConfig{Token: apiCfg.Token}
	if apiCfg.OIDCIssuer != "" {
		discoverCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		verifier, err := oidc.NewVerifier(discoverCtx, oidc.Config{
			Issuer:   apiCfg.OIDCIssuer,
			ClientID: apiCfg.OIDCClientID,
		})
		if err != nil {
			return nil, fmt.Errorf("configure oidc verifier: %w", err)
		}
		auth.Verifier = verifier
		logger.Info("oidc token verification enabled", "issuer", apiCfg.OIDCIssuer)
	}
	if !auth.Protected() {
		logger.Warn("web api runs without authentication; set RAPO_API_TOKEN")
	}

	services := httpx.RouterServices{
		Launcher: cfg.Services.Runner,
		Controls: cfg.Services.Controls,
		Reader:   cfg.Services.Reader,
		Auth:     auth,
		Logger:   logger,
	}
	if apiCfg.CompressionEnabled {
		logger.Info("http compression enabled", "level", apiCfg.CompressionLevel)
		services.Compression = &httpx.CompressionConfig{Level: apiCfg.CompressionLevel}
	}

	handler := httpx.NewRouter(services)

	listener, err := net.Listen("tcp", apiCfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", apiCfg.Addr, err)
	}
	listener = netutil.LimitListener(listener, apiCfg.MaxConnections)

	record := data.NewWebAPIRecordRepo(cfg.DB)
	if err := occupyWebAPIRecord(context.Background(), record, logger); err != nil {
		_ = listener.Close()
		return nil, err
	}

	server := &http.Server{
		Addr:         apiCfg.Addr,
		Handler:      handler,
		ReadTimeout:  apiCfg.ReadTimeout,
		WriteTimeout: apiCfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting web api server",
			"addr", apiCfg.Addr,
			"max_connections", apiCfg.MaxConnections,
		)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("web api server failed", "error", err)
		}
	}()

	return server, nil
}

// occupyWebAPIRecord claims the singleton web API owner record so
// operators can see where the API runs.
func occupyWebAPIRecord(ctx context.Context, record core.ProcessRecordRepository, logger *slog.Logger) error {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	username := "unknown"
	if u, userErr := user.Current(); userErr == nil {
		username = u.Username
	}
	if _, err := record.Occupy(ctx, core.OccupyRecordParams{
		Server:   host,
		Username: username,
		PID:      os.Getpid(),
		Force:    true,
	}); err != nil {
		return fmt.Errorf("occupy web api record: %w", err)
	}
	logger.InfoContext(ctx, "web api record occupied", "server", host, "pid", os.Getpid())
	return nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	DB      *sql.DB
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the web API server and
// releases its owner record.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down web api server")
	}

	shutdownCtx, cancel := context.WithTimeout(cfg.Context, 10*time.Second)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.DB != nil {
		record := data.NewWebAPIRecordRepo(cfg.DB)
		if err := record.Release(shutdownCtx, os.Getpid()); err != nil && cfg.Logger != nil {
			cfg.Logger.Warn("releasing web api record", "error", err)
		}
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("web api server stopped")
	}

	return nil
}

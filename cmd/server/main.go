/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll compliance engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (env + optional payroll.yaml)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Wire the approval state machine and reconciliation engine
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION:
  Environment variables with prefix PAYROLL_ override payroll.yaml,
  which overrides the defaults. See config/config.go.

  PAYROLL_HTTP_PORT=8080
  PAYROLL_DATABASE_PATH=payroll.db   (":memory:" for in-memory)
  PAYROLL_LOG_LEVEL=info
  PAYROLL_RECONCILIATION_THRESHOLD_PERCENT=0

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Domain services
	threshold, err := cfg.Reconciliation.Threshold()
	if err != nil {
		logger.Fatal("invalid reconciliation config", zap.Error(err))
	}
	stateMachine := payroll.NewStateMachine(store, store, logger)
	engine := &payroll.Engine{
		Threshold: threshold,
		Order:     payroll.AnomalyOrder(cfg.Reconciliation.AnomalyOrder),
	}

	// HTTP layer
	handler := api.NewHandler(store, store, store, stateMachine, engine, logger)
	router := api.NewRouter(handler, api.RouterConfig{CORSOrigins: cfg.HTTP.CORSOrigins}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.HTTP.Port),
			zap.String("database", cfg.Database.Path))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

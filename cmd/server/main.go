/*
main.go - Application entry point

PURPOSE:
  Starts the team agenda server. Loads configuration, opens the record
  store, wires the service and router, and shuts down gracefully.

STARTUP SEQUENCE:
  1. Load config (defaults, -config file, AGENDA_* env)
  2. Initialize the global logger
  3. Open the record store (memory, sqlite or postgres)
  4. Create metrics manager, service and handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML or TOML config file (default: $AGENDA_CONFIG)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # SQLite file in the working directory
  ./server

  # Postgres, capacity 4
  AGENDA_STORAGE_DRIVER=postgres \
  AGENDA_POSTGRES_DSN=postgres://agenda@localhost/agenda \
  AGENDA_DAILY_CAPACITY=4 ./server

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/agenda/agenda"
	"github.com/warp/agenda/api"
	"github.com/warp/agenda/config"
	"github.com/warp/agenda/generic"
	"github.com/warp/agenda/generic/store"
	"github.com/warp/agenda/logger"
	"github.com/warp/agenda/metrics"
	"github.com/warp/agenda/store/postgres"
	"github.com/warp/agenda/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML or TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	ctx := context.Background()

	// Initialize store
	rs, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(ctx, "failed to open store", logger.String("driver", cfg.StorageDriver), logger.Error(err))
	}
	defer rs.Close()

	svcOpts := []agenda.ServiceOption{agenda.WithLogger(logger.Named("agenda"))}
	routerCfg := api.RouterConfig{CORSOrigins: cfg.CORSOrigins, Logger: log}
	if cfg.MetricsEnabled {
		m := metrics.NewManager(metrics.WithRuntimeCollectors())
		svcOpts = append(svcOpts, agenda.WithServiceRecorder(m))
		routerCfg.Observer = m
		routerCfg.MetricsHandler = m.Handler()
	}

	svc := agenda.NewService(rs, agenda.Config{
		ReservationsTable: cfg.ReservationsTable,
		EmployeesTable:    cfg.EmployeesTable,
		Capacity:          cfg.DailyCapacity,
		CacheTTL:          cfg.CacheTTL,
	}, svcOpts...)

	handler := api.NewHandler(svc,
		api.WithAdminPassword(cfg.AdminPassword),
		api.WithHandlerLogger(logger.Named("api")),
	)
	if cfg.AdminPassword == "" {
		log.Warn(ctx, "admin_password is empty, admin routes are disabled")
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.NewRouter(handler, routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info(ctx, "server starting",
			logger.String("addr", cfg.Addr),
			logger.String("driver", cfg.StorageDriver),
			logger.Int("daily_capacity", svc.Capacity()),
			logger.Duration("cache_ttl", cfg.CacheTTL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(ctx, "server failed", logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server forced to shutdown", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// openStore opens the configured record store backend.
func openStore(ctx context.Context, cfg *config.Config) (generic.RecordStore, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return store.NewMemory(), nil
	case config.DriverSQLite:
		return sqlite.New(cfg.SQLitePath)
	case config.DriverPostgres:
		openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return postgres.Open(openCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	}
	return nil, fmt.Errorf("%w: unknown storage_driver %q", config.ErrInvalidConfig, cfg.StorageDriver)
}

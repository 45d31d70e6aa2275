/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the booking engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize logging
  3. Open the task catalog store (SQLite or PostgreSQL)
  4. Connect the shared catalog cache (Redis, optional)
  5. Create API handler and router
  6. Start the catalog refresher (optional)
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SERVER_PORT)
  -db      SQLite database path (overrides SQLITE_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  See config/config.go. DB_DRIVER=postgres with DATABASE_URL selects
  PostgreSQL; REDIS_ADDR enables the shared catalog cache.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the refresher, close Redis and the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/booking.db"

  # Run against PostgreSQL with a shared cache
  DB_DRIVER=postgres DATABASE_URL=postgres://... REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Environment variables
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carepoint/booking-engine/api"
	"github.com/carepoint/booking-engine/config"
	"github.com/carepoint/booking-engine/logging"
	"github.com/carepoint/booking-engine/store/postgres"
	"github.com/carepoint/booking-engine/store/redis"
	"github.com/carepoint/booking-engine/store/sqlite"
	"github.com/rs/zerolog/log"
)

// store is what both database drivers provide.
type store interface {
	api.Store
	Close() error
}

func main() {
	cfg := config.Load()

	// Flags
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.SQLitePath, "SQLite database path")
	flag.Parse()
	cfg.Server.Port = *port
	cfg.Database.SQLitePath = *dbPath

	logging.Init("booking-engine", cfg.Env, cfg.LogLevel)

	ctx := context.Background()

	// Initialize store
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to initialize database")
	}
	defer st.Close()

	opts := []api.HandlerOption{
		api.WithCatalogTTL(cfg.Catalog.TTL),
		api.WithLocation(cfg.Location()),
		api.WithLogger(log.Logger),
	}

	// Shared catalog cache
	if cfg.Redis.Addr != "" {
		client, err := redis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("shared catalog cache disabled")
		} else {
			defer client.Close()
			opts = append(opts, api.WithSharedCache(redis.NewTaskCache(client, "")))
			log.Info().Str("addr", cfg.Redis.Addr).Msg("shared catalog cache enabled")
		}
	}

	// Initialize handler
	handler := api.NewHandler(st, opts...)

	refresher := api.NewCatalogRefresher(handler.Catalog, cfg.Catalog.RefreshInterval).WithLogger(log.Logger)
	refresher.Start()
	defer refresher.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("env", cfg.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		pg, err := postgres.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case "sqlite", "":
		return sqlite.New(cfg.Database.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Database.Driver)
	}
}

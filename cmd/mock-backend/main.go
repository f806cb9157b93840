/*
main.go - Mock Backend Service entry point

PURPOSE:
  Serves the Backend Service REST surface from a local SQLite file so the
  gateway can run without the hosted service.

STARTUP SEQUENCE:
  1. Load .env, environment and flags
  2. Open (and migrate) the SQLite store
  3. Seed demo data into an empty store when enabled
  4. Serve /api with graceful shutdown

COMMAND-LINE FLAGS (override MOCK_* environment variables):
  -addr        HTTP listen address (default :8090)
  -db          SQLite database path (default leave.db, ":memory:" allowed)
  -jwt-secret  HMAC key for issued tokens (required)
  -token-ttl   Issued token lifetime (default 24h)
  -seed        Load demo data on start (default true)
  -scenario    Reset the store and load this demo scenario instead

EXAMPLES:
  ./mock-backend -jwt-secret=dev-secret -db=":memory:"
  ./mock-backend -jwt-secret=dev-secret -scenario=approval-backlog

  Every seeded account uses the password "password123".

SEE ALSO:
  - mockbackend/server.go: Routes
  - mockbackend/seed.go: Demo scenarios
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/mockbackend"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadMockBackend(os.Args[0], os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	switch {
	case cfg.Scenario != "":
		if err := mockbackend.LoadScenario(ctx, store, cfg.Scenario, time.Now()); err != nil {
			return err
		}
		logger.Info("scenario loaded", zap.String("scenario", cfg.Scenario))
	case cfg.Seed:
		seeded, err := mockbackend.Seed(ctx, store, time.Now())
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if seeded {
			logger.Info("demo data loaded", zap.String("password", mockbackend.DemoPassword))
		}
	}

	tokens := mockbackend.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	srv := mockbackend.NewServer(store, tokens, logger)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("mock backend starting", zap.String("addr", cfg.Addr), zap.String("db", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("mock backend stopped")
	return nil
}

/*
main.go - Leave gateway entry point

PURPOSE:
  Starts the gateway the View Layer talks to. Each login opens a session
  that holds the Backend Service token, the principal and its working set
  of leave records. Handles configuration, dependency injection, and
  graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, environment and flags
  2. Build the logger and the prometheus registry
  3. Create the session engine over the backend client
  4. Start the idle-session sweeper
  5. Configure the HTTP router and serve

COMMAND-LINE FLAGS (override LEAVE_* environment variables):
  -addr         HTTP listen address (default :8080)
  -backend      Backend Service base URL, including /api
  -allocation   Annual allocation in days (default 25)
  -origins      Comma-separated CORS origins
  -log-level    debug|info|warn|error
  -dev          Development log encoder
  -session-ttl  Idle session lifetime (default 8h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper and log every session out
  4. Exit

EXAMPLES:
  # Against a local mock backend
  ./server -backend=http://localhost:8090/api -dev

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings and their sources
  - cmd/mock-backend: local Backend Service
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/backend"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/metrics"
	"github.com/warp/leave-engine/session"
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
	cfg, err := config.LoadGateway(os.Args[0], os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// One backend client per session; tokens are never shared.
	connect := func(token string) session.Backend {
		return backend.New(cfg.BackendURL,
			backend.WithToken(token),
			backend.WithLogger(logger),
			backend.WithMetrics(m))
	}
	engine := session.NewEngine(connect, cfg.Allocation,
		session.WithLogger(logger),
		session.WithMetrics(m))

	sessions := api.NewSessions(cfg.SessionTTL, m, logger)
	sweeper := api.NewSweeper(sessions, time.Minute, logger)
	sweeper.Start()

	handler := api.NewHandler(engine, sessions, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("gateway starting",
			zap.String("addr", cfg.Addr),
			zap.String("backend", cfg.BackendURL),
			zap.Duration("session_ttl", cfg.SessionTTL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		sweeper.Stop()
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownErr := server.Shutdown(ctx)
	sweeper.Stop()
	sessions.CloseAll()
	if shutdownErr != nil {
		return fmt.Errorf("forced shutdown: %w", shutdownErr)
	}
	logger.Info("gateway stopped")
	return nil
}

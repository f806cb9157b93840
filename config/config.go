/*
config.go - Process configuration for the gateway and the mock backend

PURPOSE:
  One place that turns .env files, environment variables and command-line
  flags into typed settings. Later sources override earlier ones:

    defaults  <  .env  <  environment  <  flags

ENVIRONMENT:
  Gateway:
    LEAVE_ADDR             listen address (default :8080)
    LEAVE_BACKEND_URL      Backend Service base URL, including /api
    LEAVE_ALLOCATION       annual allocation in days (default 25)
    LEAVE_ALLOWED_ORIGINS  comma-separated CORS origins
    LEAVE_LOG_LEVEL        debug|info|warn|error (default info)
    LEAVE_DEV              true for the development log encoder
    LEAVE_SESSION_TTL      idle session lifetime (default 8h)

  Mock backend:
    MOCK_ADDR              listen address (default :8090)
    MOCK_DB                SQLite path, ":memory:" allowed
    MOCK_JWT_SECRET        HMAC key for issued tokens
    MOCK_SEED              true to load demo data on start
    MOCK_SCENARIO          reset and load this demo scenario instead

SEE ALSO:
  - cmd/server/main.go
  - cmd/mock-backend/main.go
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Gateway struct {
	Addr           string
	BackendURL     string
	Allocation     int
	AllowedOrigins []string
	LogLevel       string
	Dev            bool
	SessionTTL     time.Duration
}

type MockBackend struct {
	Addr      string
	DBPath    string
	JWTSecret string
	TokenTTL  time.Duration
	Seed      bool
	Scenario  string
	LogLevel  string
	Dev       bool
}

// LoadDotEnv loads the given .env files into the environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadGateway reads gateway settings from the environment, then applies
// flags parsed from args.
func LoadGateway(fsName string, args []string) (Gateway, error) {
	cfg := Gateway{
		Addr:           envString("LEAVE_ADDR", ":8080"),
		BackendURL:     envString("LEAVE_BACKEND_URL", "http://localhost:8090/api"),
		LogLevel:       envString("LEAVE_LOG_LEVEL", "info"),
		AllowedOrigins: splitList(envString("LEAVE_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
	}
	var err error
	if cfg.Allocation, err = envInt("LEAVE_ALLOCATION", 25); err != nil {
		return Gateway{}, err
	}
	if cfg.Dev, err = envBool("LEAVE_DEV", false); err != nil {
		return Gateway{}, err
	}
	if cfg.SessionTTL, err = envDuration("LEAVE_SESSION_TTL", 8*time.Hour); err != nil {
		return Gateway{}, err
	}

	origins := strings.Join(cfg.AllowedOrigins, ",")
	set := flag.NewFlagSet(fsName, flag.ContinueOnError)
	set.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	set.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "Backend Service base URL")
	set.IntVar(&cfg.Allocation, "allocation", cfg.Allocation, "annual leave allocation in days")
	set.StringVar(&origins, "origins", origins, "comma-separated CORS origins")
	set.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	set.BoolVar(&cfg.Dev, "dev", cfg.Dev, "development logging")
	set.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "idle session lifetime")
	if err := set.Parse(args); err != nil {
		return Gateway{}, err
	}
	cfg.AllowedOrigins = splitList(origins)

	return cfg, cfg.Validate()
}

func (c Gateway) Validate() error {
	if c.BackendURL == "" {
		return errors.New("config: backend URL is required")
	}
	if c.Allocation < 0 {
		return fmt.Errorf("config: allocation must not be negative, got %d", c.Allocation)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: session TTL must be positive, got %s", c.SessionTTL)
	}
	return nil
}

// LoadMockBackend reads mock backend settings from the environment, then
// applies flags parsed from args.
func LoadMockBackend(fsName string, args []string) (MockBackend, error) {
	cfg := MockBackend{
		Addr:      envString("MOCK_ADDR", ":8090"),
		DBPath:    envString("MOCK_DB", "leave.db"),
		JWTSecret: envString("MOCK_JWT_SECRET", ""),
		Scenario:  envString("MOCK_SCENARIO", ""),
		LogLevel:  envString("LEAVE_LOG_LEVEL", "info"),
	}
	var err error
	if cfg.Seed, err = envBool("MOCK_SEED", true); err != nil {
		return MockBackend{}, err
	}
	if cfg.Dev, err = envBool("LEAVE_DEV", false); err != nil {
		return MockBackend{}, err
	}
	if cfg.TokenTTL, err = envDuration("MOCK_TOKEN_TTL", 24*time.Hour); err != nil {
		return MockBackend{}, err
	}

	set := flag.NewFlagSet(fsName, flag.ContinueOnError)
	set.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	set.StringVar(&cfg.DBPath, "db", cfg.DBPath, `SQLite database path (":memory:" for in-memory)`)
	set.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC key for issued tokens")
	set.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "issued token lifetime")
	set.BoolVar(&cfg.Seed, "seed", cfg.Seed, "load demo data on start")
	set.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "reset the store and load this demo scenario")
	set.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	set.BoolVar(&cfg.Dev, "dev", cfg.Dev, "development logging")
	if err := set.Parse(args); err != nil {
		return MockBackend{}, err
	}

	if cfg.JWTSecret == "" {
		return MockBackend{}, errors.New("config: MOCK_JWT_SECRET (or -jwt-secret) is required")
	}
	return cfg, nil
}

// =============================================================================
// ENV HELPERS
// =============================================================================

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package app

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process configuration, read from GATE_* environment
// variables with workable defaults for local development.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Issuer is the externally reachable base URL advertised in discovery
	// documents and used in WWW-Authenticate challenges.
	Issuer string

	// StoreBackend selects the storage driver: "sqlite" or "memory".
	StoreBackend string

	// SQLitePath is the database file when the sqlite backend is active.
	SQLitePath string

	CodeTTL         time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ClientSecretTTL time.Duration

	// LoginResponse selects how a successful login answers: "json" or
	// "redirect".
	LoginResponse string

	// ShutdownGrace bounds the drain on SIGTERM; open sessions are closed
	// and the listener stops accepting within this window.
	ShutdownGrace time.Duration

	// HousekeepingInterval is how often expired codes and tokens are
	// purged.
	HousekeepingInterval time.Duration

	// Env tags log output, e.g. "dev" or "prod".
	Env string

	LogLevel  string
	LogFormat string

	// Bootstrap account seeded at startup when both fields are set.
	BootstrapEmail    string
	BootstrapPassword string
	BootstrapName     string
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	cfg := Config{
		Addr:              getEnvOrDefault("GATE_ADDR", ":8080"),
		Issuer:            getEnvOrDefault("GATE_ISSUER", "http://localhost:8080"),
		StoreBackend:      getEnvOrDefault("GATE_STORE", "sqlite"),
		SQLitePath:        getEnvOrDefault("GATE_SQLITE_PATH", "recordgate.db"),
		LoginResponse:     getEnvOrDefault("GATE_LOGIN_RESPONSE", "json"),
		Env:               getEnvOrDefault("GATE_ENV", "prod"),
		LogLevel:          getEnvOrDefault("GATE_LOG_LEVEL", "info"),
		LogFormat:         getEnvOrDefault("GATE_LOG_FORMAT", "json"),
		BootstrapEmail:    os.Getenv("GATE_BOOTSTRAP_EMAIL"),
		BootstrapPassword: os.Getenv("GATE_BOOTSTRAP_PASSWORD"),
		BootstrapName:     getEnvOrDefault("GATE_BOOTSTRAP_NAME", "Administrator"),
	}

	var err error
	if cfg.CodeTTL, err = getEnvDuration("GATE_CODE_TTL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = getEnvDuration("GATE_ACCESS_TOKEN_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = getEnvDuration("GATE_REFRESH_TOKEN_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ClientSecretTTL, err = getEnvDuration("GATE_CLIENT_SECRET_TTL", 365*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownGrace, err = getEnvDuration("GATE_SHUTDOWN_GRACE", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HousekeepingInterval, err = getEnvDuration("GATE_HOUSEKEEPING_INTERVAL", 5*time.Minute); err != nil {
		return Config{}, err
	}

	switch cfg.StoreBackend {
	case "sqlite", "memory":
	default:
		return Config{}, fmt.Errorf("config: unknown store backend %q", cfg.StoreBackend)
	}
	switch cfg.LoginResponse {
	case "json", "redirect":
	default:
		return Config{}, fmt.Errorf("config: unknown login response mode %q", cfg.LoginResponse)
	}

	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	// Accept bare seconds as well as Go duration syntax.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

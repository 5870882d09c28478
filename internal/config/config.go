// Package config reads service settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendFile   = "file"
	BackendMemory = "memory"
)

type Config struct {
	Address         string
	Port            int
	DataFile        string
	StoreBackend    string
	LogLevel        string
	MetricsEnabled  bool
	MetricsToken    string
	WriteRateLimit  int
	WriteRateWindow time.Duration
	ShutdownTimeout time.Duration
}

// Addr is the listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Load reads .env (if any) and then the process environment. Variables that
// are already set take precedence over .env entries.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Address:      getenv("ADDRESS", "0.0.0.0"),
		DataFile:     getenv("DATA_FILE", "data.json"),
		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", BackendFile)),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		MetricsToken: os.Getenv("METRICS_TOKEN"),
	}

	var err error
	if cfg.Port, err = intEnv("PORT", 8000); err != nil {
		return Config{}, err
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("PORT out of range: %d", cfg.Port)
	}
	if cfg.MetricsEnabled, err = boolEnv("METRICS_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.WriteRateLimit, err = intEnv("WRITE_RATE_LIMIT", 0); err != nil {
		return Config{}, err
	}
	if cfg.WriteRateWindow, err = durationEnv("WRITE_RATE_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	switch cfg.StoreBackend {
	case BackendFile:
		if cfg.DataFile == "" {
			return Config{}, fmt.Errorf("DATA_FILE must not be empty")
		}
	case BackendMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", k, v, err)
	}
	return n, nil
}

func boolEnv(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", k, v, err)
	}
	return b, nil
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", k, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", k, v)
	}
	return d, nil
}

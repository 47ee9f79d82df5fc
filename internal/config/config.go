// Package config reads process settings from the environment. A .env file
// in the working directory, when present, is loaded first; variables already
// set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DBPath          string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// WriteLimit requests per WriteWindow, per client and route.
	WriteLimit  int
	WriteWindow time.Duration
}

// Load reads .env (if any) and then the CHORELEDGER_* variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the CHORELEDGER_* variables, applying defaults for unset ones.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:      getEnv("CHORELEDGER_PORT", "8080"),
		DBPath:    getEnv("CHORELEDGER_DB_PATH", "choreledger.db"),
		LogLevel:  getEnv("CHORELEDGER_LOG_LEVEL", "info"),
		LogFormat: getEnv("CHORELEDGER_LOG_FORMAT", "text"),
	}

	var err error
	if cfg.ShutdownTimeout, err = durationEnv("CHORELEDGER_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.WriteWindow, err = durationEnv("CHORELEDGER_WRITE_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.WriteLimit, err = intEnv("CHORELEDGER_WRITE_LIMIT", 60); err != nil {
		return Config{}, err
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("CHORELEDGER_LOG_FORMAT: want text or json, got %q", cfg.LogFormat)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid positive integer %q", key, v)
	}
	return n, nil
}

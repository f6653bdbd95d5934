package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/operon-dev/operon/internal/logging"
)

// Config holds server configuration, loaded from environment variables.
type Config struct {
	DBPath   string `env:"OPERON_DB_PATH"`
	LogLevel string `env:"OPERON_LOG_LEVEL" envDefault:"info"`
}

func operonDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".operon"
	}
	return filepath.Join(home, ".operon")
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(operonDir(), "journal.db")
	}
	return cfg, nil
}

// newLogger builds the process logger: JSON to stderr (stdout carries the
// MCP transport) with call correlation attrs pulled from the context.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

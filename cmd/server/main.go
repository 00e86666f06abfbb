// Package main is the entry point of the StudySync API server.
//
// main stays minimal:
//  1. Load configuration
//  2. Build the logger
//  3. Make sure the database directory exists
//  4. Build and start the server
//
// Everything else lives under internal/.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/studysync/studysync-server/internal/config"
	"github.com/studysync/studysync-server/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet; the config decides its format.
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := setupLogger(cfg.Env)
	slog.SetDefault(logger)

	// os.MkdirAll is mkdir -p. Skipped for in-memory databases.
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupLogger picks the handler by environment:
//
//	local → text, debug
//	dev   → JSON, debug
//	prod  → JSON, info
func setupLogger(env string) *slog.Logger {
	switch env {
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes a config file when none exists, migrates the history database and creates the stem cache.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config := r.loadOrCreateConfig(configPath)

	r.logger.Info("initializing history", "path", config.Database.Path)
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if config.Database.Path != ":memory:" {
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	}
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := os.MkdirAll(config.Cache.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create stem cache directory: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	backend := services.NewBackendService(config.Backend.BaseURL, r.httpClient)
	if err := backend.Ping(pingCtx); err != nil {
		r.logger.Warn("separation backend is not reachable yet", "url", config.Backend.BaseURL, "error", err)
	}

	r.logger.Info("setup complete", "config", configPath, "database", config.Database.Path, "cache", config.Cache.Dir)
	r.writePlain("✓ Configuration: %s\n", configPath)
	r.writePlain("✓ History database: %s\n", config.Database.Path)
	r.writePlain("✓ Stem cache: %s\n", config.Cache.Dir)
	r.writePlainln("Next steps:")
	r.writePlain("1. Point backend.base_url at your separation server (currently %s)\n", config.Backend.BaseURL)
	r.writePlain("2. Run 'stemx ui' or 'stemx process --file song.mp3 --play'\n")
	return nil
}

// loadOrCreateConfig reads path, writing the embedded example there first when it is missing.
// Any failure falls back to the defaults.
func (r *Runner) loadOrCreateConfig(path string) *shared.Config {
	if _, err := os.Stat(path); err != nil {
		r.logger.Info("config file not found, creating from template", "path", path)
		if err := shared.CreateConfigFile(path); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			return shared.DefaultConfig()
		}
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		return shared.DefaultConfig()
	}
	return config
}

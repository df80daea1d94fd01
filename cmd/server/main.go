package main

import (
	"context"
	"fmt"
	"gamewarden/internal/api"
	"gamewarden/internal/app"
	"gamewarden/internal/config"
	"gamewarden/internal/logging"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

func main() {
	fmt.Println("Starting gamewarden daemon...")

	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatalf("Error getting user config directory: %v", err)
	}
	appName := "gamewarden"
	if os.Getenv("GAMEWARDEN_DEV") == "true" {
		appName = "gamewarden-dev"
	}
	configDir := filepath.Join(userConfigDir, appName)

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger, logCloser, err := logging.Setup(logging.Options{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Dev:        cfg.Dev,
	})
	if err != nil {
		log.Fatalf("Error setting up logging: %v", err)
	}
	defer logCloser.Close()

	logger.Info("configuration loaded",
		"config", cfg.Path(),
		"database", cfg.DatabasePath,
		"servers", len(cfg.Servers),
		"cluster", cfg.Cloud.Cluster,
		"service", cfg.Cloud.Service,
	)

	container, err := app.NewContainer(cfg, logger, nil)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	settings := container.Supervisor.Settings()
	logger.Info("lifecycle settings",
		"control_port", settings.ControlPort,
		"save_settle", settings.SaveSettle,
		"shutdown_settle", settings.ShutdownSettle,
		"operation_timeout", settings.OperationTimeout,
		"cleanup_timeout", settings.CleanupTimeout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiServer := api.NewAPIServer(container)

	if err := apiServer.Start(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Error("API error", "error", err)
		os.Exit(1)
	}
	logger.Info("daemon stopped")
}

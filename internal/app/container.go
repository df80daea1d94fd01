package app

import (
	"fmt"
	"gamewarden/internal/cloud"
	"gamewarden/internal/config"
	"gamewarden/internal/runner"
	"gamewarden/internal/server"
	"gamewarden/internal/storage"
	"gamewarden/internal/ws"
	"log/slog"
)

type Container struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      *storage.GormStore
	Registry   *server.Registry
	Cloud      cloud.Controller
	HubManager *ws.HubManager
	Supervisor *runner.Supervisor
}

// NewContainer wires the daemon. A nil controller selects the ECS adapter.
func NewContainer(cfg *config.Config, logger *slog.Logger, controller cloud.Controller) (*Container, error) {
	registry, err := server.NewRegistry(cfg.Servers)
	if err != nil {
		return nil, fmt.Errorf("error loading servers: %w", err)
	}

	store, err := storage.NewGormStore(cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	store.Keep = cfg.HistoryKeep

	if controller == nil {
		controller = cloud.NewECSController(cfg.Cloud.Cluster, cfg.Cloud.Service, logger)
	}

	hubManager := ws.NewHubManager(cfg.EventHistory, logger)
	supervisor := runner.NewSupervisor(registry, controller, store, hubManager, cfg.Settings(), logger)

	return &Container{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Registry:   registry,
		Cloud:      controller,
		HubManager: hubManager,
		Supervisor: supervisor,
	}, nil
}

func (c *Container) Close() error {
	c.HubManager.Close()
	return c.Store.Close()
}

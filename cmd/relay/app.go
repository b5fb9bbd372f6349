// File: cmd/relay/app.go
package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/workflow-relay/internal/config"
	"github.com/smartdevs17/workflow-relay/internal/metrics"
	"github.com/smartdevs17/workflow-relay/internal/processor"
	"github.com/smartdevs17/workflow-relay/internal/server"
	"github.com/smartdevs17/workflow-relay/internal/storage"
	"github.com/smartdevs17/workflow-relay/pkg/utils"
)

// Application owns every long-lived component. Components are constructed in
// NewApplication and torn down in Stop.
type Application struct {
	config    *config.Config
	logger    *logrus.Logger
	metrics   *metrics.Manager
	store     storage.LogStore
	articles  storage.ArticleSlot
	processor *processor.LogProcessor
	server    *server.HTTPServer
}

// NewApplication creates a new application instance
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	app := &Application{config: cfg}

	// Initialize logger
	if err := app.initializeLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.initializeComponents(ctx)
	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging

	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return err
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Debug("Logger initialized")

	return nil
}

// initializeComponents initializes all application components. None of them
// can fail: unreachable backends degrade instead.
func (app *Application) initializeComponents(ctx context.Context) {
	app.logger.Info("Initializing application components")

	app.metrics = metrics.NewManager()
	app.initializeStorage(ctx)
	app.initializeArticles(ctx)
	app.processor = processor.NewLogProcessor(app.store, app.metrics)
	app.initializeServer()

	app.logger.Info("All components initialized successfully")
}

// initializeStorage selects the log store once; it is held for the process
// lifetime
func (app *Application) initializeStorage(ctx context.Context) {
	store := storage.Open(ctx, &app.config.Storage)
	app.store = storage.NewStorageWithMetrics(store, app.metrics)

	status := app.store.Status(ctx)
	app.logger.WithFields(logrus.Fields{
		"backend":   status.Backend,
		"durable":   status.Durable,
		"connected": status.Connected,
	}).Info("Log store selected")
}

// initializeArticles initializes the latest-article slot
func (app *Application) initializeArticles(ctx context.Context) {
	app.articles = storage.NewArticleSlot(ctx, &app.config.Article)
}

// initializeServer initializes the HTTP server
func (app *Application) initializeServer() {
	serverCfg := &server.ServerConfig{
		Port:                app.config.Server.Port,
		Host:                app.config.Server.Host,
		ReadTimeout:         app.config.Server.ReadTimeout,
		WriteTimeout:        app.config.Server.WriteTimeout,
		MaxBodyBytes:        app.config.Server.MaxBodyBytes,
		EnableMetrics:       app.config.Server.EnableMetrics,
		EnableHealth:        app.config.Server.EnableHealth,
		EnableStorageStatus: app.config.Storage.IsDurable(),
		Version:             AppVersion,
	}

	app.server = server.NewHTTPServer(serverCfg, app.processor, app.articles, app.metrics)
}

// Run serves HTTP until ctx is cancelled
func (app *Application) Run(ctx context.Context) error {
	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
		"address":     app.server.Addr(),
		"storage":     app.store.Backend(),
	}).Info("Starting workflow relay")

	return app.server.Serve(ctx)
}

// Stop releases the stores
func (app *Application) Stop() error {
	app.logger.Info("Stopping workflow relay")

	if app.articles != nil {
		if err := app.articles.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close article slot")
		}
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close log store")
		}
	}

	app.logger.Info("Workflow relay stopped")
	return nil
}

// checkStorage verifies the log store answers. Durable stores are pinged
// directly; the others report through their status.
func checkStorage(ctx context.Context, store storage.LogStore) error {
	if durable, ok := store.(storage.DurableStore); ok {
		if err := durable.Ping(ctx); err != nil {
			return fmt.Errorf("storage %s ping failed: %w", durable.Backend(), err)
		}
		return nil
	}

	status := store.Status(ctx)
	if !status.Connected {
		return fmt.Errorf("storage %s unavailable: %s", status.Backend, status.Error)
	}
	return nil
}

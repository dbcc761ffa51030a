// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the generation gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"gengateway/config"
	"gengateway/internal/core"
	"gengateway/internal/jobs"
	"gengateway/internal/observability"
	"gengateway/internal/providers"
	"gengateway/internal/providers/anthropic"
	"gengateway/internal/providers/bfl"
	"gengateway/internal/providers/openai"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config  *config.Config
	gateway *providers.Gateway
	jobs    jobs.Store

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig is the configuration produced by config.Load.
	AppConfig *config.Config

	// Factory provides the ProviderFactory used to construct provider instances.
	// Defaults to DefaultFactory().
	Factory *providers.ProviderFactory

	// Registerer receives the metrics collectors when metrics are enabled.
	// Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// DefaultFactory returns a factory with one registration per vendor class.
func DefaultFactory() *providers.ProviderFactory {
	factory := providers.NewProviderFactory()
	factory.Add(anthropic.Registration)
	factory.Add(openai.Registration)
	factory.Add(bfl.Registration)
	return factory
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig

	factory := cfg.Factory
	if factory == nil {
		factory = DefaultFactory()
	}

	if appCfg.Metrics.Enabled {
		reg := cfg.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		metrics, err := observability.NewMetrics(reg, appCfg.Metrics.Namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		factory.SetHooks(metrics.Hooks())
		slog.Info("prometheus metrics enabled", "namespace", appCfg.Metrics.Namespace)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	store, err := jobs.New(ctx, appCfg.Jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job journal: %w", err)
	}
	factory.SetJobStore(store)

	app := &App{
		config:  appCfg,
		gateway: providers.NewGateway(factory, nil),
		jobs:    store,
	}
	app.gateway.Initialize(appCfg)
	app.logStartupInfo()

	return app, nil
}

func (a *App) logStartupInfo() {
	configured := make([]string, 0, len(a.config.Providers))
	for vendor, entry := range a.config.Providers {
		if entry.APIKey != "" {
			configured = append(configured, vendor)
		}
	}
	slog.Info("gateway ready",
		"credentials", configured,
		"text_model", a.config.Models.Text,
		"image_model", a.config.Models.Image,
		"job_store", a.config.Jobs.Store,
	)
}

// Gateway returns the provider gateway.
func (a *App) Gateway() *providers.Gateway {
	return a.gateway
}

// Jobs returns the asynchronous job journal.
func (a *App) Jobs() jobs.Store {
	return a.jobs
}

// Reload installs a new configuration and drops every cached adapter.
// Metrics and job journal settings are not reloaded.
func (a *App) Reload(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	a.shutdownMu.Lock()
	defer a.shutdownMu.Unlock()
	if a.shutdown {
		return fmt.Errorf("app is shut down")
	}
	a.config = cfg
	a.gateway.Initialize(cfg)
	return nil
}

// Complete runs a text completion on model, or on the configured text model when model is empty.
func (a *App) Complete(ctx context.Context, model string, req *core.CompletionRequest) (*core.CompletionResponse, error) {
	ctx, requestID := core.EnsureRequestID(ctx)

	var (
		p   core.Provider
		err error
	)
	if model == "" {
		p, err = a.gateway.TextProvider()
	} else {
		p, err = a.gateway.ProviderForModel(model)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("completion", "provider", p.Name(), "model", p.DefaultModel(), "request_id", requestID)
	return p.GenerateCompletion(ctx, req)
}

// GenerateImage runs an image request on model, or on the configured image model when model is empty.
func (a *App) GenerateImage(ctx context.Context, model string, req *core.ImageGenerationRequest) (*core.ImageGenerationResponse, error) {
	ctx, requestID := core.EnsureRequestID(ctx)

	var (
		p   core.Provider
		err error
	)
	if model == "" {
		p, err = a.gateway.ImageProvider()
	} else {
		p, err = a.gateway.ProviderForModel(model)
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("image generation", "provider", p.Name(), "model", p.DefaultModel(), "request_id", requestID)
	return p.GenerateImage(ctx, req)
}

// Shutdown releases all resources. Safe to call multiple times.
func (a *App) Shutdown(_ context.Context) error {
	a.shutdownMu.Lock()
	defer a.shutdownMu.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	var errs []error
	if a.jobs != nil {
		if err := a.jobs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("job journal close: %w", err))
		}
	}
	slog.Info("gateway shut down")
	return errors.Join(errs...)
}

package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"gengateway/config"
	"gengateway/internal/core"
)

// Gateway resolves model identifiers to adapters and caches one adapter per identifier.
// It is created by startup code and shared by reference; all methods are safe for concurrent use.
type Gateway struct {
	factory *ProviderFactory

	mu    sync.RWMutex
	cfg   *config.Config
	cache map[string]core.Provider
}

var _ core.ProviderResolver = (*Gateway)(nil)

// NewGateway creates a gateway over factory. cfg may be nil until Initialize is called.
func NewGateway(factory *ProviderFactory, cfg *config.Config) *Gateway {
	if factory == nil {
		factory = NewProviderFactory()
	}
	return &Gateway{
		factory: factory,
		cfg:     cfg,
		cache:   make(map[string]core.Provider),
	}
}

// Initialize installs cfg and drops every cached adapter.
// Lookups after it returns observe the new credentials.
func (g *Gateway) Initialize(cfg *config.Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	dropped := len(g.cache)
	g.cfg = cfg
	g.cache = make(map[string]core.Provider)
	slog.Info("gateway initialized", "dropped_adapters", dropped, "registered", g.factory.ListRegistered())
}

// Config returns the configuration currently in effect.
func (g *Gateway) Config() *config.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// ProviderForModel returns the cached adapter for model, building it on first use.
func (g *Gateway) ProviderForModel(model string) (core.Provider, error) {
	if strings.TrimSpace(model) == "" {
		return nil, core.NewInvalidRequestError("model identifier must not be empty", nil)
	}

	g.mu.RLock()
	p, ok := g.cache[model]
	g.mu.RUnlock()
	if ok {
		return p, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// another caller may have built it while we waited for the write lock
	if p, ok := g.cache[model]; ok {
		return p, nil
	}

	p, err := g.build(model)
	if err != nil {
		return nil, err
	}
	g.cache[model] = p
	return p, nil
}

// build constructs an adapter for model. Callers hold g.mu.
func (g *Gateway) build(model string) (core.Provider, error) {
	if g.cfg == nil {
		return nil, core.NewConfigurationError("", model, "gateway is not initialized")
	}

	class := Route(model)
	reg, ok := g.factory.Lookup(class)
	if !ok {
		return nil, core.NewConfigurationError("", model,
			fmt.Sprintf("no provider registered for vendor class %s", class))
	}

	apiKey := g.cfg.Credential(reg.Type)
	if apiKey == "" {
		return nil, core.NewConfigurationError(reg.Type, model,
			fmt.Sprintf("missing credential: set providers.%s.api_key or %s", reg.Type, reg.credentialEnv()))
	}

	p, err := g.factory.Create(reg, apiKey, ProviderOptions{
		Model:      upstreamModel(model),
		BaseURL:    g.cfg.BaseURL(reg.Type),
		Resilience: g.cfg.Resilience,
		Async:      g.cfg.Async,
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("provider constructed", "model", model, "provider", reg.Type, "class", class.String())
	return p, nil
}

// TextProvider returns the adapter for the configured default text model.
func (g *Gateway) TextProvider() (core.Provider, error) {
	cfg := g.Config()
	if cfg == nil || cfg.Models.Text == "" {
		return nil, core.NewConfigurationError("", "", "models.text is not configured")
	}
	return g.ProviderForModel(cfg.Models.Text)
}

// ImageProvider returns the adapter for the configured default image model.
// The adapter must support image generation.
func (g *Gateway) ImageProvider() (core.Provider, error) {
	cfg := g.Config()
	if cfg == nil || cfg.Models.Image == "" {
		return nil, core.NewConfigurationError("", "", "models.image is not configured")
	}
	p, err := g.ProviderForModel(cfg.Models.Image)
	if err != nil {
		return nil, err
	}
	if !p.SupportsImageGeneration() {
		return nil, core.NewCapabilityUnsupportedError(p.Name(), cfg.Models.Image, "image generation")
	}
	return p, nil
}

// CachedModels lists the identifiers with a constructed adapter, sorted.
func (g *Gateway) CachedModels() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	models := make([]string, 0, len(g.cache))
	for m := range g.cache {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

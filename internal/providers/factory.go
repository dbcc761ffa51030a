package providers

import (
	"fmt"
	"sort"
	"sync"

	"gengateway/config"
	"gengateway/internal/core"
	"gengateway/internal/jobs"
	"gengateway/internal/llmclient"
)

// ProviderOptions bundles the configuration passed to a provider constructor.
type ProviderOptions struct {
	// Model is the upstream model ID the adapter serves by default
	Model string

	// BaseURL overrides the vendor endpoint when set
	BaseURL string

	Resilience config.ResilienceConfig
	Async      config.AsyncConfig

	Hooks llmclient.Hooks

	// Breaker is shared by every adapter of the same vendor; nil when circuit breaking is off
	Breaker *llmclient.Breaker

	// Jobs journals asynchronous jobs; never nil
	Jobs jobs.Store
}

// ProviderConstructor is the constructor signature for providers.
type ProviderConstructor func(apiKey string, opts ProviderOptions) core.Provider

// Registration contains metadata for registering a provider with the factory.
type Registration struct {
	// Type is the vendor key used in config.Config.Providers
	Type string

	// Class is the vendor class this registration serves
	Class VendorClass

	// CredentialEnv names the environment variable holding the API key.
	// Defaults to config.CredentialEnv(Type).
	CredentialEnv string

	New ProviderConstructor
}

func (r Registration) credentialEnv() string {
	if r.CredentialEnv != "" {
		return r.CredentialEnv
	}
	return config.CredentialEnv(r.Type)
}

// ProviderFactory holds one registration per vendor class.
type ProviderFactory struct {
	mu            sync.RWMutex
	registrations map[VendorClass]Registration
	hooks         llmclient.Hooks
	jobs          jobs.Store
	breakers      map[string]sharedBreaker
}

type sharedBreaker struct {
	cfg     config.CircuitBreakerConfig
	breaker *llmclient.Breaker
}

// NewProviderFactory creates an empty factory.
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{
		registrations: make(map[VendorClass]Registration),
		jobs:          jobs.NopStore{},
		breakers:      make(map[string]sharedBreaker),
	}
}

// Add registers a provider. A later registration for the same class replaces the earlier one.
func (f *ProviderFactory) Add(reg Registration) {
	if reg.Type == "" || reg.New == nil {
		panic("providers: registration requires Type and New")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrations[reg.Class] = reg
}

// SetHooks configures observability hooks handed to every constructed provider.
func (f *ProviderFactory) SetHooks(hooks llmclient.Hooks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = hooks
}

// SetJobStore configures the journal handed to asynchronous providers.
func (f *ProviderFactory) SetJobStore(store jobs.Store) {
	if store == nil {
		store = jobs.NopStore{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = store
}

// Lookup returns the registration serving class.
func (f *ProviderFactory) Lookup(class VendorClass) (Registration, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	reg, ok := f.registrations[class]
	return reg, ok
}

// Create builds a provider from a registration.
func (f *ProviderFactory) Create(reg Registration, apiKey string, opts ProviderOptions) (core.Provider, error) {
	f.mu.RLock()
	opts.Hooks = f.hooks
	opts.Jobs = f.jobs
	f.mu.RUnlock()
	opts.Breaker = f.breakerFor(reg.Type, opts.Resilience.CircuitBreaker)

	p := reg.New(apiKey, opts)
	if p == nil {
		return nil, core.NewConfigurationError(reg.Type, opts.Model,
			fmt.Sprintf("provider constructor for %s returned nil", reg.Type))
	}
	return p, nil
}

// breakerFor returns the breaker shared by every adapter of vendor.
// The breaker outlives gateway re-initialization and is replaced only when cfg changes.
func (f *ProviderFactory) breakerFor(vendor string, cfg config.CircuitBreakerConfig) *llmclient.Breaker {
	if !cfg.Enabled {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if shared, ok := f.breakers[vendor]; ok && shared.cfg == cfg {
		return shared.breaker
	}
	b := llmclient.NewBreaker(vendor, cfg)
	f.breakers[vendor] = sharedBreaker{cfg: cfg, breaker: b}
	return b
}

// ListRegistered returns the registered vendor types, sorted.
func (f *ProviderFactory) ListRegistered() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.registrations))
	for _, reg := range f.registrations {
		types = append(types, reg.Type)
	}
	sort.Strings(types)
	return types
}

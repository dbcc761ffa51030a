package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gengateway/config"
	"gengateway/internal/core"
	"gengateway/internal/jobs"
	"gengateway/internal/llmclient"
)

func TestProviderFactory_AddAndLookup(t *testing.T) {
	factory := NewProviderFactory()
	factory.Add(stubRegistration("anthropic", VendorClassSyncText, false, nil))
	factory.Add(stubRegistration("bfl", VendorClassAsyncImage, true, nil))

	reg, ok := factory.Lookup(VendorClassSyncText)
	require.True(t, ok)
	assert.Equal(t, "anthropic", reg.Type)

	_, ok = factory.Lookup(VendorClassSyncTextImage)
	assert.False(t, ok)

	assert.Equal(t, []string{"anthropic", "bfl"}, factory.ListRegistered())
}

func TestProviderFactory_AddReplacesClass(t *testing.T) {
	factory := NewProviderFactory()
	factory.Add(stubRegistration("first", VendorClassSyncText, false, nil))
	factory.Add(stubRegistration("second", VendorClassSyncText, false, nil))

	reg, ok := factory.Lookup(VendorClassSyncText)
	require.True(t, ok)
	assert.Equal(t, "second", reg.Type)
	assert.Len(t, factory.ListRegistered(), 1)
}

func TestProviderFactory_AddRejectsIncomplete(t *testing.T) {
	factory := NewProviderFactory()
	assert.Panics(t, func() { factory.Add(Registration{Type: "x"}) })
	assert.Panics(t, func() { factory.Add(Registration{New: func(string, ProviderOptions) core.Provider { return nil }}) })
}

func TestProviderFactory_CreatePassesHooksAndJobs(t *testing.T) {
	factory := NewProviderFactory()
	called := false
	factory.SetHooks(llmclient.Hooks{
		OnRequestEnd: func(context.Context, llmclient.ResponseInfo) { called = true },
	})
	store := jobs.NewMemoryStore()
	factory.SetJobStore(store)

	reg := stubRegistration("bfl", VendorClassAsyncImage, true, nil)
	p, err := factory.Create(reg, "key", ProviderOptions{Model: "flux-dev", BaseURL: "http://bfl.local"})
	require.NoError(t, err)

	stub := p.(*stubProvider)
	assert.Equal(t, "key", stub.apiKey)
	assert.Equal(t, "flux-dev", stub.opts.Model)
	assert.Equal(t, "http://bfl.local", stub.opts.BaseURL)
	assert.Same(t, store, stub.opts.Jobs)
	require.NotNil(t, stub.opts.Hooks.OnRequestEnd)
	stub.opts.Hooks.OnRequestEnd(context.Background(), llmclient.ResponseInfo{})
	assert.True(t, called)
}

func TestProviderFactory_DefaultJobStoreIsNop(t *testing.T) {
	factory := NewProviderFactory()
	factory.SetJobStore(nil)

	p, err := factory.Create(stubRegistration("bfl", VendorClassAsyncImage, true, nil), "key", ProviderOptions{})
	require.NoError(t, err)
	assert.IsType(t, jobs.NopStore{}, p.(*stubProvider).opts.Jobs)
}

func TestProviderFactory_CreateNilProvider(t *testing.T) {
	factory := NewProviderFactory()
	reg := Registration{Type: "broken", New: func(string, ProviderOptions) core.Provider { return nil }}

	_, err := factory.Create(reg, "key", ProviderOptions{Model: "m"})
	require.Error(t, err)
	assert.True(t, core.IsType(err, core.ErrorTypeConfiguration))
}

func TestRegistration_CredentialEnv(t *testing.T) {
	assert.Equal(t, "BFL_API_KEY", Registration{Type: "bfl"}.credentialEnv())
	assert.Equal(t, "FLUX_TOKEN", Registration{Type: "bfl", CredentialEnv: "FLUX_TOKEN"}.credentialEnv())
}

func TestProviderFactory_SharesBreakerPerVendor(t *testing.T) {
	factory := NewProviderFactory()
	cb := config.CircuitBreakerConfig{Enabled: true, FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute}
	opts := ProviderOptions{Resilience: config.ResilienceConfig{CircuitBreaker: cb}}

	openaiReg := stubRegistration("openai", VendorClassSyncTextImage, true, nil)
	anthropicReg := stubRegistration("anthropic", VendorClassSyncText, false, nil)

	first, err := factory.Create(openaiReg, "key", opts)
	require.NoError(t, err)
	second, err := factory.Create(openaiReg, "key", opts)
	require.NoError(t, err)
	other, err := factory.Create(anthropicReg, "key", opts)
	require.NoError(t, err)

	shared := first.(*stubProvider).opts.Breaker
	require.NotNil(t, shared)
	assert.Same(t, shared, second.(*stubProvider).opts.Breaker)
	assert.NotSame(t, shared, other.(*stubProvider).opts.Breaker)

	t.Run("changed thresholds replace the breaker", func(t *testing.T) {
		changed := opts
		changed.Resilience.CircuitBreaker.FailureThreshold = 10
		p, err := factory.Create(openaiReg, "key", changed)
		require.NoError(t, err)
		assert.NotSame(t, shared, p.(*stubProvider).opts.Breaker)
	})

	t.Run("disabled", func(t *testing.T) {
		p, err := factory.Create(openaiReg, "key", ProviderOptions{})
		require.NoError(t, err)
		assert.Nil(t, p.(*stubProvider).opts.Breaker)
	})
}

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gengateway/config"
	"gengateway/internal/core"
	"gengateway/internal/jobs"
	"gengateway/internal/providers"
)

func newTestConfig() *config.Config {
	return &config.Config{
		Providers: map[string]config.ProviderEntry{},
		Models:    config.ModelsConfig{Text: "gpt-4o-mini", Image: "flux-dev"},
		Async: config.AsyncConfig{
			Model:           "flux-pro-1.1",
			PollInterval:    time.Millisecond,
			MaxPollAttempts: 5,
		},
		Resilience: config.ResilienceConfig{
			Retry: config.RetryConfig{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 2},
		},
		Metrics: config.MetricsConfig{Namespace: "test"},
		Jobs:    config.JobsConfig{Store: "memory"},
	}
}

func openAIServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": "hello"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func bflServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/flux-dev":
			_, _ = w.Write([]byte(`{"id":"job-1"}`))
		case "/get_result":
			_, _ = w.Write([]byte(`{"id":"job-1","status":"Ready","result":{"sample":"https://cdn.example/img.png"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestDefaultFactory(t *testing.T) {
	factory := DefaultFactory()
	assert.Equal(t, []string{"anthropic", "bfl", "openai"}, factory.ListRegistered())

	for class, want := range map[providers.VendorClass]string{
		providers.VendorClassSyncText:      "anthropic",
		providers.VendorClassSyncTextImage: "openai",
		providers.VendorClassAsyncImage:    "bfl",
	} {
		reg, ok := factory.Lookup(class)
		require.True(t, ok, class.String())
		assert.Equal(t, want, reg.Type)
	}
}

func TestApp_Complete(t *testing.T) {
	server := openAIServer(t)
	cfg := newTestConfig()
	cfg.Providers["openai"] = config.ProviderEntry{APIKey: "sk-test", BaseURL: server.URL}

	a, err := New(context.Background(), Config{AppConfig: cfg})
	require.NoError(t, err)
	defer func() { _ = a.Shutdown(context.Background()) }()

	resp, err := a.Complete(context.Background(), "", &core.CompletionRequest{
		Messages: []core.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, []string{"gpt-4o-mini"}, a.Gateway().CachedModels())
}

func TestApp_Complete_MissingCredential(t *testing.T) {
	a, err := New(context.Background(), Config{AppConfig: newTestConfig()})
	require.NoError(t, err)
	defer func() { _ = a.Shutdown(context.Background()) }()

	_, err = a.Complete(context.Background(), "claude-3-5-haiku-latest", &core.CompletionRequest{
		Messages: []core.Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, core.IsType(err, core.ErrorTypeConfiguration))
}

func TestApp_GenerateImage_JournalsJob(t *testing.T) {
	server := bflServer(t)
	cfg := newTestConfig()
	cfg.Providers["bfl"] = config.ProviderEntry{APIKey: "bfl-key", BaseURL: server.URL}

	a, err := New(context.Background(), Config{AppConfig: cfg})
	require.NoError(t, err)
	defer func() { _ = a.Shutdown(context.Background()) }()

	resp, err := a.GenerateImage(context.Background(), "", &core.ImageGenerationRequest{Prompt: "a lighthouse"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/img.png", resp.URL)
	assert.Equal(t, "bfl", resp.Provider)

	job, err := a.Jobs().Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateReady, job.State)
	assert.Equal(t, 1, job.Polls)
	assert.NotEmpty(t, job.RequestID)
}

func TestApp_MetricsEnabled(t *testing.T) {
	server := openAIServer(t)
	cfg := newTestConfig()
	cfg.Metrics.Enabled = true
	cfg.Providers["openai"] = config.ProviderEntry{APIKey: "sk-test", BaseURL: server.URL}

	reg := prometheus.NewRegistry()
	a, err := New(context.Background(), Config{AppConfig: cfg, Registerer: reg})
	require.NoError(t, err)
	defer func() { _ = a.Shutdown(context.Background()) }()

	_, err = a.Complete(context.Background(), "gpt-4o-mini", &core.CompletionRequest{
		Messages: []core.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "test_vendor_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestApp_MetricsDuplicateRegistration(t *testing.T) {
	cfg := newTestConfig()
	cfg.Metrics.Enabled = true
	reg := prometheus.NewRegistry()

	a, err := New(context.Background(), Config{AppConfig: cfg, Registerer: reg})
	require.NoError(t, err)
	defer func() { _ = a.Shutdown(context.Background()) }()

	_, err = New(context.Background(), Config{AppConfig: cfg, Registerer: reg})
	require.Error(t, err)
}

func TestApp_UnknownJobStore(t *testing.T) {
	cfg := newTestConfig()
	cfg.Jobs.Store = "etcd"
	_, err := New(context.Background(), Config{AppConfig: cfg})
	require.Error(t, err)
}

func TestApp_Reload(t *testing.T) {
	server := openAIServer(t)
	cfg := newTestConfig()
	cfg.Providers["openai"] = config.ProviderEntry{APIKey: "sk-test", BaseURL: server.URL}

	a, err := New(context.Background(), Config{AppConfig: cfg})
	require.NoError(t, err)

	first, err := a.Gateway().ProviderForModel("gpt-4o-mini")
	require.NoError(t, err)

	require.NoError(t, a.Reload(cfg))
	assert.Empty(t, a.Gateway().CachedModels())

	second, err := a.Gateway().ProviderForModel("gpt-4o-mini")
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	require.Error(t, a.Reload(nil))

	require.NoError(t, a.Shutdown(context.Background()))
	require.Error(t, a.Reload(cfg))
}

func TestApp_ShutdownIdempotent(t *testing.T) {
	a, err := New(context.Background(), Config{AppConfig: newTestConfig()})
	require.NoError(t, err)

	require.NoError(t, a.Shutdown(context.Background()))
	require.NoError(t, a.Shutdown(context.Background()))
}

package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gengateway/internal/llmclient"
)

func TestMetricsHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, "test")
	require.NoError(t, err)
	hooks := m.Hooks()

	info := llmclient.RequestInfo{Provider: "bfl", Model: "flux-dev", Method: "GET", Endpoint: "/get_result"}

	ctx := hooks.Start(context.Background(), info)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight.WithLabelValues("bfl")))

	hooks.End(ctx, info, 200, time.Now().Add(-time.Second), nil)
	hooks.Start(ctx, info)
	hooks.End(ctx, info, 0, time.Now(), errors.New("connection refused"))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight.WithLabelValues("bfl")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("bfl", "flux-dev", "/get_result", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("bfl", "flux-dev", "/get_result", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg, "dup")
	require.NoError(t, err)

	_, err = NewMetrics(reg, "dup")
	require.Error(t, err)
}

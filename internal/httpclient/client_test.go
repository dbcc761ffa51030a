package httpclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "")
	t.Setenv("HTTP_RESPONSE_HEADER_TIMEOUT", "")

	cfg := DefaultConfig()
	assert.Equal(t, 300*time.Second, cfg.Timeout)
	assert.Equal(t, 300*time.Second, cfg.ResponseHeaderTimeout)
	assert.Equal(t, 20, cfg.MaxIdleConnsPerHost)
}

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want time.Duration
	}{
		{"integer seconds", "45", 45 * time.Second},
		{"duration string", "2m", 2 * time.Minute},
		{"invalid falls back", "soon", 300 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HTTP_TIMEOUT", tt.val)
			assert.Equal(t, tt.want, DefaultConfig().Timeout)
		})
	}
}

func TestPollConfig(t *testing.T) {
	t.Setenv("HTTP_POLL_TIMEOUT", "")
	cfg := PollConfig()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, cfg.Timeout, cfg.ResponseHeaderTimeout)

	t.Setenv("HTTP_POLL_TIMEOUT", "5")
	assert.Equal(t, 5*time.Second, PollConfig().Timeout)
}

func TestNewHTTPClient(t *testing.T) {
	cfg := ClientConfig{Timeout: 7 * time.Second, MaxIdleConns: 3, ResponseHeaderTimeout: time.Second}
	client := NewHTTPClient(&cfg)
	assert.Equal(t, 7*time.Second, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 3, transport.MaxIdleConns)
	assert.Equal(t, time.Second, transport.ResponseHeaderTimeout)
	assert.True(t, transport.ForceAttemptHTTP2)
}

func TestNewDefaultHTTPClient(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "")
	client := NewDefaultHTTPClient()
	assert.Equal(t, 300*time.Second, client.Timeout)
}

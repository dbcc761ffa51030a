package jobs

import (
	"context"
	"fmt"

	"gengateway/config"
)

// New builds the journal selected by cfg.Store.
// The caller must Close the returned store during shutdown.
func New(ctx context.Context, cfg config.JobsConfig) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStoreWithTTL(cfg.TTL), nil
	case "none":
		return NopStore{}, nil
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			URL: cfg.Redis.URL,
			Key: cfg.Redis.Key,
			TTL: cfg.TTL,
		})
	default:
		return nil, fmt.Errorf("unknown job store: %q", cfg.Store)
	}
}

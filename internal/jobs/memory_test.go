package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gengateway/config"
)

func TestMemoryStore(t *testing.T) {
	t.Run("GetMissing", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.Get(context.Background(), "nope")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("SaveReplacesEntry", func(t *testing.T) {
		store := NewMemoryStore()
		ctx := context.Background()
		job := &Job{ID: "job-1", Provider: "bfl", Model: "flux-dev", State: StateSubmitted, SubmittedAt: time.Now()}

		require.NoError(t, store.Save(ctx, job))
		job.State = StateReady
		job.Polls = 3
		require.NoError(t, store.Save(ctx, job))

		got, err := store.Get(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, StateReady, got.State)
		assert.Equal(t, 3, got.Polls)
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		store := NewMemoryStore()
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, &Job{ID: "job-1", State: StatePolling}))

		got, err := store.Get(ctx, "job-1")
		require.NoError(t, err)
		got.State = StateError

		again, err := store.Get(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, StatePolling, again.State)
	})

	t.Run("IgnoresEmptyID", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(context.Background(), &Job{}))
		recent, err := store.Recent(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, recent)
	})

	t.Run("RecentNewestFirst", func(t *testing.T) {
		store := NewMemoryStore()
		ctx := context.Background()
		base := time.Now()
		for i, id := range []string{"a", "b", "c"} {
			require.NoError(t, store.Save(ctx, &Job{ID: id, SubmittedAt: base.Add(time.Duration(i) * time.Second)}))
		}

		recent, err := store.Recent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "c", recent[0].ID)
		assert.Equal(t, "b", recent[1].ID)
	})
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	store := NewMemoryStoreWithTTL(time.Hour)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, &Job{ID: "old", SubmittedAt: now}))
	now = now.Add(30 * time.Minute)
	require.NoError(t, store.Save(ctx, &Job{ID: "fresh", SubmittedAt: now}))

	now = now.Add(45 * time.Minute)
	_, err := store.Get(ctx, "old")
	require.ErrorIs(t, err, ErrNotFound, "entry expires ttl after its last save")
	_, err = store.Get(ctx, "fresh")
	require.NoError(t, err)

	recent, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "fresh", recent[0].ID)

	t.Run("save refreshes expiry and evicts expired entries", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, &Job{ID: "fresh", State: StateReady}))
		store.mu.RLock()
		_, kept := store.jobs["old"]
		store.mu.RUnlock()
		assert.False(t, kept)

		now = now.Add(50 * time.Minute)
		got, err := store.Get(ctx, "fresh")
		require.NoError(t, err)
		assert.Equal(t, StateReady, got.State)
	})
}

func TestNewMemoryStoreWithTTL_Default(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewMemoryStoreWithTTL(0).ttl)
	assert.Equal(t, DefaultTTL, NewMemoryStore().ttl)
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StateSubmitted.Terminal())
	assert.False(t, StatePolling.Terminal())
	for _, s := range []State{StateReady, StateError, StateModerated, StateTimedOut} {
		assert.True(t, s.Terminal(), s)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, config.JobsConfig{Store: "memory", TTL: time.Minute})
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, store)
	assert.Equal(t, time.Minute, store.(*MemoryStore).ttl)

	store, err = New(ctx, config.JobsConfig{Store: "none"})
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, store)

	_, err = New(ctx, config.JobsConfig{Store: "postgres"})
	require.Error(t, err)

	_, err = New(ctx, config.JobsConfig{Store: "redis", Redis: config.RedisConfig{URL: "::not a url"}})
	require.Error(t, err)
}

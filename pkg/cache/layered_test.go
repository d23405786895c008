package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayeredCache_GetPromotesFromRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote)
	defer lc.Close()

	require.NoError(t, remote.Set(ctx, "k", "remote", 0))

	var s string
	require.NoError(t, lc.Get(ctx, "k", &s))
	assert.Equal(t, "remote", s)

	// served from L1 after the remote copy is gone
	require.NoError(t, remote.Delete(ctx, "k"))
	var again string
	require.NoError(t, lc.Get(ctx, "k", &again))
	assert.Equal(t, "remote", again)
}

func TestLayeredCache_WriteThrough(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote, WithLayeredMemorySize(10), WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()

	require.NoError(t, lc.Set(ctx, "k", []byte("blob"), 0))

	var b []byte
	require.NoError(t, remote.Get(ctx, "k", &b))
	assert.Equal(t, "blob", string(b))

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &b), ErrCacheMiss)
}

func TestLayeredCache_CoordinationUsesRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote)
	defer lc.Close()

	token, ok, err := lc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = remote.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := lc.Increment(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, lc.Unlock(ctx, "lock", token))
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "alpharadar:crypto_radar_history", GenerateKey("alpharadar", "crypto_radar_history"))
}

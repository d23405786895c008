package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", "v", 0))

	var s string
	require.NoError(t, mc.Get(ctx, "k", &s))
	assert.Equal(t, "v", s)

	var b []byte
	require.NoError(t, mc.Get(ctx, "k", &b))
	assert.Equal(t, []byte("v"), b)

	var n int
	assert.ErrorIs(t, mc.Get(ctx, "k", &n), ErrBadDest)
	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCache_BytesAreCopied(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	buf := []byte("abc")
	require.NoError(t, mc.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	var out []byte
	require.NoError(t, mc.Get(ctx, "k", &out))
	assert.Equal(t, "abc", string(out))
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.Equal(t, 2, mc.Len())
	ok, _ := mc.Exists(ctx, "a")
	assert.False(t, ok)
}

func TestMemoryCache_Increment(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	for i := int64(1); i <= 3; i++ {
		n, err := mc.Increment(ctx, "count")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	require.NoError(t, mc.Set(ctx, "s", "text", 0))
	_, err := mc.Increment(ctx, "s")
	assert.Error(t, err)
}

func TestMemoryCache_TryLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	token, ok, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	other, ok, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, other)

	assert.ErrorIs(t, mc.Unlock(ctx, "lock", "someone-else"), ErrLockNotHeld)
	require.NoError(t, mc.Unlock(ctx, "lock", token))
	assert.ErrorIs(t, mc.Unlock(ctx, "lock", token), ErrLockNotHeld)

	_, ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_LockExpires(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	stale, ok, _ := mc.TryLock(ctx, "lock", 10*time.Millisecond)
	require.True(t, ok)
	time.Sleep(20 * time.Millisecond)

	current, ok, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, stale, current)

	// the first holder finishing late must not free the new holder's lock
	assert.ErrorIs(t, mc.Unlock(ctx, "lock", stale), ErrLockNotHeld)
	_, ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock", current))
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	mc := NewMemoryCache()
	assert.NoError(t, mc.Close())
	assert.NoError(t, mc.Close())
}

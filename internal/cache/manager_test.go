package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{
		Addr:       mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager_ConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewManager(Config{Addr: addr}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", 0))

	value, err := manager.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	assert.True(t, mr.Exists("test:k"), "keys are prefixed")
	assert.Equal(t, time.Minute, mr.TTL("test:k"), "default ttl applies")

	mr.FastForward(2 * time.Minute)
	_, err = manager.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_GetNonExistent(t *testing.T) {
	_, manager := setupTestRedis(t)

	value, err := manager.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, "", value)
}

func TestManager_JSON(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, manager.SetJSON(ctx, "obj", payload{"a", 2}, time.Hour))

	var got payload
	require.NoError(t, manager.GetJSON(ctx, "obj", &got))
	assert.Equal(t, payload{"a", 2}, got)

	require.NoError(t, manager.Set(ctx, "bad", "{not json", 0))
	assert.Error(t, manager.GetJSON(ctx, "bad", &got))
}

func TestManager_DeleteAndKeys(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"p:a", "p:b", "other"} {
		require.NoError(t, manager.Set(ctx, k, "1", 0))
	}

	keys, err := manager.Keys(ctx, "p:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p:a", "p:b"}, keys)

	n, err := manager.Delete(ctx, "p:a", "p:missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = manager.Delete(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_Close(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Ping(ctx))
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
	_, err := manager.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, manager.Set(ctx, "k", "v", 0), ErrClosed)
}

func TestManager_HealthCheckLoopStops(t *testing.T) {
	mr := miniredis.RunT(t)
	manager, err := NewManager(Config{Addr: mr.Addr(), HealthCheckInterval: 5 * time.Millisecond}, nil)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, manager.Close())
}

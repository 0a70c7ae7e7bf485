package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Allow(t *testing.T) {
	l := NewMemory(0.001, 2)
	ctx := context.Background()

	for i, expected := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "ip:1.2.3.4")
		assert.NoError(t, err)
		assert.Equal(t, expected, ok, "attempt %d", i+1)
	}

	ok, _ := l.Allow(ctx, "ip:5.6.7.8")
	assert.True(t, ok, "expected keys to have independent buckets")
}

func TestMemory_EvictsIdleBuckets(t *testing.T) {
	l := NewMemory(1, 2)
	start := time.Unix(1700000000, 0)
	now := start
	l.now = func() time.Time { return now }
	l.lastSweep = start
	ctx := context.Background()

	l.Allow(ctx, "ip:a")
	l.Allow(ctx, "ip:b")

	now = start.Add(30 * time.Second)
	l.Allow(ctx, "ip:b")
	assert.Equal(t, 2, l.size())

	now = start.Add(61 * time.Second)
	ok, err := l.Allow(ctx, "ip:c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, l.size(), "expected the idle bucket to be dropped and the active one kept")
}

func TestMemory_KeepsThrottledBucketsUntilRefilled(t *testing.T) {
	l := NewMemory(0.01, 1)
	start := time.Unix(1700000000, 0)
	now := start
	l.now = func() time.Time { return now }
	l.lastSweep = start
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "ip:a")
	assert.True(t, ok)

	now = start.Add(90 * time.Second)
	ok, _ = l.Allow(ctx, "ip:a")
	assert.False(t, ok, "expected the bucket to be kept until it has refilled")
}

func TestRedis_Allow(t *testing.T) {
	m, err := miniredis.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer client.Close()

	l := NewRedis(client, 1, 0, time.Second)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok, "expected second attempt in the same window to be rejected")

	ok, err = l.Allow(ctx, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Greater(t, m.TTL("notepad:rl:ip:1.2.3.4"), time.Duration(0), "expected the window key to expire")

	m.FastForward(2 * time.Second)
	ok, err = l.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok, "expected a new window after expiry")
}

func TestRedis_Unavailable(t *testing.T) {
	m, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	defer client.Close()
	m.Close()

	_, err = NewRedis(client, 1, 0, time.Second).Allow(context.Background(), "k")
	assert.Error(t, err)
}

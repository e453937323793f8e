package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newSliding(t *testing.T, now *time.Time) (SlidingWindow, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return SlidingWindow{Client: client, Prefix: "toko:rl:", Now: func() time.Time { return *now }}, mr
}

func TestSlidingWindowAdmitsUpToMax(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	limiter, mr := newSliding(t, &now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "api:198.51.100.4", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, 2-i, remaining)
		now = now.Add(10 * time.Second)
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, "api:198.51.100.4", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.True(t, reset.Equal(time.UnixMilli(1_700_000_000_000).Add(time.Minute)), "reset %s", reset)
	require.True(t, mr.Exists("toko:rl:api:198.51.100.4"))

	members, err := mr.ZMembers("toko:rl:api:198.51.100.4")
	require.NoError(t, err)
	require.Len(t, members, 3, "rejected events are not recorded")
}

func TestSlidingWindowReleasesOldestFirst(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	limiter, _ := newSliding(t, &now)
	ctx := context.Background()

	_, _, _, err := limiter.Allow(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, _, _, err = limiter.Allow(ctx, "k", time.Minute, 2)
	require.NoError(t, err)

	now = now.Add(20 * time.Second)
	allowed, _, _, err := limiter.Allow(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	require.False(t, allowed)

	// first event leaves the window; the one at +30s still counts
	now = now.Add(11 * time.Second)
	allowed, remaining, _, err := limiter.Allow(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, remaining)
}

func TestSlidingWindowWithoutClientAllows(t *testing.T) {
	allowed, remaining, _, err := SlidingWindow{}.Allow(context.Background(), "k", time.Second, 4)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 4, remaining)
}

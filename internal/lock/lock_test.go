package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func lockers(t *testing.T) map[string]Locker {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Locker{
		"local": NewLocalLocker(),
		"redis": RedisLocker{R: client, TTL: time.Second, RetryBackoff: 2 * time.Millisecond},
	}
}

func TestWithLockSerialisesSameKey(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var active, maxActive int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := locker.WithLock(context.Background(), "cart-1", func(context.Context) error {
						n := atomic.AddInt32(&active, 1)
						for {
							m := atomic.LoadInt32(&maxActive)
							if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
								break
							}
						}
						time.Sleep(time.Millisecond)
						atomic.AddInt32(&active, -1)
						return nil
					})
					require.NoError(t, err)
				}()
			}
			wg.Wait()
			require.EqualValues(t, 1, atomic.LoadInt32(&maxActive))
		})
	}
}

func TestWithLockReturnsCallbackError(t *testing.T) {
	boom := errors.New("boom")
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			err := locker.WithLock(context.Background(), "k", func(context.Context) error { return boom })
			require.ErrorIs(t, err, boom)
			// the lock is released after an error
			require.NoError(t, locker.WithLock(context.Background(), "k", func(context.Context) error { return nil }))
		})
	}
}

func TestWithLockHonoursContext(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			hold := make(chan struct{})
			acquired := make(chan struct{})
			go func() {
				_ = locker.WithLock(context.Background(), "busy", func(context.Context) error {
					close(acquired)
					<-hold
					return nil
				})
			}()
			<-acquired

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			err := locker.WithLock(ctx, "busy", func(context.Context) error {
				t.Fatal("callback must not run while the lock is held")
				return nil
			})
			require.ErrorIs(t, err, context.DeadlineExceeded)
			close(hold)
		})
	}
}

func TestLocalLockerForgetsIdleKeys(t *testing.T) {
	l := NewLocalLocker()
	require.NoError(t, l.WithLock(context.Background(), "a", func(context.Context) error { return nil }))
	require.NoError(t, l.WithLock(context.Background(), "b", func(context.Context) error { return nil }))
	require.Zero(t, l.held())
}

func TestWithLockRequiresCallback(t *testing.T) {
	require.ErrorIs(t, NewLocalLocker().WithLock(context.Background(), "x", nil), ErrNoCallback)
}

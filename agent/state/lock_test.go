package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestLocalLockerSerializesSameSession(t *testing.T) {
	t.Parallel()

	locker := NewLocalLocker()
	release, err := locker.Lock(context.Background(), "s-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "s-1")
	assert.True(t, errors.Is(err, ErrLockTimeout), "second lock should time out, got %v", err)

	other, err := locker.Lock(context.Background(), "s-2")
	require.NoError(t, err, "distinct sessions must not block each other")
	other()

	release()
	release()

	again, err := locker.Lock(context.Background(), "s-1")
	require.NoError(t, err)
	again()
}

func TestLocalLockerRejectsEmptySession(t *testing.T) {
	t.Parallel()

	_, err := NewLocalLocker().Lock(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRedisLocker(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLockerWithClient(client, time.Minute, 5*time.Millisecond)

	release, err := locker.Lock(context.Background(), "s-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("conv:s-1:concierge:lock"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "s-1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	assert.False(t, mr.Exists("conv:s-1:concierge:lock"))

	release2, err := locker.Lock(context.Background(), "s-1")
	require.NoError(t, err)
	release2()
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLockerWithClient(client, time.Minute, 5*time.Millisecond)
	release, err := locker.Lock(context.Background(), "s-9")
	require.NoError(t, err)

	// Simulate expiry and takeover by another process.
	require.NoError(t, mr.Set("conv:s-9:concierge:lock", "someone-else"))
	release()

	got, err := mr.Get("conv:s-9:concierge:lock")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerReleaseFailureKeepsLock(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLockerWithClient(client, time.Minute, 5*time.Millisecond)
	release, err := locker.Lock(context.Background(), "s-7")
	require.NoError(t, err)

	mr.SetError("LOADING redis is loading the dataset")
	err = locker.release(context.Background(), "conv:s-7:concierge:lock", "any-token")
	assert.ErrorContains(t, err, "release session lock")
	assert.NotPanics(t, release)
	mr.SetError("")

	// The lock is left for the ttl to expire.
	assert.True(t, mr.Exists("conv:s-7:concierge:lock"))
}

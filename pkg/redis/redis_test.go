package redis

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mthirumalai2905/clubly-community-hub/config"
	"github.com/mthirumalai2905/clubly-community-hub/internal/realtime"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestFeedRelaysEventsAcrossInstances(t *testing.T) {
	_, c := newTestClient(t)
	ctx := context.Background()

	publisher, err := NewFeed(ctx, c, "test:changes:")
	require.NoError(t, err)
	defer publisher.Close()
	subscriber, err := NewFeed(ctx, c, "test:changes:")
	require.NoError(t, err)
	defer subscriber.Close()

	var (
		mu  sync.Mutex
		got []realtime.ChangeEvent
	)
	_, err = subscriber.Subscribe(realtime.TableDirectMessages, realtime.Eq("receiver_id", "bob"), func(e realtime.ChangeEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	require.NoError(t, err)

	toBob, err := realtime.NewChangeEvent(realtime.TableDirectMessages, realtime.EventInsert, map[string]interface{}{"id": 1, "receiver_id": "bob"})
	require.NoError(t, err)
	toCarol, err := realtime.NewChangeEvent(realtime.TableDirectMessages, realtime.EventInsert, map[string]interface{}{"id": 2, "receiver_id": "carol"})
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(ctx, toCarol))
	require.NoError(t, publisher.Publish(ctx, toBob))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, toBob.ID, got[0].ID)
	assert.Equal(t, realtime.TableDirectMessages, got[0].Table)
	assert.Equal(t, "1", got[0].Field("id"))
}

func TestFeedCloseStopsRelay(t *testing.T) {
	_, c := newTestClient(t)
	f, err := NewFeed(context.Background(), c, "test:changes:")
	require.NoError(t, err)
	assert.NoError(t, f.Close())
}

func TestLockerExcludesConcurrentHolders(t *testing.T) {
	mr, c := newTestClient(t)
	l := NewLocker(c, "test:lock:", time.Second)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "alice|bob")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:alice|bob"))

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "alice|bob")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.False(t, mr.Exists("test:lock:alice|bob"))

	unlock2, err := l.Lock(ctx, "alice|bob")
	require.NoError(t, err)
	unlock2()
}

func TestLockerUnlockDoesNotReleaseForeignLock(t *testing.T) {
	mr, c := newTestClient(t)
	l := NewLocker(c, "test:lock:", time.Second)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "alice|bob")
	require.NoError(t, err)

	// 锁过期后被其他实例拿走
	mr.FastForward(2 * time.Second)
	other, err := l.Lock(ctx, "alice|bob")
	require.NoError(t, err)

	unlock()
	assert.True(t, mr.Exists("test:lock:alice|bob"))
	other()
	assert.False(t, mr.Exists("test:lock:alice|bob"))
}

func configFor(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisConfig{Host: mr.Host(), Port: port}
}

func TestInitRedisAndHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := InitRedis(ctx, configFor(t, mr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close() })

	assert.Same(t, c, GetClient())
	assert.NoError(t, HealthCheck(ctx))
}

func TestInitRedisFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := configFor(t, mr)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := InitRedis(ctx, cfg)
	assert.Error(t, err)
}

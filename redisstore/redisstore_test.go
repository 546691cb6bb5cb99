package redisstore_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bluescreen10/sessionstore"
	"github.com/bluescreen10/sessionstore/redisstore"
	"github.com/bluescreen10/sessionstore/storetest"
)

func TestStore(t *testing.T) {
	rdb := getRedisDB(t)

	var n atomic.Int32
	storetest.Run(t, func(t *testing.T) sessionstore.Store {
		return redisstore.New(rdb, redisstore.WithPrefix(fmt.Sprintf("test%d:", n.Add(1))))
	})
}

func TestGetExpired(t *testing.T) {
	ctx := context.Background()

	s := redisstore.New(getRedisDB(t), redisstore.WithTTL(time.Millisecond))
	require.NoError(t, s.Set(ctx, "abc123", []byte("hello world")))

	time.Sleep(50 * time.Millisecond)
	_, found, err := s.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKeyPrefix(t *testing.T) {
	ctx := context.Background()
	rdb := getRedisDB(t)

	s := redisstore.New(rdb)
	require.NoError(t, s.Set(ctx, "abc123", []byte("hello world")))
	require.NoError(t, rdb.Set(ctx, "other", "value", 0).Err())

	data, err := rdb.Get(ctx, "session:abc123").Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)

	ttl, err := rdb.TTL(ctx, "session:abc123").Result()
	require.NoError(t, err)
	assert.InDelta(t, sessionstore.DefaultTTL.Seconds(), ttl.Seconds(), 5)

	n, err := s.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Clear(ctx))
	exists, err := rdb.Exists(ctx, "other").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists, "Clear should only touch session keys")
}

func TestEmptyPrefixIgnored(t *testing.T) {
	ctx := context.Background()
	rdb := getRedisDB(t)

	s := redisstore.New(rdb, redisstore.WithPrefix(""))
	require.NoError(t, s.Set(ctx, "abc123", []byte("hello world")))
	require.NoError(t, rdb.Set(ctx, "other", "value", 0).Err())

	exists, err := rdb.Exists(ctx, "session:abc123").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	require.NoError(t, s.Clear(ctx))
	exists, err = rdb.Exists(ctx, "other").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists, "Clear should only touch session keys")
}

func TestManyKeys(t *testing.T) {
	ctx := context.Background()
	s := redisstore.New(getRedisDB(t))

	const total = 250
	for i := range total {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("id-%d", i), []byte("data")))
	}

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, total)

	n, err := s.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(total), n)

	require.NoError(t, s.Clear(ctx))
	n, err = s.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func getRedisDB(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()
	server, err := testcontainers.Run(
		ctx, "redis:latest",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	testcontainers.CleanupContainer(t, server)
	require.NoError(t, err)

	endpoint, err := server.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	t.Cleanup(func() { client.Close() })
	return client
}

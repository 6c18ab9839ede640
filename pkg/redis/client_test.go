package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orro3790/drive-sub008/pkg/config"
)

func TestClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.IdempotencyKey("org|user|POST|/api/v1/bid-windows/1/bids", "k1")

	acquired, stored, err := client.Claim(ctx, key, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Empty(t, stored)
	assert.Equal(t, 30*time.Second, mock.ttls[key])

	acquired, stored, err = client.Claim(ctx, key, 30*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired, "second claim must not own the key")
	assert.Empty(t, stored, "pending marker is never exposed")

	require.NoError(t, client.Complete(ctx, key, `{"status":200}`, time.Hour))
	assert.Equal(t, time.Hour, mock.ttls[key])

	acquired, stored, err = client.Claim(ctx, key, 30*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Equal(t, `{"status":200}`, stored)
}

func TestReleaseAllowsReclaim(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.IdempotencyKey("scope", "k2")

	acquired, _, err := client.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, client.Release(ctx, key))

	acquired, _, err = client.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestClaimSurfacesRedisErrors(t *testing.T) {
	mock := newMockCmdable()
	mock.err = errors.New("connection refused")
	client := &Client{store: mock}

	_, _, err := client.Claim(context.Background(), "drive:idempotency:x", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	_, _, err := client.Claim(ctx, "k", time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.ErrorIs(t, client.Complete(ctx, "k", "v", time.Second), errNotInitialized)
	assert.ErrorIs(t, client.Release(ctx, "k"), errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestIdempotencyKeySkipsEmptyParts(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "drive:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "drive:idempotency:id", client.IdempotencyKey(" ", "id"))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3, ReadTimeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)

	_, err = optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)
}

type mockCmdable struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", m.err)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if m.err != nil {
		return redis.NewBoolResult(false, m.err)
	}
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.ttls, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

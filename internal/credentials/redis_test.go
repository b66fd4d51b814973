// SPDX-License-Identifier: MIT

package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, newRedisStore(client, "", zerolog.Nop())
}

func TestRedisStore_PutGet(t *testing.T) {
	mr, s := setupMiniRedis(t)
	ctx := context.Background()

	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	s.Put(ctx, "cli_a1", Token{Value: "t-1", ExpiresAt: exp})

	got, ok := s.Get(ctx, "cli_a1")
	require.True(t, ok)
	assert.Equal(t, "t-1", got.Value)
	assert.True(t, exp.Equal(got.ExpiresAt))

	assert.True(t, mr.Exists("vidlens:token:cli_a1"))
	ttl := mr.TTL("vidlens:token:cli_a1")
	assert.Greater(t, ttl, 29*time.Minute)
	assert.LessOrEqual(t, ttl, 30*time.Minute)
	assert.Equal(t, 1, s.Stats().CurrentSize)
}

func TestRedisStore_ExpiresWithTTL(t *testing.T) {
	mr, s := setupMiniRedis(t)
	ctx := context.Background()

	s.Put(ctx, "k", Token{Value: "v", ExpiresAt: time.Now().Add(time.Minute)})
	mr.FastForward(2 * time.Minute)

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisStore_SkipsExpiredToken(t *testing.T) {
	mr, s := setupMiniRedis(t)

	s.Put(context.Background(), "k", Token{Value: "v", ExpiresAt: time.Now().Add(-time.Second)})

	assert.False(t, mr.Exists("vidlens:token:k"))
	assert.Zero(t, s.Stats().Sets)
}

func TestRedisStore_CorruptValueIsMiss(t *testing.T) {
	mr, s := setupMiniRedis(t)
	require.NoError(t, mr.Set("vidlens:token:k", "not-json"))

	_, ok := s.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.EqualValues(t, 1, s.Stats().Misses)
}

func TestRedisStore_BackingCache(t *testing.T) {
	_, s := setupMiniRedis(t)
	iss := &fakeIssuer{ttl: time.Hour}

	// Two caches sharing one Redis behave like two daemon instances.
	c1 := NewCache(iss, s)
	c2 := NewCache(iss, s)

	a, err := c1.Token(context.Background(), app)
	require.NoError(t, err)
	b, err := c2.Token(context.Background(), app)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.EqualValues(t, 1, iss.calls.Load())
}

func TestNewRedisStore_ConnectionFailure(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	assert.Error(t, err)
}

package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore instance
func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	s := NewRedisStore(client)
	t.Cleanup(func() { s.Close() })

	return s, mr
}

func TestRedisStore(t *testing.T) {
	s, _ := setupTestRedis(t)
	testStoreContract(t, s)
}

func TestRedisStore_KeyPrefixAndNoTTL(t *testing.T) {
	s, mr := setupTestRedis(t)

	require.NoError(t, s.Set(context.Background(), "cart", []byte(`[]`)))

	assert.True(t, mr.Exists("inviteu:cart"))
	assert.Zero(t, mr.TTL("inviteu:cart"))
}

func TestRedisStore_ServerDown(t *testing.T) {
	s, mr := setupTestRedis(t)
	mr.SetError("ERR backend unavailable")

	_, err := s.Get(context.Background(), "cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "redis get failed")
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, NewRedisStore(client).Ping(context.Background()))
}

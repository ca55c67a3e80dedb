package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*repository.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewRedisStore(client, ttl), mr
}

func TestRedisStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) repository.CartStore {
		store, _ := newRedisStore(t, 0)
		return store
	})
}

func TestRedisStore_KeyLayoutAndTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.WriteCart(ctx, "u1", []models.CartLineItem{item("p1", 2, nil, nil)})
	require.NoError(t, err)

	assert.True(t, mr.Exists("cart:user:u1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:user:u1"))
	assert.NotEmpty(t, mr.HGet("cart:user:u1", "items"))
	assert.NotEmpty(t, mr.HGet("cart:user:u1", "created_at"))
}

func TestRedisStore_ExpiredCartIsNotFound(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	_, err := store.WriteCart(ctx, "u1", []models.CartLineItem{item("p1", 1, nil, nil)})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.ReadCart(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}

func TestRedisStore_BackendDown(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	mr.Close()

	_, err := store.ReadCart(context.Background(), "u1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrCartNotFound)
	assert.Error(t, store.Ping(context.Background()))
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisFieldItems     = "items"
	redisFieldCreatedAt = "created_at"
	redisFieldUpdatedAt = "updated_at"
)

// RedisStore keeps each cart as a hash under cart:user:<ownerID>. The item
// sequence is one JSON field so a write replaces it as a whole.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *RedisStore) getKey(ownerID string) string {
	return fmt.Sprintf("cart:user:%s", ownerID)
}

func (r *RedisStore) ReadCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	if err := ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}
	vals, err := r.client.HGetAll(ctx, r.getKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL: %w", err)
	}
	return decodeRedisCart(ownerID, vals)
}

func (r *RedisStore) WriteCart(ctx context.Context, ownerID string, items []models.CartLineItem) (*models.Cart, error) {
	if err := validateItems(ownerID, items); err != nil {
		return nil, err
	}
	data, err := json.Marshal(models.CloneItems(items))
	if err != nil {
		return nil, err
	}

	key := r.getKey(ownerID)
	now := r.now()
	stamp := now.Format(time.RFC3339Nano)

	var created *redis.StringCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, redisFieldCreatedAt, stamp)
		pipe.HSet(ctx, key, redisFieldItems, data, redisFieldUpdatedAt, stamp)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		created = pipe.HGet(ctx, key, redisFieldCreatedAt)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis write cart: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, created.Val())
	if err != nil {
		createdAt = now
	}
	return &models.Cart{
		OwnerID:   ownerID,
		Items:     models.CloneItems(items),
		CreatedAt: createdAt,
		UpdatedAt: now,
	}, nil
}

// DeleteLineItem filters the item out under WATCH so that a concurrent
// writer on the same key aborts this transaction instead of being clobbered.
func (r *RedisStore) DeleteLineItem(ctx context.Context, ownerID string, key models.LineItemKey) (*models.Cart, error) {
	if err := ValidateKey(ownerID, key); err != nil {
		return nil, err
	}
	rkey := r.getKey(ownerID)

	var out *models.Cart
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, rkey).Result()
		if err != nil {
			return err
		}
		cart, err := decodeRedisCart(ownerID, vals)
		if err != nil {
			return err
		}

		cart.Items, _ = withoutKey(cart.Items, key)
		cart.UpdatedAt = r.now()
		data, err := json.Marshal(cart.Items)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, rkey, redisFieldItems, data, redisFieldUpdatedAt, cart.UpdatedAt.Format(time.RFC3339Nano))
			if r.ttl > 0 {
				pipe.Expire(ctx, rkey, r.ttl)
			}
			return nil
		})
		out = cart
		return err
	}, rkey)
	if err != nil {
		if err == ErrCartNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("redis delete line item: %w", err)
	}
	return out, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decodeRedisCart(ownerID string, vals map[string]string) (*models.Cart, error) {
	if len(vals) == 0 {
		return nil, ErrCartNotFound
	}
	cart := models.NewEmptyCart(ownerID)
	if raw := vals[redisFieldItems]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &cart.Items); err != nil {
			return nil, fmt.Errorf("decode cart items: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, vals[redisFieldCreatedAt]); err == nil {
		cart.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, vals[redisFieldUpdatedAt]); err == nil {
		cart.UpdatedAt = t
	}
	return cart, nil
}

package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisNotifier publishes carts on cart:events:<owner>. Each subscription
// holds its own pub/sub connection, released on Close.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	open   map[*Subscription]struct{}
	closed bool
}

func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		logger: logger,
		open:   make(map[*Subscription]struct{}),
	}
}

func (n *RedisNotifier) channel(ownerID string) string {
	return fmt.Sprintf("cart:events:%s", ownerID)
}

func (n *RedisNotifier) Publish(ctx context.Context, cart *models.Cart) error {
	if cart == nil {
		return errors.New("nil cart")
	}
	if err := repository.ValidateOwnerID(cart.OwnerID); err != nil {
		return err
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel(cart.OwnerID), data).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	if err := repository.ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}

	ps := n.client.Subscribe(ctx, n.channel(ownerID))
	// wait for the confirmation so no publish after Subscribe returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis SUBSCRIBE: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		_ = ps.Close()
		return nil, ErrClosed
	}
	var sub *Subscription
	sub = newSubscription(ctx, ownerID, func() error {
		n.mu.Lock()
		delete(n.open, sub)
		n.mu.Unlock()
		return ps.Close()
	})
	n.open[sub] = struct{}{}

	go n.pump(ps, sub)
	return sub, nil
}

func (n *RedisNotifier) pump(ps *redis.PubSub, sub *Subscription) {
	// Channel() is closed by ps.Close()
	for msg := range ps.Channel() {
		var cart models.Cart
		if err := json.Unmarshal([]byte(msg.Payload), &cart); err != nil {
			n.logger.Warn("dropping malformed cart event", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		if cart.OwnerID != sub.OwnerID() {
			continue
		}
		sub.deliver(&cart)
	}
	_ = sub.Close()
}

// Close ends every open subscription.
func (n *RedisNotifier) Close() error {
	n.mu.Lock()
	n.closed = true
	subs := make([]*Subscription, 0, len(n.open))
	for s := range n.open {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package notifier

import (
	"context"
	"errors"
	"sync"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"go.uber.org/zap"
)

// Hub is the in-process Notifier. It is also the local fan-out used by the
// notifiers that receive changes from a shared listener.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Publish hands each subscriber of cart.OwnerID its own copy of the cart.
// It never blocks on a slow subscriber.
func (h *Hub) Publish(_ context.Context, cart *models.Cart) error {
	if cart == nil {
		return errors.New("nil cart")
	}
	if err := repository.ValidateOwnerID(cart.OwnerID); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[cart.OwnerID] {
		sub.deliver(cart.Clone())
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	if err := repository.ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	var sub *Subscription
	sub = newSubscription(ctx, ownerID, func() error {
		h.remove(ownerID, sub)
		return nil
	})
	set, ok := h.subs[ownerID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[ownerID] = set
	}
	set[sub] = struct{}{}

	h.logger.Debug("cart subscriber added", zap.String("owner_id", ownerID), zap.Int("subscribers", len(set)))
	return sub, nil
}

func (h *Hub) remove(ownerID string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[ownerID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, ownerID)
	}
}

// Subscribers returns the number of open subscriptions for ownerID.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ownerID])
}

// HasSubscribers reports whether anyone is listening to ownerID.
func (h *Hub) HasSubscribers(ownerID string) bool {
	return h.Subscribers(ownerID) > 0
}

// Close ends every open subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	var all []*Subscription
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
	return nil
}

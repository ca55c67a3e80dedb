package notifier

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreNotifier follows the cart document with a snapshot listener.
// Firestore pushes every committed write itself, so Publish does nothing.
type FirestoreNotifier struct {
	store  *repository.FirestoreStore
	logger *zap.Logger

	mu     sync.Mutex
	open   map[*Subscription]struct{}
	closed bool
}

func NewFirestoreNotifier(store *repository.FirestoreStore, logger *zap.Logger) *FirestoreNotifier {
	return &FirestoreNotifier{
		store:  store,
		logger: logger,
		open:   make(map[*Subscription]struct{}),
	}
}

// Publish only validates the cart; the committed document write is what
// reaches the listeners.
func (n *FirestoreNotifier) Publish(_ context.Context, cart *models.Cart) error {
	if cart == nil {
		return nil
	}
	return repository.ValidateOwnerID(cart.OwnerID)
}

// Subscribe listens on carts/<ownerID>. The initial snapshot is delivered
// too, so a write that lands before the listener attaches is not lost; a
// missing document arrives as an empty cart.
func (n *FirestoreNotifier) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	if err := repository.ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	it := n.store.Doc(ownerID).Snapshots(listenCtx)

	var sub *Subscription
	sub = newSubscription(ctx, ownerID, func() error {
		cancel()
		it.Stop()
		n.mu.Lock()
		delete(n.open, sub)
		n.mu.Unlock()
		return nil
	})
	n.open[sub] = struct{}{}

	go n.pump(it, sub)
	return sub, nil
}

func (n *FirestoreNotifier) pump(it *firestore.DocumentSnapshotIterator, sub *Subscription) {
	defer sub.Close()

	for {
		snap, err := it.Next()
		if err != nil {
			if err != iterator.Done && status.Code(err) != codes.Canceled {
				n.logger.Warn("cart snapshot listener stopped", zap.String("owner_id", sub.OwnerID()), zap.Error(err))
			}
			return
		}

		var cart *models.Cart
		if !snap.Exists() {
			cart = models.NewEmptyCart(sub.OwnerID())
		} else if cart, err = repository.CartFromSnapshot(sub.OwnerID(), snap); err != nil {
			n.logger.Warn("dropping undecodable cart snapshot", zap.String("owner_id", sub.OwnerID()), zap.Error(err))
			continue
		}
		sub.deliver(cart)
	}
}

// Close ends every open subscription.
func (n *FirestoreNotifier) Close() error {
	n.mu.Lock()
	n.closed = true
	subs := make([]*Subscription, 0, len(n.open))
	for s := range n.open {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, s := range subs {
		if err := s.Close(); err != nil {
			return fmt.Errorf("close firestore subscription: %w", err)
		}
	}
	return nil
}

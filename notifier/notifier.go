package notifier

import (
	"context"
	"errors"
	"sync"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
)

// ErrClosed is returned by Subscribe after the notifier was closed.
var ErrClosed = errors.New("notifier closed")

// Publisher pushes the full state of a cart to its owner's subscribers.
type Publisher interface {
	Publish(ctx context.Context, cart *models.Cart) error
}

// Notifier is a per-owner change feed. Every successful mutation is
// delivered to every subscriber of that owner, the mutating client
// included. Subscribers of other owners never see it.
type Notifier interface {
	Publisher
	// Subscribe opens a feed for ownerID. The subscription ends when it is
	// closed or ctx is cancelled, whichever happens first.
	Subscribe(ctx context.Context, ownerID string) (*Subscription, error)
	Close() error
}

// Subscription is a cancellable handle on one owner's feed. C carries the
// latest cart state; a slow reader skips intermediate states but always
// ends up with the newest one. C is closed once the subscription ends.
type Subscription struct {
	C <-chan *models.Cart

	ownerID string
	box     *mailbox
	release func() error
	done    chan struct{}
	once    sync.Once
	err     error
}

func newSubscription(ctx context.Context, ownerID string, release func() error) *Subscription {
	box := newMailbox()
	s := &Subscription{
		C:       box.ch,
		ownerID: ownerID,
		box:     box,
		release: release,
		done:    make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s
}

// OwnerID returns the owner the subscription is scoped to.
func (s *Subscription) OwnerID() string { return s.ownerID }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close releases the underlying listener and closes C. It is safe to call
// more than once and from any goroutine.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.release != nil {
			s.err = s.release()
		}
		s.box.close()
	})
	return s.err
}

func (s *Subscription) deliver(cart *models.Cart) bool {
	return s.box.offer(cart)
}

// mailbox is a one-slot channel that keeps only the newest value.
type mailbox struct {
	mu     sync.Mutex
	ch     chan *models.Cart
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan *models.Cart, 1)}
}

func (m *mailbox) offer(cart *models.Cart) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	select {
	case m.ch <- cart:
		return true
	default:
	}
	// full: replace the stale value
	select {
	case <-m.ch:
	default:
	}
	m.ch <- cart
	return true
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}

package notifier_test

import (
	"context"
	"testing"
	"time"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/notifier"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func cartWith(owner string, qty int) *models.Cart {
	c := models.NewEmptyCart(owner)
	c.Items = append(c.Items, models.CartLineItem{ProductID: "p1", Quantity: qty})
	return c
}

func receive(t *testing.T, sub *notifier.Subscription) *models.Cart {
	t.Helper()
	select {
	case c, ok := <-sub.C:
		require.True(t, ok, "subscription channel closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no cart delivered")
		return nil
	}
}

func assertNothing(t *testing.T, sub *notifier.Subscription) {
	t.Helper()
	select {
	case c := <-sub.C:
		t.Fatalf("unexpected delivery: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func assertClosed(t *testing.T, sub *notifier.Subscription) {
	t.Helper()
	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel not closed")
	}
}

// runNotifierContract checks the behaviour shared by every Notifier.
func runNotifierContract(t *testing.T, newNotifier func(t *testing.T) notifier.Notifier) {
	ctx := context.Background()

	t.Run("owner scoped full state", func(t *testing.T) {
		n := newNotifier(t)
		a, err := n.Subscribe(ctx, "alice")
		require.NoError(t, err)
		defer a.Close()
		b, err := n.Subscribe(ctx, "bob")
		require.NoError(t, err)
		defer b.Close()

		require.NoError(t, n.Publish(ctx, cartWith("alice", 3)))

		got := receive(t, a)
		assert.Equal(t, "alice", got.OwnerID)
		require.Len(t, got.Items, 1)
		assert.Equal(t, 3, got.Items[0].Quantity)
		assertNothing(t, b)
	})

	t.Run("every subscriber of the owner is notified", func(t *testing.T) {
		n := newNotifier(t)
		s1, err := n.Subscribe(ctx, "alice")
		require.NoError(t, err)
		defer s1.Close()
		s2, err := n.Subscribe(ctx, "alice")
		require.NoError(t, err)
		defer s2.Close()

		require.NoError(t, n.Publish(ctx, cartWith("alice", 1)))
		assert.Equal(t, 1, receive(t, s1).Items[0].Quantity)
		assert.Equal(t, 1, receive(t, s2).Items[0].Quantity)
	})

	t.Run("close releases and closes channel", func(t *testing.T) {
		n := newNotifier(t)
		sub, err := n.Subscribe(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())
		assertClosed(t, sub)

		require.NoError(t, n.Publish(ctx, cartWith("alice", 1)))
	})

	t.Run("context cancel ends subscription", func(t *testing.T) {
		n := newNotifier(t)
		subCtx, cancel := context.WithCancel(ctx)
		sub, err := n.Subscribe(subCtx, "alice")
		require.NoError(t, err)

		cancel()
		assertClosed(t, sub)
	})

	t.Run("empty owner rejected", func(t *testing.T) {
		n := newNotifier(t)
		_, err := n.Subscribe(ctx, "")
		assert.ErrorIs(t, err, repository.ErrInvalidIdentifier)
		assert.ErrorIs(t, n.Publish(ctx, models.NewEmptyCart("")), repository.ErrInvalidIdentifier)
	})

	t.Run("notifier close ends subscriptions", func(t *testing.T) {
		n := newNotifier(t)
		sub, err := n.Subscribe(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, n.Close())
		assertClosed(t, sub)

		_, err = n.Subscribe(ctx, "alice")
		assert.ErrorIs(t, err, notifier.ErrClosed)
	})
}

func TestHub_Contract(t *testing.T) {
	runNotifierContract(t, func(t *testing.T) notifier.Notifier {
		return notifier.NewHub(zap.NewNop())
	})
}

func TestHub_LatestValueForSlowSubscriber(t *testing.T) {
	hub := notifier.NewHub(zap.NewNop())
	sub, err := hub.Subscribe(context.Background(), "alice")
	require.NoError(t, err)
	defer sub.Close()

	for q := 1; q <= 5; q++ {
		require.NoError(t, hub.Publish(context.Background(), cartWith("alice", q)))
	}

	assert.Equal(t, 5, receive(t, sub).Items[0].Quantity)
	assertNothing(t, sub)
}

func TestHub_DeliversCopies(t *testing.T) {
	hub := notifier.NewHub(zap.NewNop())
	sub, err := hub.Subscribe(context.Background(), "alice")
	require.NoError(t, err)
	defer sub.Close()

	cart := cartWith("alice", 1)
	require.NoError(t, hub.Publish(context.Background(), cart))
	cart.Items[0].Quantity = 42

	assert.Equal(t, 1, receive(t, sub).Items[0].Quantity)
}

func TestHub_SubscriberCountDropsOnClose(t *testing.T) {
	hub := notifier.NewHub(zap.NewNop())
	sub, err := hub.Subscribe(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers("alice"))

	require.NoError(t, sub.Close())
	assert.Equal(t, 0, hub.Subscribers("alice"))
	assert.False(t, hub.HasSubscribers("alice"))
}

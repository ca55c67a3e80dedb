package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostgresNotifier_DispatchReloadsCart(t *testing.T) {
	store := repository.NewMemoryStore()
	_, err := store.WriteCart(context.Background(), "alice", []models.CartLineItem{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)

	n := &PostgresNotifier{store: store, hub: NewHub(zap.NewNop()), logger: zap.NewNop()}
	sub, err := n.Subscribe(context.Background(), "alice")
	require.NoError(t, err)
	defer sub.Close()

	n.dispatch(context.Background(), "alice")
	n.dispatch(context.Background(), "bob")

	select {
	case cart := <-sub.C:
		assert.Equal(t, "alice", cart.OwnerID)
		assert.Equal(t, 2, cart.Items[0].Quantity)
	case <-time.After(time.Second):
		t.Fatal("no cart delivered")
	}
}

func TestPostgresNotifier_DispatchMissingCartIsEmpty(t *testing.T) {
	n := &PostgresNotifier{store: repository.NewMemoryStore(), hub: NewHub(zap.NewNop()), logger: zap.NewNop()}
	sub, err := n.Subscribe(context.Background(), "alice")
	require.NoError(t, err)
	defer sub.Close()

	n.dispatch(context.Background(), "alice")

	select {
	case cart := <-sub.C:
		assert.Empty(t, cart.Items)
	case <-time.After(time.Second):
		t.Fatal("no cart delivered")
	}
}

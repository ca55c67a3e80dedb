package repository_test

import (
	"context"
	"testing"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func item(productID string, qty int, size, color *string) models.CartLineItem {
	return models.CartLineItem{ProductID: productID, Quantity: qty, SelectedSize: size, SelectedColor: color}
}

// runStoreContract exercises the behaviour every CartStore must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) repository.CartStore) {
	ctx := context.Background()

	t.Run("read missing cart", func(t *testing.T) {
		store := newStore(t)
		cart, err := store.ReadCart(ctx, "nobody")
		assert.ErrorIs(t, err, repository.ErrCartNotFound)
		assert.Nil(t, cart)
	})

	t.Run("empty identifiers fail fast", func(t *testing.T) {
		store := newStore(t)
		_, err := store.ReadCart(ctx, "")
		assert.ErrorIs(t, err, repository.ErrInvalidIdentifier)

		_, err = store.WriteCart(ctx, "  ", nil)
		assert.ErrorIs(t, err, repository.ErrInvalidIdentifier)

		_, err = store.WriteCart(ctx, "u1", []models.CartLineItem{item("", 1, nil, nil)})
		assert.ErrorIs(t, err, repository.ErrInvalidIdentifier)

		_, err = store.DeleteLineItem(ctx, "u1", models.NewLineItemKey("", nil, nil))
		assert.ErrorIs(t, err, repository.ErrInvalidIdentifier)
	})

	t.Run("write creates then preserves createdAt", func(t *testing.T) {
		store := newStore(t)
		first, err := store.WriteCart(ctx, "u1", []models.CartLineItem{item("p1", 1, nil, nil)})
		require.NoError(t, err)
		assert.Equal(t, "u1", first.OwnerID)
		assert.False(t, first.CreatedAt.IsZero())
		assert.False(t, first.UpdatedAt.Before(first.CreatedAt))

		second, err := store.WriteCart(ctx, "u1", []models.CartLineItem{item("p2", 3, nil, nil)})
		require.NoError(t, err)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
		assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

		got, err := store.ReadCart(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "p2", got.Items[0].ProductID)
		assert.Equal(t, 3, got.Items[0].Quantity)
		assert.True(t, first.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("write with no items keeps the record", func(t *testing.T) {
		store := newStore(t)
		_, err := store.WriteCart(ctx, "u1", []models.CartLineItem{item("p1", 1, nil, nil)})
		require.NoError(t, err)
		_, err = store.WriteCart(ctx, "u1", []models.CartLineItem{})
		require.NoError(t, err)

		got, err := store.ReadCart(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, got.Items)
		assert.Equal(t, "u1", got.OwnerID)
	})

	t.Run("order and nullable attributes round trip", func(t *testing.T) {
		store := newStore(t)
		items := []models.CartLineItem{
			item("p2", 1, strPtr("M"), nil),
			item("p1", 2, nil, strPtr("")),
			item("p1", 4, strPtr(""), strPtr("Red")),
		}
		_, err := store.WriteCart(ctx, "u1", items)
		require.NoError(t, err)

		got, err := store.ReadCart(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, got.Items, 3)
		for i := range items {
			assert.Equal(t, items[i].Key(), got.Items[i].Key())
			assert.Equal(t, items[i].Quantity, got.Items[i].Quantity)
		}
	})

	t.Run("delete line item is targeted", func(t *testing.T) {
		store := newStore(t)
		_, err := store.WriteCart(ctx, "u1", []models.CartLineItem{
			item("p1", 1, nil, nil),
			item("p1", 2, strPtr(""), nil),
			item("p2", 3, nil, nil),
		})
		require.NoError(t, err)

		cart, err := store.DeleteLineItem(ctx, "u1", models.NewLineItemKey("p1", nil, nil))
		require.NoError(t, err)
		require.Len(t, cart.Items, 2)
		assert.Equal(t, models.NewLineItemKey("p1", strPtr(""), nil), cart.Items[0].Key())
		assert.Equal(t, "p2", cart.Items[1].ProductID)

		again, err := store.DeleteLineItem(ctx, "u1", models.NewLineItemKey("p1", nil, nil))
		require.NoError(t, err)
		assert.Len(t, again.Items, 2)
	})

	t.Run("delete on missing cart", func(t *testing.T) {
		store := newStore(t)
		_, err := store.DeleteLineItem(ctx, "ghost", models.NewLineItemKey("p1", nil, nil))
		assert.ErrorIs(t, err, repository.ErrCartNotFound)
	})
}

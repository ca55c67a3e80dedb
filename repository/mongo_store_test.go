package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/nischalstha-ns/e-commerce-sub001/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	cartDoc := bson.D{
		{Key: "_id", Value: "u1"},
		{Key: "items", Value: bson.A{
			bson.D{
				{Key: "product_id", Value: "p1"},
				{Key: "quantity", Value: 2},
				{Key: "selected_size", Value: "M"},
				{Key: "selected_color", Value: nil},
			},
		}},
		{Key: "created_at", Value: created},
		{Key: "updated_at", Value: created},
	}

	mt.Run("read cart", func(mt *mtest.T) {
		store := repository.NewMongoStoreWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "db.carts", mtest.FirstBatch, cartDoc))

		cart, err := store.ReadCart(context.Background(), "u1")
		require.NoError(mt, err)
		assert.Equal(mt, "u1", cart.OwnerID)
		require.Len(mt, cart.Items, 1)
		assert.Equal(mt, models.NewLineItemKey("p1", strPtr("M"), nil), cart.Items[0].Key())
		assert.True(mt, created.Equal(cart.CreatedAt))
	})

	mt.Run("read missing cart", func(mt *mtest.T) {
		store := repository.NewMongoStoreWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.carts", mtest.FirstBatch))

		_, err := store.ReadCart(context.Background(), "u1")
		assert.ErrorIs(mt, err, repository.ErrCartNotFound)
	})

	mt.Run("write cart upserts", func(mt *mtest.T) {
		store := repository.NewMongoStoreWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: cartDoc}))

		cart, err := store.WriteCart(context.Background(), "u1", []models.CartLineItem{item("p1", 2, strPtr("M"), nil)})
		require.NoError(mt, err)
		assert.Len(mt, cart.Items, 1)
	})

	mt.Run("delete line item on missing cart", func(mt *mtest.T) {
		store := repository.NewMongoStoreWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := store.DeleteLineItem(context.Background(), "u1", models.NewLineItemKey("p1", nil, nil))
		assert.ErrorIs(mt, err, repository.ErrCartNotFound)
	})

	mt.Run("backend error", func(mt *mtest.T) {
		store := repository.NewMongoStoreWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Message: "interrupted at shutdown",
			Name:    "InterruptedAtShutdown",
		}))

		_, err := store.ReadCart(context.Background(), "u1")
		assert.Error(mt, err)
		assert.NotErrorIs(mt, err, repository.ErrCartNotFound)
	})

	mt.Run("empty owner", func(mt *mtest.T) {
		store := repository.NewMongoStoreWithCollection(mt.Coll)
		_, err := store.WriteCart(context.Background(), "", nil)
		assert.ErrorIs(mt, err, repository.ErrInvalidIdentifier)
	})

	mt.Run("scan walks every batch", func(mt *mtest.T) {
		store := repository.NewMongoStoreWithCollection(mt.Coll)
		second := bson.D{
			{Key: "_id", Value: "u2"},
			{Key: "items", Value: bson.A{}},
			{Key: "created_at", Value: created},
			{Key: "updated_at", Value: created},
		}
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "db.carts", mtest.FirstBatch, cartDoc),
			mtest.CreateCursorResponse(0, "db.carts", mtest.NextBatch, second),
		)

		var owners []string
		err := store.Scan(context.Background(), 1, func(c *models.Cart) error {
			owners = append(owners, c.OwnerID)
			return nil
		})
		require.NoError(mt, err)
		assert.Equal(mt, []string{"u1", "u2"}, owners)
	})
}

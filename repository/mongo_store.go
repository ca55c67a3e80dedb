package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCartsCollection is the collection used by MongoStore.
const MongoCartsCollection = "carts"

// MongoStore keeps each cart as one document keyed by owner id.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return NewMongoStoreWithCollection(db.Collection(MongoCartsCollection))
}

func NewMongoStoreWithCollection(coll *mongo.Collection) *MongoStore {
	return &MongoStore{
		coll: coll,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// MongoCartDoc is the stored shape of a cart.
type MongoCartDoc struct {
	OwnerID   string         `bson:"_id"`
	Items     []MongoItemDoc `bson:"items"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type MongoItemDoc struct {
	ProductID     string    `bson:"product_id"`
	Quantity      int       `bson:"quantity"`
	SelectedSize  *string   `bson:"selected_size"`
	SelectedColor *string   `bson:"selected_color"`
	AddedAt       time.Time `bson:"added_at"`
}

func (r *MongoStore) ReadCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	if err := ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}
	var doc MongoCartDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": ownerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find cart: %w", err)
	}
	return doc.ToModel(), nil
}

func (r *MongoStore) WriteCart(ctx context.Context, ownerID string, items []models.CartLineItem) (*models.Cart, error) {
	if err := validateItems(ownerID, items); err != nil {
		return nil, err
	}
	now := r.now()
	update := bson.M{
		"$set": bson.M{
			"items":      itemsToMongo(items),
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc MongoCartDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": ownerID}, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("mongo write cart: %w", err)
	}
	return doc.ToModel(), nil
}

// DeleteLineItem pulls the matching element server side.
func (r *MongoStore) DeleteLineItem(ctx context.Context, ownerID string, key models.LineItemKey) (*models.Cart, error) {
	if err := ValidateKey(ownerID, key); err != nil {
		return nil, err
	}
	update := bson.M{
		"$pull": bson.M{"items": bson.M{
			"product_id":     key.ProductID,
			"selected_size":  key.SizePtr(),
			"selected_color": key.ColorPtr(),
		}},
		"$set": bson.M{"updated_at": r.now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc MongoCartDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": ownerID}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo delete line item: %w", err)
	}
	return doc.ToModel(), nil
}

func (r *MongoStore) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

// Scan calls fn for every stored cart, fetching batchSize documents per
// round trip. It stops at the first error fn returns.
func (r *MongoStore) Scan(ctx context.Context, batchSize int32, fn func(*models.Cart) error) error {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetBatchSize(batchSize))
	if err != nil {
		return fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc MongoCartDoc
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("decode cart: %w", err)
		}
		if err := fn(doc.ToModel()); err != nil {
			return err
		}
	}
	return cur.Err()
}

// ToModel converts the stored document to the domain cart.
func (d MongoCartDoc) ToModel() *models.Cart {
	cart := models.NewEmptyCart(d.OwnerID)
	cart.CreatedAt = d.CreatedAt
	cart.UpdatedAt = d.UpdatedAt
	for _, it := range d.Items {
		cart.Items = append(cart.Items, models.CartLineItem{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			SelectedSize:  it.SelectedSize,
			SelectedColor: it.SelectedColor,
			AddedAt:       it.AddedAt,
		})
	}
	return cart
}

func itemsToMongo(items []models.CartLineItem) []MongoItemDoc {
	out := make([]MongoItemDoc, 0, len(items))
	for _, it := range items {
		out = append(out, MongoItemDoc{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			SelectedSize:  it.SelectedSize,
			SelectedColor: it.SelectedColor,
			AddedAt:       it.AddedAt,
		})
	}
	return out
}

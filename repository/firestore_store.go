package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreCartsCollection is the collection used by FirestoreStore.
const FirestoreCartsCollection = "carts"

// FirestoreStore keeps each cart as one document (docId = owner id).
// Mutations run in Firestore transactions, which retry on contention.
type FirestoreStore struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FirestoreCartDoc is the stored document shape.
type FirestoreCartDoc struct {
	OwnerID   string             `firestore:"ownerId"`
	Items     []FirestoreItemDoc `firestore:"items"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type FirestoreItemDoc struct {
	ProductID     string    `firestore:"productId"`
	Quantity      int       `firestore:"quantity"`
	SelectedSize  *string   `firestore:"selectedSize"`
	SelectedColor *string   `firestore:"selectedColor"`
	AddedAt       time.Time `firestore:"addedAt"`
}

func (r *FirestoreStore) col() *firestore.CollectionRef {
	return r.client.Collection(FirestoreCartsCollection)
}

// Doc returns the document reference of an owner's cart.
func (r *FirestoreStore) Doc(ownerID string) *firestore.DocumentRef {
	return r.col().Doc(ownerID)
}

func (r *FirestoreStore) ReadCart(ctx context.Context, ownerID string) (*models.Cart, error) {
	if err := ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}
	snap, err := r.Doc(ownerID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("firestore get cart: %w", err)
	}
	return CartFromSnapshot(ownerID, snap)
}

func (r *FirestoreStore) WriteCart(ctx context.Context, ownerID string, items []models.CartLineItem) (*models.Cart, error) {
	if err := validateItems(ownerID, items); err != nil {
		return nil, err
	}
	ref := r.Doc(ownerID)

	var out *models.Cart
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := r.now()
		createdAt := now

		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap.Exists() {
			existing, err := CartFromSnapshot(ownerID, snap)
			if err != nil {
				return err
			}
			if !existing.CreatedAt.IsZero() {
				createdAt = existing.CreatedAt
			}
		}

		doc := FirestoreCartDoc{
			OwnerID:   ownerID,
			Items:     itemsToFirestore(items),
			CreatedAt: createdAt,
			UpdatedAt: now,
		}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		out = doc.ToModel()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("firestore write cart: %w", err)
	}
	return out, nil
}

func (r *FirestoreStore) DeleteLineItem(ctx context.Context, ownerID string, key models.LineItemKey) (*models.Cart, error) {
	if err := ValidateKey(ownerID, key); err != nil {
		return nil, err
	}
	ref := r.Doc(ownerID)

	var out *models.Cart
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrCartNotFound
			}
			return err
		}
		cart, err := CartFromSnapshot(ownerID, snap)
		if err != nil {
			return err
		}
		cart.Items, _ = withoutKey(cart.Items, key)
		cart.UpdatedAt = r.now()

		if err := tx.Update(ref, []firestore.Update{
			{Path: "items", Value: itemsToFirestore(cart.Items)},
			{Path: "updatedAt", Value: cart.UpdatedAt},
		}); err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err == ErrCartNotFound {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("firestore delete line item: %w", err)
	}
	return out, nil
}

func (r *FirestoreStore) Ping(ctx context.Context) error {
	_, err := r.col().Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("firestore ping failed: %w", err)
	}
	return nil
}

// CartFromSnapshot decodes a cart document. The doc id is the source of
// truth for the owner.
func CartFromSnapshot(ownerID string, snap *firestore.DocumentSnapshot) (*models.Cart, error) {
	var doc FirestoreCartDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode cart document: %w", err)
	}
	doc.OwnerID = ownerID
	return doc.ToModel(), nil
}

// ToModel converts the document to the domain cart.
func (d FirestoreCartDoc) ToModel() *models.Cart {
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

func itemsToFirestore(items []models.CartLineItem) []FirestoreItemDoc {
	out := make([]FirestoreItemDoc, 0, len(items))
	for _, it := range items {
		out = append(out, FirestoreItemDoc{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			SelectedSize:  it.SelectedSize,
			SelectedColor: it.SelectedColor,
			AddedAt:       it.AddedAt,
		})
	}
	return out
}

package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
)

var (
	// ErrCartNotFound is returned by ReadCart when the owner has no cart record.
	ErrCartNotFound = errors.New("cart not found")
	// ErrInvalidIdentifier is returned before any backend call when an owner
	// or product id is empty.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// CartStore persists one cart per owner.
type CartStore interface {
	// ReadCart returns the stored cart or ErrCartNotFound.
	ReadCart(ctx context.Context, ownerID string) (*models.Cart, error)
	// WriteCart replaces the item sequence, bumps updatedAt and creates the
	// record (with createdAt) when it does not exist yet.
	WriteCart(ctx context.Context, ownerID string, items []models.CartLineItem) (*models.Cart, error)
	// DeleteLineItem removes the entry matching key. Returns ErrCartNotFound
	// when the owner has no cart.
	DeleteLineItem(ctx context.Context, ownerID string, key models.LineItemKey) (*models.Cart, error)
	Ping(ctx context.Context) error
}

// ValidateOwnerID rejects blank owner ids.
func ValidateOwnerID(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrInvalidIdentifier
	}
	return nil
}

// ValidateKey rejects blank owner or product ids.
func ValidateKey(ownerID string, key models.LineItemKey) error {
	if err := ValidateOwnerID(ownerID); err != nil {
		return err
	}
	if strings.TrimSpace(key.ProductID) == "" {
		return ErrInvalidIdentifier
	}
	return nil
}

func validateItems(ownerID string, items []models.CartLineItem) error {
	if err := ValidateOwnerID(ownerID); err != nil {
		return err
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return ErrInvalidIdentifier
		}
	}
	return nil
}

// withoutKey returns items minus the entry matching key and whether
// anything was removed.
func withoutKey(items []models.CartLineItem, key models.LineItemKey) ([]models.CartLineItem, bool) {
	out := make([]models.CartLineItem, 0, len(items))
	removed := false
	for _, it := range items {
		if it.Key() == key {
			removed = true
			continue
		}
		out = append(out, it)
	}
	return out, removed
}

package services

import (
	"time"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
)

// mergeAdd accumulates qty onto the item with key, or appends a new item.
// Existing items never move.
func mergeAdd(items []models.CartLineItem, key models.LineItemKey, qty int, now time.Time) []models.CartLineItem {
	out := models.CloneItems(items)
	for i := range out {
		if out[i].Key() == key {
			out[i].Quantity += qty
			return out
		}
	}
	return append(out, models.CartLineItem{
		ProductID:     key.ProductID,
		Quantity:      qty,
		SelectedSize:  key.SizePtr(),
		SelectedColor: key.ColorPtr(),
		AddedAt:       now,
	})
}

// setQuantity replaces the quantity of an existing item. found is false
// when no item has key; the slice is then returned unchanged.
func setQuantity(items []models.CartLineItem, key models.LineItemKey, qty int) (out []models.CartLineItem, found bool) {
	out = models.CloneItems(items)
	for i := range out {
		if out[i].Key() == key {
			out[i].Quantity = qty
			return out, true
		}
	}
	return out, false
}

func containsKey(items []models.CartLineItem, key models.LineItemKey) bool {
	for i := range items {
		if items[i].Key() == key {
			return true
		}
	}
	return false
}

package models

import "time"

// CartLineItem is one (product, size, color) entry of a cart.
type CartLineItem struct {
	ProductID     string    `json:"product_id"`
	Quantity      int       `json:"quantity"`
	SelectedSize  *string   `json:"selected_size"`
	SelectedColor *string   `json:"selected_color"`
	AddedAt       time.Time `json:"added_at"`
}

// Key returns the identity of the line item.
func (i CartLineItem) Key() LineItemKey {
	return NewLineItemKey(i.ProductID, i.SelectedSize, i.SelectedColor)
}

// Cart is the per-owner cart document. Items keep first-insertion order.
type Cart struct {
	OwnerID   string         `json:"owner_id"`
	Items     []CartLineItem `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewEmptyCart returns an unsaved cart with no items.
func NewEmptyCart(ownerID string) *Cart {
	return &Cart{
		OwnerID: ownerID,
		Items:   []CartLineItem{},
	}
}

// Clone returns a deep copy so callers can hand the cart to other goroutines.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = CloneItems(c.Items)
	return &cp
}

// IndexOf returns the position of the item with key k, or -1.
func (c *Cart) IndexOf(k LineItemKey) int {
	if c == nil {
		return -1
	}
	for i := range c.Items {
		if c.Items[i].Key() == k {
			return i
		}
	}
	return -1
}

// TotalQuantity sums the quantities of all line items.
func (c *Cart) TotalQuantity() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, it := range c.Items {
		total += it.Quantity
	}
	return total
}

// CloneItems copies a slice of line items, including the optional size and
// color strings. A nil input yields an empty, non-nil slice.
func CloneItems(src []CartLineItem) []CartLineItem {
	out := make([]CartLineItem, 0, len(src))
	for _, it := range src {
		cp := it
		cp.SelectedSize = cloneString(it.SelectedSize)
		cp.SelectedColor = cloneString(it.SelectedColor)
		out = append(out, cp)
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

package models

import "strings"

// LineItemKey identifies a line item by (productId, selectedSize, selectedColor).
//
// A missing size or color is distinct from an empty string, and values are
// compared exactly: no case folding and no whitespace trimming.
type LineItemKey struct {
	ProductID string
	Size      string
	HasSize   bool
	Color     string
	HasColor  bool
}

// NewLineItemKey builds a key from the raw request fields.
func NewLineItemKey(productID string, size, color *string) LineItemKey {
	k := LineItemKey{ProductID: productID}
	if size != nil {
		k.Size = *size
		k.HasSize = true
	}
	if color != nil {
		k.Color = *color
		k.HasColor = true
	}
	return k
}

// SizePtr returns the size as a nullable string.
func (k LineItemKey) SizePtr() *string {
	if !k.HasSize {
		return nil
	}
	s := k.Size
	return &s
}

// ColorPtr returns the color as a nullable string.
func (k LineItemKey) ColorPtr() *string {
	if !k.HasColor {
		return nil
	}
	c := k.Color
	return &c
}

// String renders the key for logs, e.g. "p1/M/<nil>".
func (k LineItemKey) String() string {
	var b strings.Builder
	b.WriteString(k.ProductID)
	b.WriteByte('/')
	if k.HasSize {
		b.WriteString(k.Size)
	} else {
		b.WriteString("<nil>")
	}
	b.WriteByte('/')
	if k.HasColor {
		b.WriteString(k.Color)
	} else {
		b.WriteString("<nil>")
	}
	return b.String()
}

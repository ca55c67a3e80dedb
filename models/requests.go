package models

// AddItemRequest is the payload for adding a line item. Quantity is left
// untyped so that the engine can reject non-numeric input itself.
type AddItemRequest struct {
	ProductID     string      `json:"product_id"`
	Quantity      interface{} `json:"quantity"`
	SelectedSize  *string     `json:"selected_size"`
	SelectedColor *string     `json:"selected_color"`
}

// UpdateItemRequest sets the absolute quantity of an existing line item.
type UpdateItemRequest struct {
	ProductID     string      `json:"product_id"`
	Quantity      interface{} `json:"quantity"`
	SelectedSize  *string     `json:"selected_size"`
	SelectedColor *string     `json:"selected_color"`
}

// RemoveItemRequest identifies the line item to drop.
type RemoveItemRequest struct {
	ProductID     string  `json:"product_id" form:"product_id"`
	SelectedSize  *string `json:"selected_size" form:"selected_size"`
	SelectedColor *string `json:"selected_color" form:"selected_color"`
}

// Key returns the identity addressed by the request.
func (r AddItemRequest) Key() LineItemKey {
	return NewLineItemKey(r.ProductID, r.SelectedSize, r.SelectedColor)
}

// Key returns the identity addressed by the request.
func (r UpdateItemRequest) Key() LineItemKey {
	return NewLineItemKey(r.ProductID, r.SelectedSize, r.SelectedColor)
}

// Key returns the identity addressed by the request.
func (r RemoveItemRequest) Key() LineItemKey {
	return NewLineItemKey(r.ProductID, r.SelectedSize, r.SelectedColor)
}

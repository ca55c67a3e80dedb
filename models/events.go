package models

import "time"

const (
	EventCheckoutRequested = "checkout.requested"
	EventCartUpdated       = "cart.updated"
	EventOrderPlaced       = "order.placed"
)

type CheckoutEvent struct {
	EventID   string         `json:"event_id"`
	Event     string         `json:"event"` // e.g. "checkout.requested"
	UserID    string         `json:"user_id"`
	Items     []CartLineItem `json:"items"`
	Timestamp time.Time      `json:"timestamp"`
}

// CartUpdatedEvent is emitted after every successful cart mutation.
type CartUpdatedEvent struct {
	EventID       string    `json:"event_id"`
	Event         string    `json:"event"`
	UserID        string    `json:"user_id"`
	Operation     string    `json:"operation"`
	ItemCount     int       `json:"item_count"`
	TotalQuantity int       `json:"total_quantity"`
	Timestamp     time.Time `json:"timestamp"`
}

// OrderEvent is consumed from the order service queue.
type OrderEvent struct {
	Event   string `json:"event"`
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

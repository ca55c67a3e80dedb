package events

import (
	"context"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
)

// Publisher sends cart domain events to downstream services.
type Publisher interface {
	PublishCartUpdated(ctx context.Context, evt models.CartUpdatedEvent) error
	PublishCheckout(ctx context.Context, evt models.CheckoutEvent) error
	Close() error
}

// NopPublisher drops every event. Used when no event backend is configured.
type NopPublisher struct{}

func (NopPublisher) PublishCartUpdated(context.Context, models.CartUpdatedEvent) error { return nil }
func (NopPublisher) PublishCheckout(context.Context, models.CheckoutEvent) error       { return nil }
func (NopPublisher) Close() error                                                      { return nil }

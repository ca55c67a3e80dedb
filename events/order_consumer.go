package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	awspkg "github.com/nischalstha-ns/e-commerce-sub001/pkg/aws"
	"go.uber.org/zap"
)

// CartClearer empties an owner's cart.
type CartClearer interface {
	ClearCart(ctx context.Context, ownerID string) (*models.Cart, error)
}

// Poller is satisfied by *awspkg.SQSConsumer.
type Poller interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

// OrderEventsConsumer clears a user's cart once the order service reports
// the order as placed. Clearing is idempotent, so redelivery is harmless.
type OrderEventsConsumer struct {
	poller  Poller
	carts   CartClearer
	metrics awspkg.MetricsRecorder
	logger  *zap.Logger
}

func NewOrderEventsConsumer(poller Poller, carts CartClearer, metrics awspkg.MetricsRecorder, logger *zap.Logger) *OrderEventsConsumer {
	return &OrderEventsConsumer{poller: poller, carts: carts, metrics: metrics, logger: logger}
}

// Start polls until ctx is cancelled.
func (c *OrderEventsConsumer) Start(ctx context.Context) {
	c.logger.Info("starting order events consumer")
	err := c.poller.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("order events polling stopped", zap.Error(err))
	}
}

// HandleMessage processes one queue message. Malformed or unrelated
// messages are acknowledged and dropped; store failures are returned so
// the message is redelivered.
func (c *OrderEventsConsumer) HandleMessage(ctx context.Context, body string) error {
	// unwrap the SNS envelope when the queue is subscribed to a topic
	var envelope struct {
		Type    string `json:"Type"`
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		body = envelope.Message
	}

	var evt models.OrderEvent
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		c.logger.Warn("dropping invalid order event", zap.Error(err))
		return nil
	}
	if evt.Event != models.EventOrderPlaced {
		return nil
	}
	if strings.TrimSpace(evt.UserID) == "" {
		c.logger.Warn("dropping order event without user_id", zap.String("order_id", evt.OrderID))
		return nil
	}

	if _, err := c.carts.ClearCart(ctx, evt.UserID); err != nil {
		c.logger.Error("failed to clear cart after order", zap.String("order_id", evt.OrderID), zap.String("user_id", evt.UserID), zap.Error(err))
		return err
	}

	if c.metrics != nil {
		_ = c.metrics.RecordCount(ctx, awspkg.MetricSQSMessages, map[string]string{"Event": evt.Event})
	}
	c.logger.Info("cart cleared for placed order", zap.String("order_id", evt.OrderID), zap.String("user_id", evt.UserID))
	return nil
}

package events

import (
	"context"
	"encoding/json"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by user id, so all events of one cart
// land on the same partition in order.
type KafkaPublisher struct {
	writer        MessageWriter
	checkoutTopic string
	updatesTopic  string
	logger        *zap.Logger
}

// NewKafkaPublisher builds a writer without a fixed topic; each message
// names its own.
func NewKafkaPublisher(brokers []string, checkoutTopic, updatesTopic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	logger.Info("kafka producer initialized",
		zap.Strings("brokers", brokers),
		zap.String("checkout_topic", checkoutTopic),
		zap.String("updates_topic", updatesTopic))
	return NewKafkaPublisherWithWriter(w, checkoutTopic, updatesTopic, logger)
}

func NewKafkaPublisherWithWriter(w MessageWriter, checkoutTopic, updatesTopic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:        w,
		checkoutTopic: checkoutTopic,
		updatesTopic:  updatesTopic,
		logger:        logger,
	}
}

func (p *KafkaPublisher) PublishCartUpdated(ctx context.Context, evt models.CartUpdatedEvent) error {
	return p.send(ctx, p.updatesTopic, evt.UserID, evt.Event, evt)
}

func (p *KafkaPublisher) PublishCheckout(ctx context.Context, evt models.CheckoutEvent) error {
	return p.send(ctx, p.checkoutTopic, evt.UserID, evt.Event, evt)
}

func (p *KafkaPublisher) send(ctx context.Context, topic, key, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   data,
		Headers: []kafka.Header{{Key: "event", Value: []byte(event)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to send kafka message", zap.String("topic", topic), zap.String("user_id", key), zap.Error(err))
		return err
	}
	p.logger.Debug("kafka message sent", zap.String("topic", topic), zap.String("event", event), zap.String("user_id", key))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

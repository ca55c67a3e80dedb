package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nischalstha-ns/e-commerce-sub001/events"
	"github.com/nischalstha-ns/e-commerce-sub001/models"
	awspkg "github.com/nischalstha-ns/e-commerce-sub001/pkg/aws"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- mock kafka writer ----

type mockWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

// ---- mock SNS publisher ----

type mockSNS struct {
	topic      string
	messages   [][]byte
	publishErr error
}

func (m *mockSNS) Publish(_ context.Context, topicArn string, message []byte) error {
	m.topic = topicArn
	m.messages = append(m.messages, message)
	return m.publishErr
}

// ---- mock cart clearer ----

type mockClearer struct {
	cleared []string
	err     error
}

func (m *mockClearer) ClearCart(_ context.Context, ownerID string) (*models.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.cleared = append(m.cleared, ownerID)
	return models.NewEmptyCart(ownerID), nil
}

// ---- tests ----

func TestKafkaPublisher_RoutesByEvent(t *testing.T) {
	w := &mockWriter{}
	p := events.NewKafkaPublisherWithWriter(w, "checkout.requested", "cart.updated", zap.NewNop())

	require.NoError(t, p.PublishCheckout(context.Background(), models.CheckoutEvent{
		EventID: "e1", Event: models.EventCheckoutRequested, UserID: "u1", Timestamp: time.Now(),
	}))
	require.NoError(t, p.PublishCartUpdated(context.Background(), models.CartUpdatedEvent{
		EventID: "e2", Event: models.EventCartUpdated, UserID: "u1", Operation: "add",
	}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "checkout.requested", w.msgs[0].Topic)
	assert.Equal(t, "cart.updated", w.msgs[1].Topic)
	assert.Equal(t, []byte("u1"), w.msgs[0].Key)

	var evt models.CartUpdatedEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &evt))
	assert.Equal(t, "add", evt.Operation)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &mockWriter{err: errors.New("broker down")}
	p := events.NewKafkaPublisherWithWriter(w, "a", "b", zap.NewNop())
	assert.Error(t, p.PublishCheckout(context.Background(), models.CheckoutEvent{UserID: "u1"}))
}

func TestSNSPublisher(t *testing.T) {
	sns := &mockSNS{}
	p := events.NewSNSPublisher(sns, "arn:aws:sns:us-east-1:000000000000:cart")

	require.NoError(t, p.PublishCartUpdated(context.Background(), models.CartUpdatedEvent{Event: models.EventCartUpdated, UserID: "u1"}))
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:cart", sns.topic)
	assert.Contains(t, string(sns.messages[0]), `"event":"cart.updated"`)

	sns.publishErr = errors.New("throttled")
	assert.Error(t, p.PublishCheckout(context.Background(), models.CheckoutEvent{UserID: "u1"}))
}

var _ awspkg.SNSPublisher = (*mockSNS)(nil)

func TestOrderEventsConsumer_HandleMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		cleared []string
	}{
		{"order placed", `{"event":"order.placed","order_id":"o1","user_id":"u1"}`, []string{"u1"}},
		{"sns envelope", `{"Type":"Notification","Message":"{\"event\":\"order.placed\",\"order_id\":\"o1\",\"user_id\":\"u2\"}"}`, []string{"u2"}},
		{"other event ignored", `{"event":"order.cancelled","user_id":"u1"}`, nil},
		{"missing user dropped", `{"event":"order.placed","order_id":"o1"}`, nil},
		{"invalid json dropped", `not json`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carts := &mockClearer{}
			c := events.NewOrderEventsConsumer(nil, carts, nil, zap.NewNop())
			assert.NoError(t, c.HandleMessage(context.Background(), tt.body))
			assert.Equal(t, tt.cleared, carts.cleared)
		})
	}
}

func TestOrderEventsConsumer_StoreErrorIsRetried(t *testing.T) {
	carts := &mockClearer{err: errors.New("redis down")}
	c := events.NewOrderEventsConsumer(nil, carts, nil, zap.NewNop())
	assert.Error(t, c.HandleMessage(context.Background(), `{"event":"order.placed","user_id":"u1"}`))
}

type mockPoller struct{ bodies []string }

func (m *mockPoller) StartPolling(ctx context.Context, handler awspkg.MessageHandler) error {
	for _, b := range m.bodies {
		_ = handler(ctx, b)
	}
	return context.Canceled
}

func TestOrderEventsConsumer_Start(t *testing.T) {
	carts := &mockClearer{}
	poller := &mockPoller{bodies: []string{`{"event":"order.placed","user_id":"u9"}`}}
	events.NewOrderEventsConsumer(poller, carts, nil, zap.NewNop()).Start(context.Background())
	assert.Equal(t, []string{"u9"}, carts.cleared)
}

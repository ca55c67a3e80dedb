package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nischalstha-ns/e-commerce-sub001/models"
	awspkg "github.com/nischalstha-ns/e-commerce-sub001/pkg/aws"
)

// SNSPublisher publishes every cart event to one topic. Consumers tell
// events apart by the "event" field of the JSON body.
type SNSPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client awspkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) PublishCartUpdated(ctx context.Context, evt models.CartUpdatedEvent) error {
	return p.publish(ctx, evt)
}

func (p *SNSPublisher) PublishCheckout(ctx context.Context, evt models.CheckoutEvent) error {
	return p.publish(ctx, evt)
}

func (p *SNSPublisher) publish(ctx context.Context, evt interface{}) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, p.topicArn, data)
}

func (p *SNSPublisher) Close() error { return nil }

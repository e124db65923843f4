// Package events publishes domain events to Pub/Sub. The worker
// consumes them to dispatch notifications and run maintenance jobs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Event types carried in the message payload and the "type" attribute.
const (
	TypePlanReady  = "plan_ready"
	TypeLeaseSweep = "lease_sweep"
)

// Message is the envelope for every published event.
type Message struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	PlanID     string `json:"plan_id,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// Publisher publishes events to a Pub/Sub topic.
type Publisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topicName string
	logger    zerolog.Logger
}

// PublisherConfig holds configuration for the publisher.
type PublisherConfig struct {
	ProjectID string
	TopicName string
	Logger    zerolog.Logger
}

// NewPublisher creates a publisher for the configured topic.
func NewPublisher(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &Publisher{
		client:    client,
		publisher: client.Publisher(cfg.TopicName),
		topicName: cfg.TopicName,
		logger:    cfg.Logger,
	}, nil
}

// PlanReady announces a freshly stored plan.
func (p *Publisher) PlanReady(ctx context.Context, userID, planID string) error {
	return p.publish(ctx, Message{
		Type:   TypePlanReady,
		UserID: userID,
		PlanID: planID,
	})
}

// LeaseSweep asks the worker to clear expired generation leases.
func (p *Publisher) LeaseSweep(ctx context.Context) error {
	return p.publish(ctx, Message{Type: TypeLeaseSweep})
}

func (p *Publisher) publish(ctx context.Context, msg Message) error {
	msg.OccurredAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", msg.Type, err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type": msg.Type,
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing %s event: %w", msg.Type, err)
	}

	p.logger.Debug().
		Str("type", msg.Type).
		Str("message_id", id).
		Msg("published event")

	return nil
}

// Close flushes pending messages and closes the client.
func (p *Publisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// NoopPublisher drops every event. Used when Pub/Sub is not configured,
// for example in local development.
type NoopPublisher struct{}

func (NoopPublisher) PlanReady(ctx context.Context, userID, planID string) error { return nil }

func (NoopPublisher) LeaseSweep(ctx context.Context) error { return nil }

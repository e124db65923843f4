package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/macroplan/macroplan/internal/events"
)

// Receive settings. Extension is generous because a plan-ready event can
// trigger notification fan-out that takes a while.
const (
	maxOutstandingMessages = 10
	maxAckExtension        = 10 * time.Minute
)

// PubSubHandler pulls events off the subscription and feeds them to the
// dispatcher.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig wires the handler to a subscription and a dispatcher.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler connects to the project and prepares the subscriber.
// It does not start receiving; call Start for that.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstandingMessages
	subscriber.ReceiveSettings.MaxExtension = maxAckExtension

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start blocks receiving messages until the context is canceled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("listening for events")

	return h.subscriber.Receive(ctx, h.handleMessage)
}

// Close releases the underlying Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// handleMessage acks everything that must not come back: handled events,
// unknown event types, and unparseable payloads, which will not parse on
// redelivery either. Only genuine handler failures nack for retry.
func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	start := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	var event events.Message
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error().Err(err).Msg("discarding unparseable message")
		msg.Ack()
		return
	}

	if err := h.dispatcher.Dispatch(ctx, event); err != nil {
		if errors.Is(err, ErrUnknownEvent) {
			logger.Warn().Str("event_type", event.Type).Msg("unknown event type")
			msg.Ack()
			return
		}
		logger.Error().Err(err).Str("event_type", event.Type).Msg("event handling failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("event_type", event.Type).
		Dur("duration", time.Since(start)).
		Msg("event handled")

	msg.Ack()
}

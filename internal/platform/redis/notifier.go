package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	r "github.com/redis/go-redis/v9"

	"github.com/phrazzld/askstream/internal/domain"
	"github.com/phrazzld/askstream/internal/notify"
)

// Notifier implements notify.Publisher over a Redis pub/sub channel.
// Publishing is fire-and-forget: messages reach only currently
// subscribed listeners and are otherwise dropped.
type Notifier struct {
	client  *r.Client
	channel string
	logger  *slog.Logger
}

// NewNotifier creates a pub/sub-backed notification publisher.
// If log is nil, the default logger is used.
func NewNotifier(client *r.Client, channel string, log *slog.Logger) *Notifier {
	if client == nil {
		panic("client cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Notifier{
		client:  client,
		channel: channel,
		logger:  log.With(slog.String("component", "notifier")),
	}
}

// Ensure Notifier implements notify.Publisher.
var _ notify.Publisher = (*Notifier)(nil)

// Publish implements notify.Publisher.Publish.
// A publish with zero subscribers succeeds; durable delivery is the
// status store's job, not this channel's.
func (n *Notifier) Publish(ctx context.Context, notification *domain.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	receivers, err := n.client.Publish(ctx, n.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	n.logger.Debug("published notification",
		slog.String("task_id", notification.TaskID.String()),
		slog.Int64("receivers", receivers))
	return nil
}

// ChannelSubscriber implements notify.Subscriber over Redis pub/sub.
// Each Subscribe call opens a fresh subscription; the listener owns
// the resubscribe-with-backoff loop.
type ChannelSubscriber struct {
	client  *r.Client
	channel string
}

// NewChannelSubscriber creates a pub/sub-backed subscriber.
func NewChannelSubscriber(client *r.Client, channel string) *ChannelSubscriber {
	if client == nil {
		panic("client cannot be nil")
	}

	return &ChannelSubscriber{
		client:  client,
		channel: channel,
	}
}

// Ensure ChannelSubscriber implements notify.Subscriber.
var _ notify.Subscriber = (*ChannelSubscriber)(nil)

// Subscribe implements notify.Subscriber.Subscribe.
func (s *ChannelSubscriber) Subscribe(ctx context.Context) (notify.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)

	// Force the SUBSCRIBE round trip so connection failures surface
	// here instead of on the first receive.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	return &pubsubSubscription{pubsub: pubsub}, nil
}

// pubsubSubscription adapts *redis.PubSub to notify.Subscription.
type pubsubSubscription struct {
	pubsub *r.PubSub
}

// Next implements notify.Subscription.Next.
func (s *pubsubSubscription) Next(ctx context.Context) ([]byte, error) {
	msg, err := s.pubsub.ReceiveMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to receive notification: %w", err)
	}
	return []byte(msg.Payload), nil
}

// Close implements notify.Subscription.Close.
func (s *pubsubSubscription) Close() error {
	return s.pubsub.Close()
}

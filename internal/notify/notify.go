// Package notify defines the notification bus boundary: fire-and-
// forget publication of completed results and the listener loop that
// pushes them to the front end.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/phrazzld/askstream/internal/domain"
)

// Publisher pushes completed results onto the notification bus.
// Publication is best-effort: no listener means the message is
// dropped, and the caller must never treat that as a task failure.
type Publisher interface {
	// Publish sends a notification to all currently subscribed
	// listeners. Succeeds even when nobody is subscribed.
	Publish(ctx context.Context, notification *domain.Notification) error
}

// Subscriber opens subscriptions on the notification bus.
type Subscriber interface {
	// Subscribe establishes a new subscription. The caller owns the
	// returned subscription and must close it.
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is a live stream of raw notification payloads.
type Subscription interface {
	// Next blocks until a message arrives, the transport fails, or
	// the context is cancelled.
	Next(ctx context.Context) ([]byte, error)

	// Close releases the subscription.
	Close() error
}

// Forwarder delivers a result to its delivery target. Target
// resolution and message formatting belong to the forwarder, not to
// this package.
type Forwarder interface {
	// Forward pushes the notification's result to the chat it names.
	Forward(ctx context.Context, notification *domain.Notification) error
}

// DecodeNotification parses a raw bus payload.
func DecodeNotification(payload []byte) (*domain.Notification, error) {
	var notification domain.Notification
	if err := json.Unmarshal(payload, &notification); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	return &notification, nil
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/askstream/internal/domain"
)

// scriptedSubscription feeds a fixed sequence of payloads and then
// returns its final error.
type scriptedSubscription struct {
	payloads [][]byte
	finalErr error
	closed   bool
}

func (s *scriptedSubscription) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.payloads) == 0 {
		return nil, s.finalErr
	}
	payload := s.payloads[0]
	s.payloads = s.payloads[1:]
	return payload, nil
}

func (s *scriptedSubscription) Close() error {
	s.closed = true
	return nil
}

// fakeSubscriber hands out subscriptions from a queue of scripts.
type fakeSubscriber struct {
	mu            sync.Mutex
	subscriptions []*scriptedSubscription
	subscribeErr  error
	opened        int
}

func (f *fakeSubscriber) Subscribe(ctx context.Context) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	if f.subscribeErr != nil {
		err := f.subscribeErr
		f.subscribeErr = nil
		return nil, err
	}
	if len(f.subscriptions) == 0 {
		return nil, context.Canceled
	}
	sub := f.subscriptions[0]
	f.subscriptions = f.subscriptions[1:]
	return sub, nil
}

// recordingForwarder collects forwarded notifications.
type recordingForwarder struct {
	mu        sync.Mutex
	ForwardFn func(ctx context.Context, notification *domain.Notification) error
	forwarded []*domain.Notification
}

func (f *recordingForwarder) Forward(ctx context.Context, notification *domain.Notification) error {
	f.mu.Lock()
	f.forwarded = append(f.forwarded, notification)
	f.mu.Unlock()
	if f.ForwardFn != nil {
		return f.ForwardFn(ctx, notification)
	}
	return nil
}

func (f *recordingForwarder) all() []*domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Notification, len(f.forwarded))
	copy(out, f.forwarded)
	return out
}

func encodeNotification(t *testing.T, n *domain.Notification) []byte {
	t.Helper()
	payload, err := json.Marshal(n)
	require.NoError(t, err)
	return payload
}

func TestListener_ForwardsNotifications(t *testing.T) {
	first := &domain.Notification{TaskID: uuid.New(), UserID: 1, ChatID: 10, Result: "first answer"}
	second := &domain.Notification{TaskID: uuid.New(), UserID: 2, ChatID: 20, Result: "second answer"}

	sub := &scriptedSubscription{
		payloads: [][]byte{
			encodeNotification(t, first),
			encodeNotification(t, second),
		},
		finalErr: context.Canceled,
	}
	subscriber := &fakeSubscriber{subscriptions: []*scriptedSubscription{sub}}
	forwarder := &recordingForwarder{}

	listener := NewListener(subscriber, forwarder, time.Millisecond, nil)

	err := listener.Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	forwarded := forwarder.all()
	require.Len(t, forwarded, 2)
	assert.Equal(t, first.TaskID, forwarded[0].TaskID)
	assert.Equal(t, "first answer", forwarded[0].Result)
	assert.Equal(t, second.ChatID, forwarded[1].ChatID)
	assert.True(t, sub.closed)
}

func TestListener_ResubscribesAfterTransportError(t *testing.T) {
	notification := &domain.Notification{TaskID: uuid.New(), UserID: 1, ChatID: 1, Result: "late answer"}

	// First subscription dies with a transport error; the second
	// delivers the message and then ends the test via cancellation.
	broken := &scriptedSubscription{finalErr: errors.New("connection reset")}
	healthy := &scriptedSubscription{
		payloads: [][]byte{encodeNotification(t, notification)},
		finalErr: context.Canceled,
	}
	subscriber := &fakeSubscriber{subscriptions: []*scriptedSubscription{broken, healthy}}
	forwarder := &recordingForwarder{}

	listener := NewListener(subscriber, forwarder, time.Millisecond, nil)

	err := listener.Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 2, subscriber.opened)
	require.Len(t, forwarder.all(), 1)
	assert.True(t, broken.closed)
	assert.True(t, healthy.closed)
}

func TestListener_RetriesFailedSubscribe(t *testing.T) {
	notification := &domain.Notification{TaskID: uuid.New(), UserID: 1, ChatID: 1, Result: "answer"}

	sub := &scriptedSubscription{
		payloads: [][]byte{encodeNotification(t, notification)},
		finalErr: context.Canceled,
	}
	subscriber := &fakeSubscriber{
		subscribeErr:  errors.New("broker unavailable"),
		subscriptions: []*scriptedSubscription{sub},
	}
	forwarder := &recordingForwarder{}

	listener := NewListener(subscriber, forwarder, time.Millisecond, nil)

	err := listener.Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 2, subscriber.opened)
	assert.Len(t, forwarder.all(), 1)
}

func TestListener_SkipsMalformedPayloads(t *testing.T) {
	valid := &domain.Notification{TaskID: uuid.New(), UserID: 1, ChatID: 1, Result: "kept"}

	sub := &scriptedSubscription{
		payloads: [][]byte{
			[]byte("{not json"),
			encodeNotification(t, valid),
		},
		finalErr: context.Canceled,
	}
	subscriber := &fakeSubscriber{subscriptions: []*scriptedSubscription{sub}}
	forwarder := &recordingForwarder{}

	listener := NewListener(subscriber, forwarder, time.Millisecond, nil)

	err := listener.Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	// The malformed payload is dropped; the valid one still flows.
	forwarded := forwarder.all()
	require.Len(t, forwarded, 1)
	assert.Equal(t, "kept", forwarded[0].Result)
}

func TestListener_ForwardFailureDoesNotKillSubscription(t *testing.T) {
	first := &domain.Notification{TaskID: uuid.New(), UserID: 1, ChatID: 1, Result: "undeliverable"}
	second := &domain.Notification{TaskID: uuid.New(), UserID: 2, ChatID: 2, Result: "delivered"}

	sub := &scriptedSubscription{
		payloads: [][]byte{
			encodeNotification(t, first),
			encodeNotification(t, second),
		},
		finalErr: context.Canceled,
	}
	subscriber := &fakeSubscriber{subscriptions: []*scriptedSubscription{sub}}

	forwarder := &recordingForwarder{
		ForwardFn: func(ctx context.Context, n *domain.Notification) error {
			if n.Result == "undeliverable" {
				return errors.New("webhook returned status 502")
			}
			return nil
		},
	}

	listener := NewListener(subscriber, forwarder, time.Millisecond, nil)

	err := listener.Run(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	// Both messages were attempted; the failed delivery did not force
	// a resubscribe.
	assert.Len(t, forwarder.all(), 2)
	assert.Equal(t, 1, subscriber.opened)
}

func TestListener_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	subscriber := &fakeSubscriber{}
	forwarder := &recordingForwarder{}

	listener := NewListener(subscriber, forwarder, time.Millisecond, nil)

	err := listener.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, subscriber.opened)
	assert.Empty(t, forwarder.all())
}

func TestDecodeNotification(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		want := &domain.Notification{TaskID: uuid.New(), UserID: 3, ChatID: 4, Result: "answer"}
		payload := encodeNotification(t, want)

		got, err := DecodeNotification(payload)
		require.NoError(t, err)
		assert.Equal(t, want.TaskID, got.TaskID)
		assert.Equal(t, want.Result, got.Result)
	})

	t.Run("invalid payload", func(t *testing.T) {
		got, err := DecodeNotification([]byte("garbage"))
		assert.Error(t, err)
		assert.Nil(t, got)
	})
}

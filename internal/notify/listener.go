package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Listener consumes the notification bus and forwards each result to
// its delivery target. It survives transport errors by resubscribing
// after a fixed backoff and exits only on context cancellation.
type Listener struct {
	subscriber Subscriber
	forwarder  Forwarder
	backoff    time.Duration
	logger     *slog.Logger
}

// NewListener creates a Listener. If log is nil, the default logger
// is used.
func NewListener(subscriber Subscriber, forwarder Forwarder, backoff time.Duration, log *slog.Logger) *Listener {
	if subscriber == nil {
		panic("subscriber cannot be nil")
	}
	if forwarder == nil {
		panic("forwarder cannot be nil")
	}
	if backoff <= 0 {
		backoff = 5 * time.Second
	}

	if log == nil {
		log = slog.Default()
	}

	return &Listener{
		subscriber: subscriber,
		forwarder:  forwarder,
		backoff:    backoff,
		logger:     log.With(slog.String("component", "listener")),
	}
}

// Run subscribes and processes messages until the context is
// cancelled. Transient subscribe/receive errors are logged and
// retried forever; terminating the loop is the caller's decision,
// expressed through ctx.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info("listener stopping", slog.String("reason", err.Error()))
			return err
		}

		if err := l.consume(ctx); err != nil {
			if isCancellation(err) {
				l.logger.Info("listener stopping", slog.String("reason", err.Error()))
				return err
			}

			l.logger.Error("notification transport error, backing off",
				slog.String("error", err.Error()),
				slog.Duration("backoff", l.backoff))

			if !l.sleep(ctx) {
				return ctx.Err()
			}
		}
	}
}

// consume opens one subscription and processes messages until the
// transport fails or the context is cancelled.
func (l *Listener) consume(ctx context.Context) error {
	sub, err := l.subscriber.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sub.Close(); closeErr != nil {
			l.logger.Warn("failed to close subscription", slog.String("error", closeErr.Error()))
		}
	}()

	l.logger.Info("subscribed to notification bus")

	for {
		payload, err := sub.Next(ctx)
		if err != nil {
			return err
		}

		l.handle(ctx, payload)
	}
}

// handle decodes and forwards a single message. Malformed payloads
// and forwarding failures are logged and skipped; neither may kill
// the subscription.
func (l *Listener) handle(ctx context.Context, payload []byte) {
	notification, err := DecodeNotification(payload)
	if err != nil {
		l.logger.Warn("skipping malformed notification", slog.String("error", err.Error()))
		return
	}

	log := l.logger.With(
		slog.String("task_id", notification.TaskID.String()),
		slog.Int64("chat_id", notification.ChatID))

	if err := l.forwarder.Forward(ctx, notification); err != nil {
		log.Error("failed to forward result", slog.String("error", err.Error()))
		return
	}

	log.Debug("forwarded result")
}

// sleep waits one backoff interval. Returns false if the context was
// cancelled while waiting.
func (l *Listener) sleep(ctx context.Context) bool {
	timer := time.NewTimer(l.backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// isCancellation reports whether the error is context cancellation
// rather than a transport failure.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

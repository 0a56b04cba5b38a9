// Package queue defines the durable task queue boundary: an
// append-only log consumed through a named consumer group with
// at-least-once delivery and explicit acknowledgment.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/phrazzld/askstream/internal/domain"
)

// Common queue errors.
var (
	// ErrBadEntry is returned when a delivered entry cannot be decoded
	// into a task. Such entries should be acknowledged and skipped so
	// they do not wedge the consumer.
	ErrBadEntry = errors.New("malformed queue entry")
)

// Delivery is a queue entry handed to one consumer of the group. The
// entry ID identifies the log position for acknowledgment only; it is
// never a substitute for the task ID.
type Delivery struct {
	EntryID string
	Task    domain.Task
}

// Queue is the durable task queue. Implementations must guarantee
// that, within the consumer group, an unacknowledged entry is owned by
// at most one live consumer at a time.
type Queue interface {
	// Enqueue appends a task to the log.
	Enqueue(ctx context.Context, task *domain.Task) error

	// EnsureGroup creates the consumer group bound to the queue,
	// starting from the beginning of the log so no historical entries
	// are lost. Creating a group that already exists is a no-op, not
	// an error.
	EnsureGroup(ctx context.Context) error

	// Next delivers the next unseen entry to the named consumer,
	// blocking up to the implementation's configured bound. A nil
	// delivery with a nil error means the wait timed out with nothing
	// to deliver; the caller should re-check cancellation and poll
	// again.
	Next(ctx context.Context, consumer string) (*Delivery, error)

	// Ack removes an entry from the group's pending set. Must be
	// called exactly once per delivery, after the task's status
	// record reaches a terminal state, regardless of outcome.
	Ack(ctx context.Context, entryID string) error

	// Reclaim transfers entries that have been pending longer than
	// minIdle to the named consumer and returns them for
	// reprocessing. Redelivery makes the overall semantics
	// at-least-once, so callers must process reclaimed deliveries
	// idempotently.
	Reclaim(ctx context.Context, consumer string, minIdle time.Duration) ([]*Delivery, error)

	// Ping verifies connectivity to the backing broker.
	Ping(ctx context.Context) error
}

// IsTransient reports whether a queue error is a transport problem
// worth a backoff-and-retry, as opposed to cancellation, which must
// end the loop cleanly.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

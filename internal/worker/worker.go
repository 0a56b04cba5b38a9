// Package worker implements the consumer side of the pipeline: a
// sequential loop that pulls one task at a time from the durable
// queue, runs the answer engine, records the outcome, and publishes
// the result.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/askstream/internal/domain"
	"github.com/phrazzld/askstream/internal/engine"
	"github.com/phrazzld/askstream/internal/notify"
	"github.com/phrazzld/askstream/internal/queue"
	"github.com/phrazzld/askstream/internal/store"
)

// Config holds the worker loop settings.
type Config struct {
	// Consumer is this worker's identity within the consumer group.
	Consumer string

	// RetryInterval is the fixed sleep after a transient queue error.
	RetryInterval time.Duration

	// ReclaimMinIdle enables the pending-entry reclaim pass when
	// positive. Reclaim makes delivery at-least-once; processing is
	// idempotent against the resulting duplicates.
	ReclaimMinIdle time.Duration

	// ReclaimInterval is how often the reclaim pass runs when enabled.
	ReclaimInterval time.Duration
}

// Worker processes tasks delivered through the consumer group. One
// task is in flight at a time per worker identity; throughput comes
// from running multiple identities.
type Worker struct {
	cfg       Config
	queue     queue.Queue
	status    store.StatusStore
	archive   store.TaskArchive
	engine    engine.Engine
	publisher notify.Publisher
	logger    *slog.Logger
}

// New creates a Worker. The archive is optional; all other
// dependencies are required. If log is nil, the default logger is
// used.
func New(
	cfg Config,
	taskQueue queue.Queue,
	status store.StatusStore,
	archive store.TaskArchive,
	answerEngine engine.Engine,
	publisher notify.Publisher,
	log *slog.Logger,
) (*Worker, error) {
	if taskQueue == nil {
		return nil, errors.New("queue cannot be nil")
	}
	if status == nil {
		return nil, errors.New("status store cannot be nil")
	}
	if answerEngine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if publisher == nil {
		return nil, errors.New("publisher cannot be nil")
	}
	if cfg.Consumer == "" {
		return nil, errors.New("consumer name cannot be empty")
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if cfg.ReclaimInterval <= 0 {
		cfg.ReclaimInterval = 30 * time.Second
	}

	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:       cfg,
		queue:     taskQueue,
		status:    status,
		archive:   archive,
		engine:    answerEngine,
		publisher: publisher,
		logger:    log.With(slog.String("component", "worker"), slog.String("consumer", cfg.Consumer)),
	}, nil
}

// Run executes the consumer loop until the context is cancelled.
// Transient queue errors are logged and retried after a fixed
// interval; they never terminate the loop.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.ensureGroup(ctx); err != nil {
		return err
	}

	w.logger.Info("worker running")

	lastReclaim := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopping", slog.String("reason", err.Error()))
			return err
		}

		if w.cfg.ReclaimMinIdle > 0 && time.Since(lastReclaim) >= w.cfg.ReclaimInterval {
			w.reclaimPending(ctx)
			lastReclaim = time.Now()
		}

		delivery, err := w.queue.Next(ctx, w.cfg.Consumer)
		if err != nil {
			if !queue.IsTransient(err) {
				w.logger.Info("worker stopping", slog.String("reason", err.Error()))
				return err
			}

			w.logger.Error("queue poll failed, backing off",
				slog.String("error", err.Error()),
				slog.Duration("retry_interval", w.cfg.RetryInterval))

			if !w.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		if delivery == nil {
			// Bounded wait expired with nothing to do; loop to
			// re-check cancellation.
			continue
		}

		w.process(ctx, delivery)
	}
}

// ensureGroup creates the consumer group, retrying transient errors
// so a worker started before the broker is reachable still comes up.
func (w *Worker) ensureGroup(ctx context.Context) error {
	for {
		err := w.queue.EnsureGroup(ctx)
		if err == nil {
			return nil
		}
		if !queue.IsTransient(err) {
			return err
		}

		w.logger.Error("failed to ensure consumer group, backing off",
			slog.String("error", err.Error()))

		if !w.sleep(ctx) {
			return ctx.Err()
		}
	}
}

// process handles a single delivery end to end. The entry is
// acknowledged exactly once, after the status record is terminal,
// whatever the processing outcome. An entry left unacknowledged here
// (status store unreachable, shutdown mid-compute) stays pending for
// the reclaim pass.
func (w *Worker) process(ctx context.Context, delivery *queue.Delivery) {
	task := delivery.Task
	log := w.logger.With(
		slog.String("task_id", task.ID.String()),
		slog.String("entry_id", delivery.EntryID))

	// Reclaimed entries may already have been processed by the
	// original owner; a terminal record means ack and move on.
	record, err := w.status.Get(ctx, task.ID)
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			log.Error("failed to read status record, leaving entry pending",
				slog.String("error", err.Error()))
			return
		}

		// The entry outlived its status record. Recreate the record so
		// readers get a complete one back, then process as usual.
		if initErr := w.status.Init(ctx, domain.NewStatusRecord(&task)); initErr != nil {
			log.Error("failed to recreate status record, leaving entry pending",
				slog.String("error", initErr.Error()))
			return
		}
	}
	if record != nil && record.Status.IsTerminal() {
		log.Info("task already terminal, acknowledging duplicate delivery",
			slog.String("status", string(record.Status)))
		w.ack(ctx, delivery.EntryID, log)
		return
	}

	// Mark processing before invoking the engine so a concurrent
	// status read never observes queued once work has started.
	if err := w.status.SetProcessing(ctx, task.ID); err != nil {
		log.Error("failed to set status to processing, leaving entry pending",
			slog.String("error", err.Error()))
		return
	}

	log.Info("processing task")

	answer, err := w.engine.Compute(ctx, task.Text)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown interrupted the engine call; leave the entry
			// pending so another identity can pick it up.
			log.Info("engine call interrupted by shutdown")
			return
		}

		w.finish(ctx, delivery, domain.TaskStatusFailed, "", err, log)
		return
	}

	w.finish(ctx, delivery, domain.TaskStatusComplete, answer, nil, log)
}

// finish writes the terminal status, records the archive outcome,
// publishes the result for successes, and acknowledges the entry.
func (w *Worker) finish(
	ctx context.Context,
	delivery *queue.Delivery,
	status domain.TaskStatus,
	answer string,
	processErr error,
	log *slog.Logger,
) {
	task := delivery.Task

	if err := w.status.SetResult(ctx, task.ID, status, answer); err != nil {
		if errors.Is(err, domain.ErrTerminalStatus) {
			// Another identity finished this task between our check
			// and now; its outcome stands.
			log.Info("task already terminal, acknowledging duplicate delivery")
			w.ack(ctx, delivery.EntryID, log)
			return
		}

		log.Error("failed to write terminal status, leaving entry pending",
			slog.String("error", err.Error()))
		return
	}

	errMsg := ""
	if processErr != nil {
		errMsg = processErr.Error()
		log.Error("task failed", slog.String("error", errMsg))
	} else {
		log.Info("task completed")
	}

	// The archive outcome is best-effort: the status record is
	// already authoritative, and an audit write must never leave a
	// queue entry unacknowledged.
	if w.archive != nil {
		if err := w.archive.RecordOutcome(ctx, task.ID, status, errMsg); err != nil {
			log.Warn("failed to record archive outcome", slog.String("error", err.Error()))
		}
	}

	if status == domain.TaskStatusComplete {
		notification := &domain.Notification{
			TaskID: task.ID,
			UserID: task.UserID,
			ChatID: task.ChatID,
			Result: answer,
		}
		if err := w.publisher.Publish(ctx, notification); err != nil {
			// Push delivery is best-effort; clients fall back to
			// polling the status record.
			log.Warn("failed to publish notification", slog.String("error", err.Error()))
		}
	}

	w.ack(ctx, delivery.EntryID, log)
}

// ack acknowledges an entry, logging failures. A failed ack leaves
// the entry pending; the reclaim pass redelivers it and the terminal
// status check keeps the duplicate harmless.
func (w *Worker) ack(ctx context.Context, entryID string, log *slog.Logger) {
	if err := w.queue.Ack(ctx, entryID); err != nil {
		log.Error("failed to ack entry", slog.String("error", err.Error()))
	}
}

// reclaimPending transfers long-pending entries from dead consumers
// to this one and processes them through the normal idempotent path.
func (w *Worker) reclaimPending(ctx context.Context) {
	deliveries, err := w.queue.Reclaim(ctx, w.cfg.Consumer, w.cfg.ReclaimMinIdle)
	if err != nil {
		w.logger.Warn("reclaim pass failed", slog.String("error", err.Error()))
		return
	}

	if len(deliveries) == 0 {
		return
	}

	w.logger.Info("reclaimed pending entries", slog.Int("count", len(deliveries)))

	for _, delivery := range deliveries {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, delivery)
	}
}

// sleep waits one retry interval. Returns false if the context was
// cancelled while waiting.
func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.cfg.RetryInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/chatdesk/internal/observability/metrics"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	deleteTimeoutSeconds = 5
)

// Worker drains a notice queue and sends each notice through an inline
// notifier. A message is deleted only after its email went out.
type Worker struct {
	queue    queueClient
	sender   Notifier
	metrics  *metrics.ChatMetrics
	logger   *logging.Logger
	workers  int
	waitSecs int

	wg sync.WaitGroup
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*Worker)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(w *Worker) {
		if count > 0 {
			w.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll duration per receive call.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(w *Worker) {
		if seconds >= 0 && seconds <= 20 {
			w.waitSecs = seconds
		}
	}
}

func WithWorkerMetrics(m *metrics.ChatMetrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// NewWorker builds a Worker; sender is normally an *InlineNotifier.
func NewWorker(queue queueClient, sender Notifier, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if sender == nil {
		panic("notify: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		queue:    queue,
		sender:   sender,
		logger:   logger,
		workers:  defaultWorkerCount,
		waitSecs: defaultWaitSeconds,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notify worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			w.logger.Debug("notify worker stopping", "worker_id", workerID)
			return
		}

		messages, err := w.queue.Receive(ctx, defaultBatchSize, w.waitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive notify jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode notify job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	err := w.sender.NotifyHandoff(ctx, payload.Notice)
	w.metrics.ObserveNotification("email_async", err == nil)
	if err == nil || errors.Is(err, ErrNoRecipient) {
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	retried, releaseErr := w.queue.Release(ctx, msg)
	switch {
	case releaseErr != nil:
		w.logger.Error("failed to release notify job", "error", releaseErr, "job_id", payload.ID)
	case !retried:
		w.logger.Error("dropping notify job after repeated failures", "error", err, "job_id", payload.ID, "attempts", msg.Attempts)
	default:
		w.logger.Warn("notify job failed; will retry", "error", err, "job_id", payload.ID, "attempts", msg.Attempts)
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete notify job", "error", err)
	}
}

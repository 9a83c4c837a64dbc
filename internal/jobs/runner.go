package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// Handler processes one decoded job envelope. A returned error marks the
// job failed; the message is removed from the queue either way so a broken
// payload cannot wedge the consumer.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, env Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error { return f(ctx, env) }

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

type runnerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// RunnerOption customizes runner behavior.
type RunnerOption func(*runnerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) RunnerOption {
	return func(cfg *runnerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) RunnerOption {
	return func(cfg *runnerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) RunnerOption {
	return func(cfg *runnerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// Runner consumes one queue and feeds decoded envelopes to its handler.
// The worker binary runs one Runner per job queue.
type Runner struct {
	name    string
	queue   Queue
	handler Handler
	logger  *logging.Logger

	cfg runnerConfig
	wg  sync.WaitGroup
}

// NewRunner constructs a queue consumer around the provided handler.
func NewRunner(name string, queue Queue, handler Handler, logger *logging.Logger, opts ...RunnerOption) *Runner {
	if name == "" {
		panic("jobs: runner name cannot be empty")
	}
	if queue == nil {
		panic("jobs: queue cannot be nil")
	}
	if handler == nil {
		panic("jobs: handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := runnerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Runner{
		name:    name,
		queue:   queue,
		handler: handler,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start launches consumer goroutines until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.cfg.workers; i++ {
		r.wg.Add(1)
		go r.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines exit.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, workerID int) {
	defer r.wg.Done()
	r.logger.Debug("job runner started", "queue", r.name, "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("job runner stopping", "queue", r.name, "worker_id", workerID)
			return
		default:
		}

		messages, err := r.queue.Receive(ctx, r.cfg.receiveBatchSize, r.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error("failed to receive jobs", "error", err, "queue", r.name, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			r.handleMessage(ctx, msg)
		}
	}
}

func (r *Runner) handleMessage(ctx context.Context, msg QueueMessage) {
	var env Envelope
	if err := json.Unmarshal([]byte(msg.Body), &env); err != nil {
		r.logger.Error("failed to decode job envelope", "error", err, "queue", r.name)
		r.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	r.logger.Info("processing job", "queue", r.name, "job_id", env.ID, "msg_id", msg.ID)

	if err := r.handler.Handle(ctx, env); err != nil {
		r.logger.Error("job failed", "error", err, "queue", r.name, "job_id", env.ID)
	} else {
		r.logger.Debug("job processed", "queue", r.name, "job_id", env.ID)
	}

	r.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (r *Runner) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := r.queue.Delete(deleteCtx, receiptHandle); err != nil {
		r.logger.Error("failed to delete job message", "error", err, "queue", r.name)
	}
}

// withRetry runs fn up to attempts times, sleeping between failures.
// It stops early when ctx is cancelled.
func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

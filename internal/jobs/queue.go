// Package jobs moves background work through named queues: CRM sync,
// test-drive booking, and staff notifications. The API enqueues envelopes
// and the worker binary consumes them; neither side blocks a customer turn
// on the other.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// Queue is the transport contract shared by SQS and the in-memory queue.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueMessage is one raw message pulled off a queue.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Envelope wraps every job payload on the wire so consumers can trace and
// route without decoding the payload first.
type Envelope struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// QueueDispatcher routes payloads to queues by name. It satisfies the
// agent pipeline's Dispatcher contract.
type QueueDispatcher struct {
	queues map[string]Queue
	logger *logging.Logger
}

// NewQueueDispatcher builds a dispatcher over the provided queue map,
// keyed by queue name.
func NewQueueDispatcher(queues map[string]Queue, logger *logging.Logger) *QueueDispatcher {
	if len(queues) == 0 {
		panic("jobs: at least one queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &QueueDispatcher{queues: queues, logger: logger}
}

// Enqueue marshals payload into an Envelope and sends it to the named queue.
func (d *QueueDispatcher) Enqueue(ctx context.Context, queue string, payload any) error {
	q, ok := d.queues[queue]
	if !ok {
		return fmt.Errorf("jobs: unknown queue %q", queue)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("jobs: failed to encode payload for %q: %w", queue, err)
	}

	env := Envelope{
		ID:         uuid.NewString(),
		Queue:      queue,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("jobs: failed to encode envelope for %q: %w", queue, err)
	}

	if err := q.Send(ctx, string(body)); err != nil {
		return err
	}
	d.logger.Debug("job enqueued", "queue", queue, "job_id", env.ID)
	return nil
}

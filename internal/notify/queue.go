package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"github.com/wolfman30/chatdesk/pkg/logging"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
	// Release hands a failed message back for redelivery. It reports false
	// when the message has been dropped for good.
	Release(ctx context.Context, msg queueMessage) (bool, error)
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
	Attempts      int
}

type queuePayload struct {
	ID     string        `json:"id"`
	Notice HandoffNotice `json:"notice"`
}

// ErrQueueFull is returned when an in-memory queue has no room for a notice.
var ErrQueueFull = errors.New("notify: queue full")

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
	maxRetryDelay      = 30 * time.Second
	defaultSendWait    = 100 * time.Millisecond
)

// MemoryQueue is a queueClient backed by an in-memory buffered channel.
// Neither callers nor workers ever block on a full channel: Send gives up
// after a short wait and failed messages come back from a timer.
type MemoryQueue struct {
	ch          chan queueMessage
	maxAttempts int
	retryDelay  time.Duration
	sendWait    time.Duration
	logger      *logging.Logger
}

// MemoryQueueOption customizes a MemoryQueue.
type MemoryQueueOption func(*MemoryQueue)

// WithRetryDelay sets the delay before the first redelivery. It doubles on
// every further attempt, up to 30s.
func WithRetryDelay(d time.Duration) MemoryQueueOption {
	return func(q *MemoryQueue) {
		if d > 0 {
			q.retryDelay = d
		}
	}
}

// WithSendWait bounds how long Send waits for room before ErrQueueFull.
func WithSendWait(d time.Duration) MemoryQueueOption {
	return func(q *MemoryQueue) {
		if d >= 0 {
			q.sendWait = d
		}
	}
}

func WithQueueLogger(logger *logging.Logger) MemoryQueueOption {
	return func(q *MemoryQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewMemoryQueue creates a MemoryQueue with the provided buffer capacity.
// Failed messages are redelivered until they have been tried maxAttempts
// times.
func NewMemoryQueue(buffer, maxAttempts int, opts ...MemoryQueueOption) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	q := &MemoryQueue{
		ch:          make(chan queueMessage, buffer),
		maxAttempts: maxAttempts,
		retryDelay:  defaultRetryDelay,
		sendWait:    defaultSendWait,
		logger:      logging.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Send enqueues a payload. It returns ErrQueueFull when no slot frees up
// within the send wait, so a request never stalls behind a backlog.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	msg := queueMessage{
		ID:            uuid.NewString(),
		Body:          body,
		ReceiptHandle: uuid.NewString(),
	}
	select {
	case q.ch <- msg:
		return nil
	default:
	}

	timer := time.NewTimer(q.sendWait)
	defer timer.Stop()
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrQueueFull
	}
}

// Receive blocks until a message is available, ctx is done, or waitSeconds elapses.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	var timeout <-chan time.Time
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, nil
	case msg := <-q.ch:
		msg.Attempts++
		messages := []queueMessage{msg}
		for len(messages) < maxMessages {
			select {
			case next := <-q.ch:
				next.Attempts++
				messages = append(messages, next)
			default:
				return messages, nil
			}
		}
		return messages, nil
	}
}

// Delete is a no-op; a received message is already off the channel.
func (q *MemoryQueue) Delete(_ context.Context, _ string) error {
	return nil
}

// Release schedules a failed message for redelivery after a backoff and
// returns at once.
func (q *MemoryQueue) Release(_ context.Context, msg queueMessage) (bool, error) {
	if msg.Attempts >= q.maxAttempts {
		return false, nil
	}
	q.retryLater(msg, q.backoff(msg.Attempts))
	return true, nil
}

func (q *MemoryQueue) backoff(attempts int) time.Duration {
	d := q.retryDelay
	for i := 1; i < attempts && d < maxRetryDelay; i++ {
		d *= 2
	}
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

// retryLater puts msg back on the channel after delay. If the channel is
// full at that point the retry is pushed back again instead of blocking.
func (q *MemoryQueue) retryLater(msg queueMessage, delay time.Duration) {
	time.AfterFunc(delay, func() {
		select {
		case q.ch <- msg:
		default:
			q.logger.Warn("notify queue full; deferring retry", "msg_id", msg.ID, "attempts", msg.Attempts)
			q.retryLater(msg, delay)
		}
	})
}

// Len reports the number of messages waiting.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue implements queueClient backed by AWS/LocalStack SQS. Redelivery
// after a failure relies on the queue's visibility timeout and redrive policy.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
}

// NewSQSQueue creates a queue wrapper around the provided SQS client.
func NewSQSQueue(client sqsAPI, queueURL string) *SQSQueue {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL}
}

func (q *SQSQueue) Send(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("notify: failed to receive SQS messages: %w", err)
	}

	messages := make([]queueMessage, 0, len(output.Messages))
	for _, msg := range output.Messages {
		messages = append(messages, queueMessage{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("notify: failed to delete SQS message: %w", err)
	}
	return nil
}

// Release leaves the message in flight so SQS redelivers it.
func (q *SQSQueue) Release(_ context.Context, _ queueMessage) (bool, error) {
	return true, nil
}

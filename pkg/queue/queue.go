package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueuePayments is the Redis list key for payment gateway notification jobs.
	QueuePayments = "worker:payments"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// dequeueTimeout bounds BLPOP so the worker notices cancellation.
	dequeueTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypePaymentNotification JobType = "payment_notification"
)

// PaymentNotificationPayload is a verified gateway notification awaiting application.
type PaymentNotificationPayload struct {
	OrderID           string    `json:"order_id"`
	TransactionStatus string    `json:"transaction_status"`
	FraudStatus       string    `json:"fraud_status,omitempty"`
	StatusCode        string    `json:"status_code"`
	GrossAmount       string    `json:"gross_amount"`
	PaymentType       string    `json:"payment_type,omitempty"`
	GatewayTxID       string    `json:"gateway_transaction_id,omitempty"`
	ReceivedAt        time.Time `json:"received_at"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Queue     string          `json:"queue"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.Cmdable, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// NewJob wraps payload in an envelope addressed to queueName.
func NewJob(queueName string, typ JobType, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Queue:     queueName,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodeJob parses a raw list entry.
func DecodeJob(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	if job.ID == "" || job.Type == "" {
		return nil, errors.New("job missing id or type")
	}
	return &job, nil
}

// EnqueuePaymentNotification enqueues a payment notification job.
func (q *Queue) EnqueuePaymentNotification(ctx context.Context, payload PaymentNotificationPayload) error {
	job, err := NewJob(QueuePayments, JobTypePaymentNotification, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueuePayments, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued payment notification job",
		zap.String("job_id", job.ID),
		zap.String("order_id", payload.OrderID),
		zap.String("transaction_status", payload.TransactionStatus))
	return nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// Dequeue waits for a job on the given queues. It returns (nil, nil) when the
// wait times out or the entry is malformed, so callers simply loop.
func (q *Queue) Dequeue(ctx context.Context, queues ...string) (*Job, error) {
	if len(queues) == 0 {
		queues = []string{QueuePayments}
	}
	result, err := q.client.BLPop(ctx, dequeueTimeout, queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	job, err := DecodeJob(result[1])
	if err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		_ = q.client.RPush(ctx, QueueDLQ, result[1]).Err()
		return nil, nil
	}
	if job.Queue == "" {
		job.Queue = result[0]
	}
	return job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	target := job.Queue
	if target == "" {
		target = QueuePayments
	}
	if err := q.push(ctx, target, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// DeadLetters returns up to n jobs parked in the DLQ without removing them.
func (q *Queue) DeadLetters(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 {
		n = 50
	}
	return q.client.LRange(ctx, QueueDLQ, 0, n-1).Result()
}

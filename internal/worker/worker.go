// Package worker runs the background jobs: applying payment gateway
// notifications and expiring abandoned checkouts.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/transactions"
	"github.com/learnhub/backend/pkg/metrics"
	"github.com/learnhub/backend/pkg/queue"
)

// Jobs is the queue the processor consumes.
type Jobs interface {
	Dequeue(ctx context.Context, queues ...string) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// NotificationApplier applies a verified gateway notification.
type NotificationApplier interface {
	ApplyNotification(ctx context.Context, n transactions.Notification) error
}

// PaymentProcessor consumes payment notification jobs.
type PaymentProcessor struct {
	jobs    Jobs
	tx      NotificationApplier
	metrics *metrics.Metrics
	logger  *zap.Logger
	backoff time.Duration
}

// NewPaymentProcessor creates a payment notification processor.
func NewPaymentProcessor(jobs Jobs, tx NotificationApplier, m *metrics.Metrics, logger *zap.Logger) *PaymentProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentProcessor{jobs: jobs, tx: tx, metrics: m, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one job. Errors mean the job should be retried.
func (p *PaymentProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypePaymentNotification {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.PaymentNotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	err := p.tx.ApplyNotification(ctx, transactions.Notification{
		OrderID:           payload.OrderID,
		TransactionStatus: payload.TransactionStatus,
		FraudStatus:       payload.FraudStatus,
		GrossAmount:       payload.GrossAmount,
	})
	if err != nil {
		return fmt.Errorf("apply notification %s: %w", payload.OrderID, err)
	}
	p.logger.Info("payment notification applied",
		zap.String("job_id", job.ID),
		zap.String("order_id", payload.OrderID),
		zap.String("transaction_status", payload.TransactionStatus))
	return nil
}

// Run dequeues and processes jobs until ctx is cancelled. Failed jobs are
// handed back to the queue, which parks them in the DLQ after MaxRetries.
func (p *PaymentProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("payment worker stopping")
			return
		}
		job, err := p.jobs.Dequeue(ctx, queue.QueuePayments)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("dequeue error", zap.Error(err))
				p.sleep(ctx)
			}
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt))
		if err := p.Process(ctx, job); err != nil {
			p.metrics.JobProcessed(string(job.Type), "error")
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
			continue
		}
		p.metrics.JobProcessed(string(job.Type), "ok")
	}
}

func (p *PaymentProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/backend/internal/transactions"
	"github.com/learnhub/backend/pkg/queue"
)

type fakeJobs struct {
	pending []*queue.Job
	retried []*queue.Job
	cancel  context.CancelFunc
}

func (f *fakeJobs) Dequeue(context.Context, ...string) (*queue.Job, error) {
	if len(f.pending) == 0 {
		f.cancel()
		return nil, nil
	}
	job := f.pending[0]
	f.pending = f.pending[1:]
	return job, nil
}

func (f *fakeJobs) Retry(_ context.Context, job *queue.Job) error {
	job.Attempt++
	f.retried = append(f.retried, job)
	return nil
}

type fakeApplier struct {
	seen []transactions.Notification
	err  error
}

func (f *fakeApplier) ApplyNotification(_ context.Context, n transactions.Notification) error {
	f.seen = append(f.seen, n)
	return f.err
}

func paymentJob(t *testing.T, orderID string) *queue.Job {
	job, err := queue.NewJob(queue.QueuePayments, queue.JobTypePaymentNotification, queue.PaymentNotificationPayload{
		OrderID: orderID, TransactionStatus: "settlement", StatusCode: "200", GrossAmount: "135000.00",
	})
	require.NoError(t, err)
	return job
}

func TestProcess(t *testing.T) {
	applier := &fakeApplier{}
	p := NewPaymentProcessor(nil, applier, nil, nil)

	require.NoError(t, p.Process(context.Background(), paymentJob(t, "order-1")))
	require.Len(t, applier.seen, 1)
	assert.Equal(t, transactions.Notification{
		OrderID: "order-1", TransactionStatus: "settlement", GrossAmount: "135000.00",
	}, applier.seen[0])

	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "recording_upload"})
	assert.ErrorContains(t, err, "unknown job type")

	err = p.Process(context.Background(), &queue.Job{ID: "y", Type: queue.JobTypePaymentNotification, Payload: []byte(`{`)})
	assert.ErrorContains(t, err, "unmarshal payload")
}

func TestRunRetriesFailedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobs := &fakeJobs{pending: []*queue.Job{paymentJob(t, "a"), paymentJob(t, "b")}, cancel: cancel}
	applier := &fakeApplier{err: errors.New("db unavailable")}
	p := NewPaymentProcessor(jobs, applier, nil, nil)
	p.backoff = time.Millisecond

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Len(t, applier.seen, 2)
	require.Len(t, jobs.retried, 2)
	assert.Equal(t, 1, jobs.retried[0].Attempt)
}

type fakeExpirer struct {
	mu    sync.Mutex
	calls int
	ttl   time.Duration
}

func (f *fakeExpirer) ExpireStale(_ context.Context, ttl time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ttl = ttl
	return 3, nil
}

func TestExpirySweeper(t *testing.T) {
	exp := &fakeExpirer{}
	s := NewExpirySweeper(exp, 24*time.Hour, nil)
	s.Sweep(context.Background())
	assert.Equal(t, 1, exp.calls)
	assert.Equal(t, 24*time.Hour, exp.ttl)

	c := cron.New()
	_, err := s.Schedule(context.Background(), c, "@every 10m")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = s.Schedule(context.Background(), c, "not a spec")
	assert.Error(t, err)
}

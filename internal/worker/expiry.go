package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Expirer expires stale checkouts.
type Expirer interface {
	ExpireStale(ctx context.Context, ttl time.Duration) (int, error)
}

// ExpirySweeper runs Expirer on a cron schedule.
type ExpirySweeper struct {
	tx      Expirer
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewExpirySweeper creates a sweeper that expires checkouts older than ttl.
func NewExpirySweeper(tx Expirer, ttl time.Duration, logger *zap.Logger) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirySweeper{tx: tx, ttl: ttl, timeout: time.Minute, logger: logger}
}

// Sweep runs one expiry pass.
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.tx.ExpireStale(ctx, s.ttl)
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Int("expired", n), zap.Error(err))
		return
	}
	s.logger.Debug("expiry sweep done", zap.Int("expired", n))
}

// Schedule registers the sweep on c under spec (standard cron or @every).
// Overlapping runs are skipped.
func (s *ExpirySweeper) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() { s.Sweep(ctx) }))
	id, err := c.AddJob(spec, job)
	if err != nil {
		return 0, fmt.Errorf("schedule expiry %q: %w", spec, err)
	}
	return id, nil
}

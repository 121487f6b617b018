// Package sweeper periodically strips cart lines that point at products the
// catalog no longer has. It backs up the product.deleted consumer for events
// that were lost or arrived before the cart existed.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner removes orphaned lines and reports how many carts changed.
type Pruner interface {
	PruneOrphans(ctx context.Context) (int, error)
}

// Sweeper runs a Pruner on a cron schedule.
type Sweeper struct {
	cron    *cron.Cron
	pruner  Pruner
	timeout time.Duration
	logger  *slog.Logger
}

// New parses schedule and returns a stopped sweeper. Runs never overlap: a
// run still in progress when the next one fires makes that one skip.
func New(schedule string, pruner Pruner, logger *slog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		pruner:  pruner,
		timeout: 5 * time.Minute,
		logger:  logger,
	}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("schedule sweeper %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.logger.Info("cart sweeper started")
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep or ctx, whichever
// ends first.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("cart sweeper did not stop in time")
	}
}

// Sweep performs one pruning pass.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.pruner.PruneOrphans(ctx)
	if err != nil {
		s.logger.Error("cart sweep failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return
	}
	if n > 0 {
		s.logger.Info("cart sweep pruned carts",
			slog.Int("carts", n),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

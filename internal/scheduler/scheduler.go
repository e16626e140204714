// Package scheduler runs recurring batch passes on a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/orchestrator"
)

// DefaultSchedule runs one batch every day at 18:30 local time, after the
// exchange publishes end-of-day data.
const DefaultSchedule = "30 18 * * *"

// Scheduler triggers batch runs on a cron schedule. Runs never overlap:
// if a batch is still going when the next tick fires, the tick is skipped.
type Scheduler struct {
	cron   *cron.Cron
	orch   *orchestrator.Orchestrator
	logger arbor.ILogger

	mu      sync.Mutex
	running bool
}

func New(orch *orchestrator.Orchestrator) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		orch:   orch,
		logger: common.GetLogger(),
	}
}

// Start registers the batch job and starts the cron loop. The context
// bounds every scheduled run; cancelling it interrupts an in-flight batch.
func (s *Scheduler) Start(ctx context.Context, expr string) error {
	if expr == "" {
		expr = DefaultSchedule
	}

	id, err := s.cron.AddFunc(expr, func() { s.runBatch(ctx) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", expr).
		Str("next_run", s.cron.Entry(id).Next.Format(time.RFC3339)).
		Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop. An in-flight batch keeps running until it
// finishes or its context is cancelled; the returned context from cron
// is waited on so shutdown is clean.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) runBatch(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous batch still running, skipping this tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	summary, err := s.orch.RunBatch(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled batch failed")
		return
	}
	s.logger.Info().
		Str("run_id", summary.RunID).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("Scheduled batch finished")
}

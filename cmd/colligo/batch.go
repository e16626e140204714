package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/colligo/internal/orchestrator"
	"github.com/ternarybob/colligo/internal/scheduler"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run one idempotent batch pass over the universe",
	Long: `Buckets every stock by its saved report and ledger state, then
processes only what needs work: unprocessed and retry-needed stocks
first, a bounded refresh sample when nothing else is pending. Always
exits zero; per-stock failures are recorded in the ledger.

With --schedule the pass repeats on a cron expression instead of
running once.`,
	RunE: runBatch,
}

var batchSchedule string

func init() {
	batchCmd.Flags().StringVar(&batchSchedule, "schedule", "", "Cron expression for recurring runs (e.g. \"30 18 * * *\")")
}

func runBatch(cmd *cobra.Command, args []string) error {
	pipe, ledgerStore := buildPipeline()
	defer pipe.Close()

	orch := orchestrator.New(config, pipe, ledgerStore)
	ctx, cancel := watchSignals(orch)
	defer cancel()

	if batchSchedule != "" {
		return runScheduled(ctx, orch)
	}

	if _, err := orch.RunBatch(ctx); err != nil {
		logger.Error().Err(err).Msg("Batch could not start")
	}
	return nil
}

// runScheduled blocks until interrupted, running a batch on every tick.
// The first interrupt ends the wait here while the shared handler drains
// any in-flight batch.
func runScheduled(ctx context.Context, orch *orchestrator.Orchestrator) error {
	sched := scheduler.New(orch)
	if err := sched.Start(ctx, batchSchedule); err != nil {
		return err
	}

	waitCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-waitCtx.Done()

	sched.Stop()
	return nil
}

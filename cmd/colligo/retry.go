package main

import (
	"github.com/spf13/cobra"

	"github.com/ternarybob/colligo/internal/orchestrator"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-run only the stocks the ledger marks as failed",
	Long: `Reads the failed entries from the results ledger and re-processes
just those stocks, using the rendered fetch strategy from the first
attempt and longer delays between stocks. Always exits zero.`,
	RunE: runRetry,
}

func runRetry(cmd *cobra.Command, args []string) error {
	pipe, ledgerStore := buildPipeline()
	defer pipe.Close()

	orch := orchestrator.New(config, pipe, ledgerStore)
	ctx, cancel := watchSignals(orch)
	defer cancel()

	if _, err := orch.RetryFailed(ctx); err != nil {
		logger.Error().Err(err).Msg("Retry session could not start")
	}
	return nil
}

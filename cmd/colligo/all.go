package main

import (
	"github.com/spf13/cobra"

	"github.com/ternarybob/colligo/internal/orchestrator"
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Process every stock in the universe unconditionally",
	Long: `Ignores the saved-report buckets and re-fetches the whole universe.
Always exits zero; per-stock failures are recorded in the ledger.`,
	RunE: runAll,
}

func runAll(cmd *cobra.Command, args []string) error {
	pipe, ledgerStore := buildPipeline()
	defer pipe.Close()

	orch := orchestrator.New(config, pipe, ledgerStore)
	ctx, cancel := watchSignals(orch)
	defer cancel()

	if _, err := orch.RunAll(ctx); err != nil {
		logger.Error().Err(err).Msg("Full run could not start")
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/orchestrator"
	"github.com/ternarybob/colligo/internal/universe"
)

var stockCmd = &cobra.Command{
	Use:   "stock <code>",
	Short: "Process a single stock",
	Long: `Fetches one stock's disclosure page, extracts its tables and writes
the markdown report. Exits non-zero when all retries fail.`,
	Args: cobra.ExactArgs(1),
	RunE: runStock,
}

func runStock(cmd *cobra.Command, args []string) error {
	code := args[0]

	stock, err := resolveStock(code)
	if err != nil {
		return err
	}

	pipe, ledgerStore := buildPipeline()
	defer pipe.Close()

	orch := orchestrator.New(config, pipe, ledgerStore)
	ctx, cancel := watchSignals(orch)
	defer cancel()

	if !orch.ProcessOne(ctx, stock) {
		return fmt.Errorf("processing failed for %s after %d attempts", code, config.Retry.MaxRetries)
	}
	return nil
}

// resolveStock looks the code up in the universe. The universe is the
// source of the display name, and the name is part of the report filename
// that keys the ledger, so a missing universe or an unknown code is fatal
// here: guessing a name would fork the ledger key.
func resolveStock(code string) (models.Stock, error) {
	uni, err := universe.Load(config.UniversePath())
	if err != nil {
		return models.Stock{}, err
	}
	stock, ok := uni.Find(code)
	if !ok {
		return models.Stock{}, fmt.Errorf("stock code %s not found in %s", code, config.UniversePath())
	}
	return stock, nil
}

package main

import (
	"github.com/spf13/cobra"
)

var reextractCmd = &cobra.Command{
	Use:   "reextract <code>",
	Short: "Rebuild a report from the stored page snapshot",
	Long: `Re-runs extraction against the raw page captured on the last fetch,
without any network traffic. Useful after the table heuristics change.
Requires the snapshot store to be enabled.`,
	Args: cobra.ExactArgs(1),
	RunE: runReextract,
}

func runReextract(cmd *cobra.Command, args []string) error {
	stock, err := resolveStock(args[0])
	if err != nil {
		return err
	}

	pipe, _ := buildPipeline()
	defer pipe.Close()

	result, err := pipe.Reextract(stock)
	if err != nil {
		return err
	}

	logger.Info().
		Str("code", stock.Code).
		Str("report", result.ReportPath).
		Bool("complete", result.Success).
		Msg("Report rebuilt")
	return nil
}

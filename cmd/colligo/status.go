package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/colligo/internal/ledger"
	"github.com/ternarybob/colligo/internal/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the ledger against the universe and output directory",
	RunE:  runStatus,
}

var (
	statusFormat   string
	statusDetailed bool
)

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "table", "Output format: table or json")
	statusCmd.Flags().BoolVar(&statusDetailed, "detailed", false, "Include recency counters and the failed stock list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ledgerStore := ledger.NewStore(config.LedgerPath(), logger)

	status, err := orchestrator.BuildStatus(config, ledgerStore, time.Now())
	if err != nil {
		return err
	}

	switch statusFormat {
	case "json":
		out, err := status.RenderJSON()
		if err != nil {
			return err
		}
		fmt.Println(out)
	case "table":
		fmt.Print(status.RenderTable(statusDetailed))
	default:
		return fmt.Errorf("unknown format %q (expected table or json)", statusFormat)
	}
	return nil
}

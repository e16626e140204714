package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/ledger"
	"github.com/ternarybob/colligo/internal/orchestrator"
	"github.com/ternarybob/colligo/internal/pipeline"
	"github.com/ternarybob/colligo/internal/snapshot"
)

var (
	configFile string

	// Global state shared by all subcommands, populated in initRuntime.
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "colligo",
	Short: "Fetches stock disclosure pages and extracts markdown reports",
	Long: `Colligo walks a universe of Taiwan stock identifiers, fetches each
disclosure page, extracts the price and ownership tables and writes one
markdown report per stock. A CSV ledger tracks outcomes so re-runs only
touch stocks that are missing, stale or previously failed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initRuntime()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (defaults to colligo.toml when present)")

	rootCmd.AddCommand(stockCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(allCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reextractCmd)
	rootCmd.AddCommand(versionCmd)
}

// initRuntime runs the startup sequence: load config, initialize the
// logger, print the banner.
func initRuntime() error {
	var err error
	config, err = common.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())
	return nil
}

// buildPipeline assembles the processing stack. The snapshot store is
// optional and a failure to open it only disables raw-page capture.
func buildPipeline() (*pipeline.Pipeline, *ledger.Store) {
	ledgerStore := ledger.NewStore(config.LedgerPath(), logger)

	var snapshots *snapshot.Store
	if config.Snapshot.Enabled {
		store, err := snapshot.Open(config.SnapshotPath())
		if err != nil {
			logger.Warn().Err(err).Msg("Snapshot store unavailable, raw pages will not be kept")
		} else {
			snapshots = store
		}
	}

	return pipeline.New(config, ledgerStore, snapshots), ledgerStore
}

// watchSignals installs two-stage interrupt handling: the first SIGINT
// or SIGTERM requests a graceful stop (current stock drains), a second
// one cancels the context and cuts the in-flight attempt short.
func watchSignals(orch *orchestrator.Orchestrator) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Warn().Msg("Interrupt received, finishing current stock before stopping")
		orch.Stop()
		<-sigCh
		logger.Warn().Msg("Second interrupt, aborting")
		cancel()
	}()

	return ctx, cancel
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

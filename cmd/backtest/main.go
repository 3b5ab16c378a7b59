// Command backtest runs a scenario file through the discrete-event
// backtesting core and reports the resulting per-asset state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rishav/hftbacktest/internal/backtest"
	"github.com/rishav/hftbacktest/internal/config"
	"github.com/rishav/hftbacktest/internal/logging"
	"github.com/rishav/hftbacktest/internal/models"
	"github.com/rishav/hftbacktest/internal/reader"
	"github.com/rishav/hftbacktest/internal/recorder"

	"github.com/rs/zerolog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "backtest",
		Short: "Run HFT strategies against a discrete-event backtesting core",
	}
	root.AddCommand(newValidateCmd())
	root.AddCommand(newRunCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [scenario.yaml]",
		Short: "Load and validate a scenario file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scenario valid: %d asset(s)\n", len(cfg.Assets))
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var elapseNs int64
	cmd := &cobra.Command{
		Use:   "run [scenario.yaml]",
		Short: "Run a scenario to completion (or until elapse-ns) and report final state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logging.New(cfg.LogLevel)
			bt, err := buildBacktest(cfg, log)
			if err != nil {
				return err
			}
			defer bt.Close()

			deadline := elapseNs
			if deadline <= 0 {
				deadline = backtest.UntilEndOfData
			}
			if _, err := bt.Elapse(deadline); err != nil {
				return err
			}

			for i, a := range cfg.Assets {
				values := bt.StateValues(i)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: position=%.8f balance=%.8f fee=%.8f trades=%d\n",
					a.Name, bt.Position(i), values.Balance, values.Fee, values.NumTrades)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&elapseNs, "elapse-ns", 0, "stop after this many simulated nanoseconds (default: run to end of data)")
	return cmd
}

func buildBacktest(cfg *config.ScenarioConfig, log zerolog.Logger) (*backtest.Backtest, error) {
	assets := make([]*backtest.Asset, len(cfg.Assets))
	for i, a := range cfg.Assets {
		rec := recorder.NewInMemory()
		b := backtest.NewAssetBuilder().
			DataSources(reader.FileSource(a.DataPath)).
			Depth(a.TickSize, a.LotSize).
			Latency(a.LatencyModel()).
			Asset(a.AssetTypeModel()).
			Queue(models.RiskAverseQueueModel{}).
			Fees(a.MakerFeeFloat(), a.TakerFeeFloat()).
			Exchange(a.ExchangeKindValue()).
			Recorder(rec).
			Logger(log)
		if a.TradeRingLength > 0 {
			b = b.TradeRingLength(a.TradeRingLength)
		}
		asset, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("asset %d (%s): %w", i, a.Name, err)
		}
		assets[i] = asset
	}
	return backtest.NewBacktest(assets, log), nil
}

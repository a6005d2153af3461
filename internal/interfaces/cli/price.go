package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantfolio/mbsengine/internal/application/pricing"
	"github.com/quantfolio/mbsengine/internal/domain/loan"
	"github.com/quantfolio/mbsengine/internal/infrastructure/monitoring/prometheus"
)

// priceOptions holds the price command's flag overrides.  Zero values defer
// to the loaded configuration.
type priceOptions struct {
	NumPaths  int
	Seed      uint64
	Workers   int
	KeepPaths bool
}

// NewPriceCmd creates the price subcommand.
func NewPriceCmd() *cobra.Command {
	opts := &priceOptions{}

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Run a Monte Carlo valuation of the configured pool",
		Long:  "price simulates short-rate paths, runs the prepayment-aware cash-flow\nengine over each, and reports the discounted market value with its Monte\nCarlo standard error and the pool's weighted-average life.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrice(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.NumPaths, "paths", 0, "number of Monte Carlo paths (overrides config)")
	f.Uint64Var(&opts.Seed, "seed", 0, "simulation seed (overrides config)")
	f.IntVar(&opts.Workers, "workers", 0, "concurrent path workers (overrides config)")
	f.BoolVar(&opts.KeepPaths, "keep-paths", false, "retain per-path results in memory")

	return cmd
}

func runPrice(cmd *cobra.Command, opts *priceOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config

	req := pricing.Request{
		Pool:         cfg.Pool,
		RateParams:   cfg.Rates,
		PrepayParams: cfg.Prepayment,
		Dt:           cfg.MonteCarlo.Dt,
		HorizonYears: cfg.MonteCarlo.HorizonYears,
		NumPaths:     cfg.MonteCarlo.NumPaths,
		Seed:         cfg.MonteCarlo.Seed,
		Workers:      cfg.MonteCarlo.Workers,
		KeepPaths:    cfg.MonteCarlo.KeepPaths,
	}
	if opts.NumPaths > 0 {
		req.NumPaths = opts.NumPaths
	}
	if cmd.Flags().Changed("seed") {
		req.Seed = opts.Seed
	}
	if opts.Workers > 0 {
		req.Workers = opts.Workers
	}
	if opts.KeepPaths {
		req.KeepPaths = true
	}

	collector, err := prometheus.NewMetricsCollector(cfg.Metrics, cliCtx.Logger)
	if err != nil {
		return err
	}

	svc := pricing.NewService(loan.NewAnnuityScheduler(), cliCtx.Logger, prometheus.NewEngineMetrics(collector))
	res, err := svc.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	return printResult(cmd, cliCtx.Output, res, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Run:             %s\n", res.RunID)
		fmt.Fprintf(&b, "Model:           %s\n", cfg.Rates.Kind)
		fmt.Fprintf(&b, "Market value:    %.2f\n", res.Valuation.MarketValue)
		fmt.Fprintf(&b, "Standard error:  %.2f\n", res.Valuation.StandardError)
		fmt.Fprintf(&b, "WAL:             %.2f years\n", res.Valuation.WAL)
		fmt.Fprintf(&b, "Paths used:      %d", res.Valuation.PathsUsed)
		if len(res.Discarded) > 0 {
			fmt.Fprintf(&b, "\nDiscarded:       %d", len(res.Discarded))
		}
		fmt.Fprintf(&b, "\nElapsed:         %s", res.Elapsed)
		return b.String()
	})
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantfolio/mbsengine/internal/domain/cashflow"
	"github.com/quantfolio/mbsengine/internal/domain/loan"
	"github.com/quantfolio/mbsengine/internal/domain/prepay"
	"github.com/quantfolio/mbsengine/internal/domain/rates"
	"github.com/quantfolio/mbsengine/internal/domain/valuation"
)

// walOptions holds the wal command's flags.
type walOptions struct {
	CPR float64
}

// walReport is the wal command's output payload.
type walReport struct {
	CPR            float64 `json:"cpr"`
	WALYears       float64 `json:"wal_years"`
	TotalPrincipal float64 `json:"total_principal"`
	Periods        int     `json:"periods"`
}

// NewWALCmd creates the wal subcommand.
func NewWALCmd() *cobra.Command {
	opts := &walOptions{}

	cmd := &cobra.Command{
		Use:   "wal",
		Short: "Compute the deterministic weighted-average life of the configured pool",
		Long:  "wal amortises the configured pool at a single constant prepayment rate,\nwith no rate simulation, and reports the principal-weighted average life.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWAL(cmd, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.CPR, "cpr", 0, "constant annual prepayment rate in [0,1]")

	return cmd
}

func runWAL(cmd *cobra.Command, opts *walOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	pool := cliCtx.Config.Pool

	if opts.CPR < 0 || opts.CPR > 1 {
		return fmt.Errorf("cpr must be in [0,1], got %g", opts.CPR)
	}

	// A flat path at the pool's own note rate; the constant model ignores it.
	flat := make(rates.Path, pool.TermMonths+1)
	for i := range flat {
		flat[i] = pool.NoteRate
	}

	engine := cashflow.NewEngine(loan.NewAnnuityScheduler())
	flows, err := engine.RunPath(cmd.Context(), pool, prepay.NewConstantModel(opts.CPR), flat)
	if err != nil {
		return err
	}

	var totalPrincipal float64
	for _, f := range flows {
		totalPrincipal += f.Principal()
	}

	report := walReport{
		CPR:            opts.CPR,
		WALYears:       valuation.WAL(flows, 1.0/loan.PeriodsPerYear),
		TotalPrincipal: totalPrincipal,
		Periods:        len(flows),
	}

	return printResult(cmd, cliCtx.Output, report, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "CPR:              %.2f%%\n", report.CPR*100)
		fmt.Fprintf(&b, "WAL:              %.2f years\n", report.WALYears)
		fmt.Fprintf(&b, "Total principal:  %.2f\n", report.TotalPrincipal)
		fmt.Fprintf(&b, "Periods:          %d", report.Periods)
		return b.String()
	})
}

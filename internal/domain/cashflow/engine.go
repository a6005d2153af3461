// Package cashflow combines the baseline amortization schedule with a
// prepayment model along one simulated rate path, producing the pool's actual
// per-period cash flows.
package cashflow

import (
	"context"
	"fmt"
	"math"

	"github.com/quantfolio/mbsengine/internal/domain/loan"
	"github.com/quantfolio/mbsengine/internal/domain/prepay"
	"github.com/quantfolio/mbsengine/internal/domain/rates"
	"github.com/quantfolio/mbsengine/pkg/errors"
)

// PeriodCashFlow is one period of actual (post-prepayment) cash flow.
// Balance is monotonically non-increasing across a path and Total is always
// non-negative.
type PeriodCashFlow struct {
	Period             int
	ScheduledInterest  float64
	ScheduledPrincipal float64
	PrepaidPrincipal   float64
	Total              float64
	Balance            float64
}

// Principal returns the period's total principal return, scheduled plus
// prepaid.
func (f PeriodCashFlow) Principal() float64 {
	return f.ScheduledPrincipal + f.PrepaidPrincipal
}

// pathState is the tiny per-path state machine: a path accrues while balance
// remains positive and terminates at zero balance or term exhaustion,
// whichever comes first.  There is no reinstatement after termination.
type pathState uint8

const (
	stateAccruing pathState = iota
	stateTerminated
)

// balanceEpsilon treats sub-cent residues as a terminated pool.
const balanceEpsilon = 1e-9

// Engine runs the per-path cash-flow recursion.  It holds no per-path state;
// a single Engine is shared across parallel workers.
type Engine struct {
	provider loan.ScheduleProvider
}

// NewEngine builds an Engine over the given schedule provider.
func NewEngine(provider loan.ScheduleProvider) *Engine {
	return &Engine{provider: provider}
}

// RunPath produces the pool's cash flows along one rate path.
//
// Each period: scheduled interest and principal come from the baseline
// schedule scaled by the pool's surviving fraction; the model's CPR is
// converted to a single-monthly mortality SMM = 1−(1−CPR)^(1/12) and applied
// to the balance left after the scheduled principal; the balance steps down
// by both principal components, floored at zero.
//
// A NaN or infinite intermediate marks the whole path numerically unstable:
// RunPath returns a CodeNumericalInstability error naming the period and the
// caller discards the path.  Cancellation is honoured at period boundaries.
func (e *Engine) RunPath(ctx context.Context, pool loan.Pool, model prepay.Model, path rates.Path) ([]PeriodCashFlow, error) {
	schedule, err := e.provider.Schedule(pool)
	if err != nil {
		return nil, err
	}

	original := pool.EffectiveBalance()
	balance := original
	factor := 1.0 // surviving fraction of the scheduled pool
	prepaidToDate := 0.0
	state := stateAccruing

	flows := make([]PeriodCashFlow, 0, len(schedule))
	for _, entry := range schedule {
		if state == stateTerminated {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Cancelled("cashflow: path cancelled").WithCause(ctx.Err())
		default:
		}

		schedInterest := entry.Interest * factor
		schedPrincipal := entry.Principal * factor
		if schedPrincipal > balance {
			schedPrincipal = balance
		}
		afterScheduled := balance - schedPrincipal

		cpr := model.CPRAt(entry.Period, prepay.State{
			ShortRate:       rateAt(path, entry.Period),
			NoteRate:        pool.PeriodicRate(entry.Period-1) * loan.PeriodsPerYear,
			OriginalBalance: original,
			CurrentBalance:  balance,
			PrepaidToDate:   prepaidToDate,
		})
		smm := prepay.SMMFromCPR(cpr)
		prepaid := smm * afterScheduled

		total := schedInterest + schedPrincipal + prepaid
		balance = afterScheduled - prepaid
		if balance < 0 {
			balance = 0
		}

		if !finite(schedInterest) || !finite(prepaid) || !finite(balance) {
			return nil, errors.NumericalInstability("cashflow: non-finite value").
				WithDetail(fmt.Sprintf("period %d", entry.Period))
		}

		factor *= 1 - smm
		prepaidToDate += prepaid

		flows = append(flows, PeriodCashFlow{
			Period:             entry.Period,
			ScheduledInterest:  schedInterest,
			ScheduledPrincipal: schedPrincipal,
			PrepaidPrincipal:   prepaid,
			Total:              total,
			Balance:            balance,
		})

		if balance <= balanceEpsilon {
			state = stateTerminated
		}
	}
	return flows, nil
}

// rateAt returns the short rate prevailing over the given 1-based period,
// holding the last simulated rate when the schedule outruns the path horizon.
func rateAt(path rates.Path, period int) float64 {
	if len(path) == 0 {
		return 0
	}
	if period >= len(path) {
		return path[len(path)-1]
	}
	return path[period]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

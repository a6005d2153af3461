// Package loan models the mortgage pool being valued and supplies the
// baseline amortization schedule the cash-flow engine consumes.  Everything
// here is deterministic and side-effect free; stochastic behaviour lives in
// the rates and prepay packages.
package loan

import (
	"math"

	"github.com/quantfolio/mbsengine/pkg/errors"
)

// PeriodsPerYear is the payment frequency.  The engine works on a monthly
// grid throughout.
const PeriodsPerYear = 12

// ResetRule describes an adjustable-rate mortgage: a teaser rate (the pool's
// NoteRate) for TeaserMonths, then the annual rates in Rates.
//
// Rates must have either length 1 (a single post-teaser rate applied to every
// remaining period) or length TermMonths−TeaserMonths (one rate per
// post-teaser period).
type ResetRule struct {
	TeaserMonths int       `mapstructure:"teaser_months"`
	Rates        []float64 `mapstructure:"rates"`
}

// Pool is the (immutable for the duration of a run) description of the
// mortgage pool.
type Pool struct {
	// OriginalBalance is the face amount of the underlying loans.
	OriginalBalance float64 `mapstructure:"original_balance"`

	// NoteRate is the annual coupon on the loans (teaser rate when Reset is
	// set), e.g. 0.06 for 6%.
	NoteRate float64 `mapstructure:"note_rate"`

	// TermMonths is the remaining term in monthly periods.
	TermMonths int `mapstructure:"term_months"`

	// Reset, when non-nil, makes the pool adjustable-rate.
	Reset *ResetRule `mapstructure:"reset"`

	// PoolFactor is the share of the original principal still in the pool,
	// in (0, 1].  A freshly issued pool has factor 1.
	PoolFactor float64 `mapstructure:"pool_factor"`
}

// Validate checks the pool invariants.  It is called once per valuation run,
// before any simulation work begins.
func (p Pool) Validate() error {
	if p.OriginalBalance <= 0 || math.IsNaN(p.OriginalBalance) || math.IsInf(p.OriginalBalance, 0) {
		return errors.InvalidParam("pool: original balance must be positive and finite")
	}
	if p.NoteRate < 0 || math.IsNaN(p.NoteRate) {
		return errors.InvalidParam("pool: note rate must be non-negative")
	}
	if p.TermMonths <= 0 {
		return errors.InvalidParam("pool: term must be at least one period")
	}
	if p.PoolFactor <= 0 || p.PoolFactor > 1 {
		return errors.InvalidParam("pool: pool factor must be in (0, 1]")
	}
	if p.Reset != nil {
		if p.Reset.TeaserMonths < 0 || p.Reset.TeaserMonths >= p.TermMonths {
			return errors.InvalidParam("pool: teaser months must be in [0, term)")
		}
		n := len(p.Reset.Rates)
		if n != 1 && n != p.TermMonths-p.Reset.TeaserMonths {
			return errors.Newf(errors.CodeInvalidParam,
				"pool: reset rates must have length 1 or %d, got %d",
				p.TermMonths-p.Reset.TeaserMonths, n)
		}
		for _, r := range p.Reset.Rates {
			if r < 0 || math.IsNaN(r) {
				return errors.InvalidParam("pool: reset rates must be non-negative")
			}
		}
	}
	return nil
}

// EffectiveBalance is the balance actually in the pool after applying the
// pool factor.  All cash-flow and WAL arithmetic starts from this amount.
func (p Pool) EffectiveBalance() float64 {
	return p.OriginalBalance * p.PoolFactor
}

// PeriodicRate returns the monthly coupon for the given zero-based period,
// honouring the reset rule for adjustable pools.
func (p Pool) PeriodicRate(period int) float64 {
	if p.Reset == nil || period < p.Reset.TeaserMonths {
		return p.NoteRate / PeriodsPerYear
	}
	idx := period - p.Reset.TeaserMonths
	if idx >= len(p.Reset.Rates) {
		idx = len(p.Reset.Rates) - 1
	}
	return p.Reset.Rates[idx] / PeriodsPerYear
}

// Adjustable reports whether the pool carries a reset rule.
func (p Pool) Adjustable() bool { return p.Reset != nil }

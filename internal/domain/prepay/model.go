// Package prepay maps simulated rate paths and loan state to a conditional
// prepayment rate (CPR) per period, either constant or via a Richard–Roll
// style refinancing-incentive model.
package prepay

import (
	"math"

	"github.com/quantfolio/mbsengine/pkg/errors"
)

// Kind selects the prepayment model.
type Kind string

const (
	Constant    Kind = "constant"
	RichardRoll Kind = "richard_roll"
)

// State is the loan-level input the model sees each period.  The engine
// populates it from the pool and the path's running balances.
type State struct {
	// ShortRate is the simulated short rate prevailing this period
	// (annualised), used as the refinancing-rate proxy.
	ShortRate float64

	// NoteRate is the pool's annual coupon for this period.
	NoteRate float64

	// OriginalBalance is the pool balance at period zero.
	OriginalBalance float64

	// CurrentBalance is the remaining balance entering this period.
	CurrentBalance float64

	// PrepaidToDate is the cumulative principal returned through prepayment
	// on this path, driving burnout.
	PrepaidToDate float64
}

// Model produces an annualised CPR in [0,1] for a period.  Implementations
// must be pure with respect to their own fields so a single instance can be
// shared across parallel path workers.
type Model interface {
	CPRAt(period int, st State) float64
}

// RichardRollParams are the coefficients of the dynamic model.  The defaults
// reproduce the Richard and Roll (1989) fit.
type RichardRollParams struct {
	// Base and Slope set the level and amplitude of the incentive response:
	// CPR_incentive = Base − Slope·atan(Steepness·(Threshold − c/m)), with
	// c the note rate and m the current short rate.
	Base      float64 `mapstructure:"base"`
	Slope     float64 `mapstructure:"slope"`
	Steepness float64 `mapstructure:"steepness"`
	Threshold float64 `mapstructure:"threshold"`

	// SeasoningMonths is the ramp length: CPR scales linearly from zero to
	// its plateau over the first SeasoningMonths periods.  Zero disables the
	// ramp.
	SeasoningMonths int `mapstructure:"seasoning_months"`

	// BurnoutFactor damps incentive sensitivity as the pool's cumulative
	// prepaid fraction grows: multiplier 1/(1+BurnoutFactor·prepaidFraction).
	// Zero disables burnout.
	BurnoutFactor float64 `mapstructure:"burnout_factor"`

	// MaxCPR caps the composed annual CPR, in (0, 1].
	MaxCPR float64 `mapstructure:"max_cpr"`
}

// DefaultRichardRollParams returns the published coefficient fit with a
// 30-month PSA-style seasoning ramp and burnout disabled.
func DefaultRichardRollParams() RichardRollParams {
	return RichardRollParams{
		Base:            0.2406,
		Slope:           0.1389,
		Steepness:       5.952,
		Threshold:       1.089,
		SeasoningMonths: 30,
		BurnoutFactor:   0,
		MaxCPR:          1,
	}
}

// Params selects and parameterises a prepayment model.
type Params struct {
	Kind Kind `mapstructure:"kind"`

	// CPR is the fixed annual rate for the constant model.
	CPR float64 `mapstructure:"cpr"`

	// RichardRoll carries the dynamic-model coefficients.
	RichardRoll RichardRollParams `mapstructure:"richard_roll"`
}

// Validate checks the parameters for the selected kind.
func (p Params) Validate() error {
	switch p.Kind {
	case Constant:
		if p.CPR < 0 || p.CPR > 1 || math.IsNaN(p.CPR) {
			return errors.Newf(errors.CodeInvalidParam, "prepay: constant CPR must be in [0,1], got %v", p.CPR)
		}
	case RichardRoll:
		rr := p.RichardRoll
		for _, v := range []struct {
			name string
			val  float64
		}{
			{"base", rr.Base},
			{"slope", rr.Slope},
			{"steepness", rr.Steepness},
			{"threshold", rr.Threshold},
		} {
			if math.IsNaN(v.val) || math.IsInf(v.val, 0) {
				return errors.Newf(errors.CodeInvalidParam, "prepay: richard-roll %s must be finite", v.name)
			}
		}
		if rr.SeasoningMonths < 0 {
			return errors.InvalidParam("prepay: seasoning months must be non-negative")
		}
		if rr.BurnoutFactor < 0 {
			return errors.InvalidParam("prepay: burnout factor must be non-negative")
		}
		if rr.MaxCPR <= 0 || rr.MaxCPR > 1 {
			return errors.InvalidParam("prepay: max CPR must be in (0, 1]")
		}
	default:
		return errors.Newf(errors.CodeInvalidParam, "prepay: unknown model kind %q", p.Kind)
	}
	return nil
}

// NewModel constructs the model selected by params.
func NewModel(params Params) (Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	switch params.Kind {
	case Constant:
		return &ConstantModel{cpr: params.CPR}, nil
	default:
		return &RichardRollModel{p: params.RichardRoll}, nil
	}
}

// ConstantModel returns the configured CPR every period.
type ConstantModel struct {
	cpr float64
}

// NewConstantModel builds a constant model, clamping cpr into [0,1].
func NewConstantModel(cpr float64) *ConstantModel {
	return &ConstantModel{cpr: clamp(cpr, 0, 1)}
}

// CPRAt implements Model.
func (m *ConstantModel) CPRAt(int, State) float64 { return m.cpr }

// RichardRollModel composes three effects multiplicatively and clamps the
// result into [0, MaxCPR]:
//
//	CPR = clamp(incentive(c/m) × seasoning(period) × burnout(prepaid), 0, MaxCPR)
//
// incentive — arctan response to the coupon/market-rate ratio; seasoning —
// linear ramp to a plateau over SeasoningMonths; burnout — decay in the
// cumulative prepaid fraction of original balance.  Out-of-range compositions
// are clamped by contract, never propagated.
type RichardRollModel struct {
	p RichardRollParams
}

// NewRichardRollModel builds the dynamic model from explicit coefficients.
func NewRichardRollModel(p RichardRollParams) *RichardRollModel {
	return &RichardRollModel{p: p}
}

// CPRAt implements Model.  period is 1-based.
func (m *RichardRollModel) CPRAt(period int, st State) float64 {
	cpr := m.incentive(st) * m.seasoning(period) * m.burnout(st)
	return clamp(cpr, 0, m.p.MaxCPR)
}

func (m *RichardRollModel) incentive(st State) float64 {
	// c/m ratio; a rate path at or below zero makes refinancing maximally
	// attractive, which the arctan handles via its ±π/2 asymptotes.
	var ratio float64
	switch {
	case st.ShortRate > 0:
		ratio = st.NoteRate / st.ShortRate
	case st.NoteRate > 0:
		ratio = math.Inf(1)
	default:
		ratio = 1
	}
	return m.p.Base - m.p.Slope*math.Atan(m.p.Steepness*(m.p.Threshold-ratio))
}

func (m *RichardRollModel) seasoning(period int) float64 {
	if m.p.SeasoningMonths <= 0 {
		return 1
	}
	return math.Min(1, float64(period)/float64(m.p.SeasoningMonths))
}

func (m *RichardRollModel) burnout(st State) float64 {
	if m.p.BurnoutFactor == 0 || st.OriginalBalance <= 0 {
		return 1
	}
	prepaidFraction := clamp(st.PrepaidToDate/st.OriginalBalance, 0, 1)
	return 1 / (1 + m.p.BurnoutFactor*prepaidFraction)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SMMFromCPR converts an annualised CPR to the single-monthly-mortality rate:
// SMM = 1 − (1−CPR)^(1/12).
func SMMFromCPR(cpr float64) float64 {
	cpr = clamp(cpr, 0, 1)
	return 1 - math.Pow(1-cpr, 1.0/12)
}

// CPRFromSMM is the inverse conversion: CPR = 1 − (1−SMM)^12.
func CPRFromSMM(smm float64) float64 {
	smm = clamp(smm, 0, 1)
	return 1 - math.Pow(1-smm, 12)
}

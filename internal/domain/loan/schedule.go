package loan

// Entry is one period of the baseline (zero-prepayment) amortization
// schedule.  Period is 1-based; Balance is the remaining balance after the
// period's principal payment.
type Entry struct {
	Period    int
	Payment   float64
	Interest  float64
	Principal float64
	Balance   float64
}

// ScheduleProvider produces the scheduled (payment, interest, principal,
// balance) sequence for a pool absent any prepayment.  Implementations must
// be pure: same pool in, same schedule out, no side effects.
type ScheduleProvider interface {
	Schedule(pool Pool) ([]Entry, error)
}

// Payment returns the level payment that fully amortizes balance over months
// at the given monthly rate.  A zero rate degenerates to straight-line
// principal return.
func Payment(balance, monthlyRate float64, months int) float64 {
	if months <= 0 {
		return 0
	}
	if monthlyRate == 0 {
		return balance / float64(months)
	}
	return monthlyRate * balance / (1 - pow1p(monthlyRate, -months))
}

// pow1p computes (1+r)^n for integer n without calling math.Pow twice at the
// call sites.
func pow1p(r float64, n int) float64 {
	result := 1.0
	base := 1 + r
	if n < 0 {
		base = 1 / base
		n = -n
	}
	for i := 0; i < n; i++ {
		result *= base
	}
	return result
}

// AnnuityScheduler is the standard ScheduleProvider: level-payment annuity
// amortization, with payment recalculation at each rate reset for adjustable
// pools.
type AnnuityScheduler struct{}

// NewAnnuityScheduler returns the default schedule provider.
func NewAnnuityScheduler() AnnuityScheduler { return AnnuityScheduler{} }

// Schedule implements ScheduleProvider.
//
// For fixed pools the payment is constant.  For adjustable pools the payment
// is re-derived every post-teaser period from the remaining balance, the
// period's reset rate, and the remaining term, so the loan still amortizes to
// zero at term.
func (AnnuityScheduler) Schedule(pool Pool) ([]Entry, error) {
	if err := pool.Validate(); err != nil {
		return nil, err
	}

	balance := pool.EffectiveBalance()
	rate := pool.PeriodicRate(0)
	payment := Payment(balance, rate, pool.TermMonths)

	entries := make([]Entry, 0, pool.TermMonths)
	for m := 0; m < pool.TermMonths; m++ {
		if pool.Adjustable() && m >= pool.Reset.TeaserMonths {
			rate = pool.PeriodicRate(m)
			payment = Payment(balance, rate, pool.TermMonths-m)
		}

		interest := balance * rate
		principal := payment - interest
		if m == pool.TermMonths-1 {
			// Absorb the accumulated floating-point residue so the schedule
			// terminates at exactly zero.
			principal = balance
			payment = principal + interest
		}
		balance -= principal

		entries = append(entries, Entry{
			Period:    m + 1,
			Payment:   payment,
			Interest:  interest,
			Principal: principal,
			Balance:   balance,
		})
	}
	return entries, nil
}

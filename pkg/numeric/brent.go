// Package numeric provides the small numerical routines the valuation layer
// needs that do not warrant a heavier dependency.
package numeric

import (
	"math"

	"github.com/quantfolio/mbsengine/pkg/errors"
)

// Default iteration and tolerance settings for root finding.
const (
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-8
)

// RootResult holds the outcome of a root-finding run.
type RootResult struct {
	// Root is the abscissa at which the objective is (approximately) zero.
	Root float64

	// F is the objective value at Root; close to zero on success.
	F float64

	// Iterations is the number of iterations consumed.
	Iterations int
}

// Brent finds a root of f in the bracketing interval [a, b] using Brent's
// method: inverse quadratic interpolation where the iterates behave, secant
// otherwise, with a bisection fallback guaranteeing convergence.
//
// f(a) and f(b) must have opposite signs; otherwise an invalid-parameter
// error is returned before any iteration.
func Brent(f func(float64) float64, a, b, tol float64, maxIter int) (RootResult, error) {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	fa := f(a)
	fb := f(b)
	if fa == 0 {
		return RootResult{Root: a, F: 0, Iterations: 0}, nil
	}
	if fb == 0 {
		return RootResult{Root: b, F: 0, Iterations: 0}, nil
	}
	if fa*fb > 0 {
		return RootResult{}, errors.InvalidParam("brent: interval does not bracket a root").
			WithDetail("f(a) and f(b) must have opposite signs")
	}

	// Keep b as the best estimate: |f(b)| <= |f(a)|.
	if math.Abs(fa) < math.Abs(fb) {
		a, b = b, a
		fa, fb = fb, fa
	}

	c, fc := a, fa
	var d float64
	mflag := true
	s, fs := b, fb

	for iter := 1; iter <= maxIter; iter++ {
		if fa != fc && fb != fc {
			// Inverse quadratic interpolation.
			s = a*fb*fc/((fa-fb)*(fa-fc)) +
				b*fa*fc/((fb-fa)*(fb-fc)) +
				c*fa*fb/((fc-fa)*(fc-fb))
		} else {
			// Secant step.
			s = b - fb*(b-a)/(fb-fa)
		}

		lo := (3*a + b) / 4
		hi := b
		if lo > hi {
			lo, hi = hi, lo
		}
		bad := s < lo || s > hi ||
			(mflag && math.Abs(s-b) >= math.Abs(b-c)/2) ||
			(!mflag && math.Abs(s-b) >= math.Abs(c-d)/2) ||
			(mflag && math.Abs(b-c) < tol) ||
			(!mflag && math.Abs(c-d) < tol)
		if bad {
			s = (a + b) / 2
			mflag = true
		} else {
			mflag = false
		}

		fs = f(s)
		d = c
		c, fc = b, fb

		if fa*fs < 0 {
			b, fb = s, fs
		} else {
			a, fa = s, fs
		}
		if math.Abs(fa) < math.Abs(fb) {
			a, b = b, a
			fa, fb = fb, fa
		}

		if fb == 0 || math.Abs(fs) <= tol || math.Abs(b-a) <= tol {
			return RootResult{Root: b, F: fb, Iterations: iter}, nil
		}
	}

	return RootResult{Root: b, F: fb, Iterations: maxIter},
		errors.Newf(errors.CodeInternal, "brent: no convergence after %d iterations", maxIter)
}

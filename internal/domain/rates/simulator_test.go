package rates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/mbsengine/internal/infrastructure/monitoring/logging"
	"github.com/quantfolio/mbsengine/pkg/errors"
)

func vasicekParams() ModelParams {
	return ModelParams{Kind: Vasicek, Kappa: 0.15, Theta: 0.05, Sigma: 0.01, R0: 0.04}
}

func cirParams() ModelParams {
	return ModelParams{Kind: CIR, Kappa: 0.2, Theta: 0.05, Sigma: 0.08, R0: 0.03}
}

func newSim(t *testing.T, p ModelParams, numPaths int, seed uint64) *Simulator {
	t.Helper()
	s, err := NewSimulator(p, 1.0/12, 30, numPaths, seed, logging.NewNop())
	require.NoError(t, err)
	return s
}

func TestSimulateDeterministic(t *testing.T) {
	a := newSim(t, vasicekParams(), 16, 42)
	b := newSim(t, vasicekParams(), 16, 42)

	pa, err := a.Simulate(context.Background())
	require.NoError(t, err)
	pb, err := b.Simulate(context.Background())
	require.NoError(t, err)

	// Bit-identical, not merely close.
	assert.Equal(t, pa, pb)
}

func TestSimulatePathIndexIndependence(t *testing.T) {
	s := newSim(t, vasicekParams(), 8, 7)

	// A path depends only on (seed, index), not on generation order.
	p5 := s.SimulatePath(5)
	_ = s.SimulatePath(0)
	again := s.SimulatePath(5)
	assert.Equal(t, p5, again)

	// Distinct indices give distinct paths.
	assert.NotEqual(t, s.SimulatePath(0), s.SimulatePath(1))
}

func TestSimulateDifferentSeedsDiffer(t *testing.T) {
	a := newSim(t, vasicekParams(), 1, 1)
	b := newSim(t, vasicekParams(), 1, 2)
	assert.NotEqual(t, a.SimulatePath(0), b.SimulatePath(0))
}

func TestPathShape(t *testing.T) {
	s := newSim(t, vasicekParams(), 1, 3)
	p := s.SimulatePath(0)
	require.Len(t, p, s.Steps()+1)
	assert.Equal(t, 360, s.Steps())
	assert.Equal(t, 0.04, p[0])
}

func TestCIRNonNegativeTruncation(t *testing.T) {
	p := cirParams()
	p.Sigma = 0.5 // deliberately violates Feller to stress the floor
	s := newSim(t, p, 32, 11)

	paths, err := s.Simulate(context.Background())
	require.NoError(t, err)
	for i, path := range paths {
		for j, r := range path {
			require.GreaterOrEqual(t, r, 0.0, "path %d step %d", i, j)
		}
	}
}

func TestCIRNonNegativeReflection(t *testing.T) {
	p := cirParams()
	p.Sigma = 0.5
	p.Policy = PolicyReflection
	s := newSim(t, p, 32, 11)

	paths, err := s.Simulate(context.Background())
	require.NoError(t, err)
	for i, path := range paths {
		for j, r := range path {
			require.GreaterOrEqual(t, r, 0.0, "path %d step %d", i, j)
		}
	}
}

func TestDegenerateVasicekStaysAtR0(t *testing.T) {
	p := ModelParams{Kind: Vasicek, Kappa: 0, Theta: 0.10, Sigma: 0, R0: 0.04}
	s := newSim(t, p, 1, 99)

	path := s.SimulatePath(0)
	for i, r := range path {
		require.Equal(t, 0.04, r, "step %d", i)
	}
}

func TestVasicekMayGoNegative(t *testing.T) {
	// High vol, near-zero start: negative rates must be allowed, not clamped.
	p := ModelParams{Kind: Vasicek, Kappa: 0.05, Theta: 0.0, Sigma: 0.05, R0: 0.001}
	s := newSim(t, p, 64, 5)

	negative := false
	for i := 0; i < s.NumPaths(); i++ {
		for _, r := range s.SimulatePath(i) {
			if r < 0 {
				negative = true
			}
		}
	}
	assert.True(t, negative, "expected at least one negative rate across 64 high-vol paths")
}

func TestNewSimulatorInvalidInputs(t *testing.T) {
	log := logging.NewNop()
	tests := []struct {
		name string
		fn   func() (*Simulator, error)
	}{
		{"ZeroDt", func() (*Simulator, error) { return NewSimulator(vasicekParams(), 0, 30, 10, 1, log) }},
		{"NegativeDt", func() (*Simulator, error) { return NewSimulator(vasicekParams(), -0.1, 30, 10, 1, log) }},
		{"ZeroHorizon", func() (*Simulator, error) { return NewSimulator(vasicekParams(), 1.0/12, 0, 10, 1, log) }},
		{"ZeroPaths", func() (*Simulator, error) { return NewSimulator(vasicekParams(), 1.0/12, 30, 0, 1, log) }},
		{"NegativePaths", func() (*Simulator, error) { return NewSimulator(vasicekParams(), 1.0/12, 30, -4, 1, log) }},
		{"BadKind", func() (*Simulator, error) {
			p := vasicekParams()
			p.Kind = "ho-lee"
			return NewSimulator(p, 1.0/12, 30, 10, 1, log)
		}},
		{"NegativeSigma", func() (*Simulator, error) {
			p := vasicekParams()
			p.Sigma = -0.01
			return NewSimulator(p, 1.0/12, 30, 10, 1, log)
		}},
		{"NegativeKappa", func() (*Simulator, error) {
			p := vasicekParams()
			p.Kappa = -0.2
			return NewSimulator(p, 1.0/12, 30, 10, 1, log)
		}},
		{"BadPolicy", func() (*Simulator, error) {
			p := cirParams()
			p.Policy = "absorb-and-retry"
			return NewSimulator(p, 1.0/12, 30, 10, 1, log)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
		})
	}
}

func TestFellerCondition(t *testing.T) {
	ok := ModelParams{Kind: CIR, Kappa: 0.5, Theta: 0.04, Sigma: 0.1}
	assert.True(t, ok.FellerSatisfied()) // 0.04 ≥ 0.01

	bad := ModelParams{Kind: CIR, Kappa: 0.1, Theta: 0.02, Sigma: 0.2}
	assert.False(t, bad.FellerSatisfied()) // 0.004 < 0.04

	// Feller is a warning, not an error: the simulator still constructs.
	_, err := NewSimulator(ModelParams{Kind: CIR, Kappa: 0.1, Theta: 0.02, Sigma: 0.2, R0: 0.03},
		1.0/12, 10, 4, 1, logging.NewNop())
	assert.NoError(t, err)
}

func TestSimulateCancellation(t *testing.T) {
	s := newSim(t, vasicekParams(), 1000, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Simulate(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCancelled))
}

func TestCIRMeanReversionPullsTowardTheta(t *testing.T) {
	// With strong mean reversion and mild vol the long-run sample mean should
	// sit near theta.
	p := ModelParams{Kind: CIR, Kappa: 2.0, Theta: 0.05, Sigma: 0.02, R0: 0.01}
	s := newSim(t, p, 64, 17)

	var sum float64
	var n int
	for i := 0; i < 64; i++ {
		path := s.SimulatePath(i)
		// Skip the burn-in half of the horizon.
		for _, r := range path[len(path)/2:] {
			sum += r
			n++
		}
	}
	assert.InDelta(t, 0.05, sum/float64(n), 0.01)
}

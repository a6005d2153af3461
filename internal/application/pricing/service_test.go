package pricing

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/mbsengine/internal/domain/loan"
	"github.com/quantfolio/mbsengine/internal/domain/prepay"
	"github.com/quantfolio/mbsengine/internal/domain/rates"
	"github.com/quantfolio/mbsengine/internal/infrastructure/monitoring/logging"
	"github.com/quantfolio/mbsengine/internal/infrastructure/monitoring/prometheus"
	"github.com/quantfolio/mbsengine/internal/testutil"
	"github.com/quantfolio/mbsengine/pkg/errors"
)

func testRequest() Request {
	return Request{
		Pool: loan.Pool{
			OriginalBalance: 100000,
			NoteRate:        0.06,
			TermMonths:      360,
			PoolFactor:      1,
		},
		RateParams: rates.ModelParams{
			Kind:  rates.Vasicek,
			Kappa: 0.15,
			Theta: 0.05,
			Sigma: 0.01,
			R0:    0.05,
		},
		PrepayParams: prepay.Params{Kind: prepay.Constant, CPR: 0.06},
		NumPaths:     16,
		Seed:         42,
	}
}

func newTestService(t *testing.T) (*Service, *testutil.MockLogger) {
	t.Helper()
	ml := testutil.NewMockLogger()
	return NewService(loan.NewAnnuityScheduler(), ml, nil), ml
}

func TestRunHappyPath(t *testing.T) {
	svc, ml := newTestService(t)

	res, err := svc.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.False(t, res.RunID.IsZero())
	assert.Equal(t, 16, res.Valuation.PathsUsed)
	assert.Empty(t, res.Discarded)
	assert.Nil(t, res.Paths)

	// With modest vol around a 5% short rate, a $100k 6% pool values in the
	// right ballpark of par.
	assert.Greater(t, res.Valuation.MarketValue, 80000.0)
	assert.Less(t, res.Valuation.MarketValue, 120000.0)
	assert.Greater(t, res.Valuation.StandardError, 0.0)
	assert.Greater(t, res.Valuation.WAL, 1.0)
	assert.Less(t, res.Valuation.WAL, 30.0)

	assert.True(t, ml.HasMessage("info", "valuation run completed"))
}

func TestRunDeterministicWithSameSeed(t *testing.T) {
	svc, _ := newTestService(t)

	req := testRequest()
	req.Workers = 1

	first, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Valuation.MarketValue, second.Valuation.MarketValue)
	assert.Equal(t, first.Valuation.StandardError, second.Valuation.StandardError)
	assert.Equal(t, first.Valuation.WAL, second.Valuation.WAL)
}

func TestRunWorkerCountDoesNotChangeEstimate(t *testing.T) {
	svc, _ := newTestService(t)

	serial := testRequest()
	serial.Workers = 1
	parallel := testRequest()
	parallel.Workers = 4

	a, err := svc.Run(context.Background(), serial)
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), parallel)
	require.NoError(t, err)

	// Identical paths fold in a different order, so allow summation noise.
	assert.InDelta(t, a.Valuation.MarketValue, b.Valuation.MarketValue, 1e-6)
	assert.InDelta(t, a.Valuation.WAL, b.Valuation.WAL, 1e-9)
}

func TestRunValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"zero paths", func(r *Request) { r.NumPaths = 0 }},
		{"negative paths", func(r *Request) { r.NumPaths = -3 }},
		{"negative workers", func(r *Request) { r.Workers = -1 }},
		{"negative dt", func(r *Request) { r.Dt = -0.01 }},
		{"negative horizon", func(r *Request) { r.HorizonYears = -1 }},
		{"bad pool", func(r *Request) { r.Pool.OriginalBalance = -1 }},
		{"bad sigma", func(r *Request) { r.RateParams.Sigma = -0.5 }},
		{"bad cpr", func(r *Request) { r.PrepayParams.CPR = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			tt.mutate(&req)
			_, err := svc.Run(ctx, req)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
		})
	}
}

func TestRunCancellation(t *testing.T) {
	svc, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := testRequest()
	req.NumPaths = 64

	_, err := svc.Run(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCancelled))
}

func TestRunKeepPaths(t *testing.T) {
	svc, _ := newTestService(t)

	req := testRequest()
	req.NumPaths = 6
	req.Workers = 1
	req.KeepPaths = true

	res, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Paths, 6)
	for _, pr := range res.Paths {
		assert.NotEmpty(t, pr.Rates)
		assert.NotEmpty(t, pr.Flows)
	}
}

// flakyScheduler corrupts the schedule on selected calls so individual paths
// hit the engine's instability detection.
type flakyScheduler struct {
	inner  loan.ScheduleProvider
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
}

func (f *flakyScheduler) Schedule(p loan.Pool) ([]loan.Entry, error) {
	f.mu.Lock()
	n := f.calls
	f.calls++
	f.mu.Unlock()

	entries, err := f.inner.Schedule(p)
	if err != nil {
		return nil, err
	}
	if f.failOn[n] {
		bad := append([]loan.Entry(nil), entries...)
		bad[0].Interest = math.NaN()
		return bad, nil
	}
	return entries, nil
}

func TestRunDiscardsUnstablePath(t *testing.T) {
	ml := testutil.NewMockLogger()
	sched := &flakyScheduler{inner: loan.NewAnnuityScheduler(), failOn: map[int]bool{1: true}}
	svc := NewService(sched, ml, nil)

	req := testRequest()
	req.NumPaths = 4
	req.Workers = 1

	res, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Valuation.PathsUsed)
	require.Len(t, res.Discarded, 1)
	assert.Equal(t, 1, res.Discarded[0].Index)
	assert.Equal(t, ReasonNumericalInstability, res.Discarded[0].Reason)
	assert.True(t, ml.HasMessage("warn", "path discarded"))
}

func TestRunAllPathsDiscarded(t *testing.T) {
	ml := testutil.NewMockLogger()
	failAll := map[int]bool{}
	for i := 0; i < 8; i++ {
		failAll[i] = true
	}
	sched := &flakyScheduler{inner: loan.NewAnnuityScheduler(), failOn: failAll}
	svc := NewService(sched, ml, nil)

	req := testRequest()
	req.NumPaths = 8

	_, err := svc.Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInsufficientData))
}

func TestRunWithMetrics(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "mbs_test"}, logging.NewNop())
	require.NoError(t, err)
	svc := NewService(loan.NewAnnuityScheduler(), logging.NewNop(), prometheus.NewEngineMetrics(collector))

	req := testRequest()
	req.NumPaths = 4

	res, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Valuation.PathsUsed)
}

func TestRunCIRModel(t *testing.T) {
	svc, _ := newTestService(t)

	req := testRequest()
	req.RateParams = rates.ModelParams{
		Kind:  rates.CIR,
		Kappa: 0.3,
		Theta: 0.05,
		Sigma: 0.08,
		R0:    0.04,
	}
	req.PrepayParams = prepay.Params{Kind: prepay.RichardRoll, RichardRoll: prepay.DefaultRichardRollParams()}

	res, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 16, res.Valuation.PathsUsed)
	assert.Greater(t, res.Valuation.MarketValue, 0.0)
}

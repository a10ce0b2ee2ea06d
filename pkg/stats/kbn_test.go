package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestComputeIntervalKBNTable2(t *testing.T) {
	// 3 events over 0.5 expected background at 95%.
	smin, smax, err := ComputeInterval(3, 0.5, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 0.22156, smin, 1e-3)
	assert.InDelta(t, 7.40188, smax, 1e-3)
}

func TestComputeIntervalNoEventsNoBackground(t *testing.T) {
	for _, cl := range []float64{0.05, 0.1, 0.5, 0.9, 0.99} {
		smin, smax, err := ComputeInterval(0, 0, cl)
		require.NoError(t, err)
		assert.Equal(t, 0.0, smin, "cl=%g", cl)
		// posterior is exp(-S) so the upper bound is -ln(1-CL)
		assert.InDelta(t, -math.Log(1-cl), smax, 1e-3, "cl=%g", cl)
	}
}

func TestComputeIntervalBounds(t *testing.T) {
	cases := []struct {
		n, b, cl float64
	}{
		{0, 0.5, 0.95},
		{1, 0, 0.68},
		{3, 0.5, 0.5},
		{10, 3, 0.9},
		{2, 50, 0.9},
		{25, 25, 0.99},
		{1000, 10, 0.95},
	}
	for _, c := range cases {
		smin, smax, err := ComputeInterval(c.n, c.b, c.cl)
		require.NoError(t, err, "%+v", c)
		assert.GreaterOrEqual(t, smin, 0.0, "%+v", c)
		assert.GreaterOrEqual(t, smax, smin, "%+v", c)
	}
}

func TestComputeIntervalWidthGrowsWithCL(t *testing.T) {
	prev := 0.0
	for _, cl := range []float64{0.3, 0.5, 0.68, 0.9, 0.95, 0.99} {
		smin, smax, err := ComputeInterval(3, 0.5, cl)
		require.NoError(t, err)
		w := smax - smin
		assert.GreaterOrEqual(t, w, prev, "cl=%g", cl)
		prev = w
	}
}

func TestSolveEqualDensityAtBounds(t *testing.T) {
	r, err := NewSolver().Solve(10, 3, 0.9)
	require.NoError(t, err)
	require.Greater(t, r.Smin, 0.0)

	p := NewPosterior(10, 3)
	assert.InEpsilon(t, p.At(r.Smin), p.At(r.Smax), 0.05)
	assert.InDelta(t, 0.9, r.Conf, 1e-4)
	assert.Greater(t, r.Iterations, 0)
}

func TestSolveSmallConfidence(t *testing.T) {
	cases := []struct {
		n, b float64
	}{{0, 0}, {3, 0.5}, {10, 3}}
	for _, c := range cases {
		for _, cl := range []float64{0.05, 0.1} {
			r, err := NewSolver().Solve(c.n, c.b, cl)
			require.NoError(t, err, "%+v cl=%g", c, cl)
			assert.InDelta(t, cl, r.Conf, 1e-4, "%+v cl=%g", c, cl)
			if r.Smin > 0 {
				p := NewPosterior(int(c.n), c.b)
				assert.InEpsilon(t, p.At(r.Smin), p.At(r.Smax), 1e-3, "%+v cl=%g", c, cl)
			}
		}
	}
}

func TestSolveStopsWhenUpperDensityVanishes(t *testing.T) {
	// half of the mass is missing, so the widening steps grow until the
	// density at the upper end underflows to zero
	f := func(s float64) float64 { return 0.5 * math.Exp(-s) }
	_, ce := NewSolver().search(f, 0, 0.9)
	require.NotNil(t, ce)
	assert.Equal(t, "density vanished at upper bound", ce.Reason)
	assert.InDelta(t, 0.5, ce.Conf, 1e-3)
	assert.True(t, errors.Is(ce, ErrConvergence))
}

func TestSolveMaxCount(t *testing.T) {
	sv := NewSolver()
	sv.MaxCount = 50
	_, err := sv.Solve(51, 0.5, 0.9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCount))
	assert.Contains(t, err.Error(), "exceeds the limit of 50")

	_, err = sv.Solve(50, 0.5, 0.9)
	assert.NoError(t, err)
}

func TestComputeIntervalRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		n, b, cl float64
		want     error
	}{
		{"non-integral count", 3.5, 0.5, 0.95, ErrInvalidCount},
		{"negative count", -1, 0.5, 0.95, ErrInvalidCount},
		{"nan count", math.NaN(), 0.5, 0.95, ErrInvalidCount},
		{"count above limit", 2e6, 0.5, 0.95, ErrInvalidCount},
		{"cl one", 3, 0.5, 1.0, ErrInvalidConfidence},
		{"cl zero", 3, 0.5, 0, ErrInvalidConfidence},
		{"negative background", 3, -1.0, 0.95, ErrInvalidBackground},
		{"infinite background", 3, math.Inf(1), 0.95, ErrInvalidBackground},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := ComputeInterval(c.n, c.b, c.cl)
			require.Error(t, err)
			assert.True(t, errors.Is(err, c.want), "got %v", err)

			var ie *InputError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, c.want, ie.Kind)
		})
	}
}

func TestSolveIterationBudget(t *testing.T) {
	sv := NewSolver()
	sv.MaxIterations = 3
	_, err := sv.Solve(3, 0.5, 0.95)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConvergence))

	var ce *ConvergenceError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, ce.Iterations)
	assert.Less(t, ce.Conf, 0.95)
}

func TestNormConstMatchesPoissonCDF(t *testing.T) {
	for _, c := range []struct {
		n int
		b float64
	}{{0, 0.5}, {3, 0.5}, {10, 3}, {40, 25}, {255, 250}, {256, 260}, {2000, 1990.5}} {
		want := 1 / distuv.Poisson{Lambda: c.b}.CDF(float64(c.n))
		assert.InEpsilon(t, want, NormConst(c.n, c.b), 1e-8, "%+v", c)
	}
	assert.Equal(t, 1.0, NormConst(7, 0))
}

func TestPosteriorIntegratesToOne(t *testing.T) {
	for _, c := range []struct {
		n int
		b float64
	}{{0, 0}, {3, 0.5}, {10, 3}, {2, 50}} {
		p := NewPosterior(c.n, c.b)
		hi := float64(c.n) + 60
		got := quad.Fixed(p.At, 0, hi, 200, nil, 0)
		assert.InDelta(t, 1.0, got, 1e-6, "%+v", c)
	}
}

func TestDensity(t *testing.T) {
	// N=0, B=0: exp(-S)
	assert.InDelta(t, math.Exp(-2), Density(1, 0, 0, 2), 1e-12)
	assert.Equal(t, 1.0, Density(1, 0, 0, 0))
	assert.Equal(t, 0.0, Density(1, 3, 0, 0))

	c := NormConst(3, 0.5)
	want := c * math.Exp(-3.0) * math.Pow(3.0, 3) / 6
	assert.InDelta(t, want, Density(c, 3, 0.5, 2.5), 1e-12)
	assert.InDelta(t, want, NewPosterior(3, 0.5).At(2.5), 1e-12)
}

func TestPosteriorMode(t *testing.T) {
	assert.Equal(t, 2.5, NewPosterior(3, 0.5).Mode())
	assert.Equal(t, 0.0, NewPosterior(2, 50).Mode())
}

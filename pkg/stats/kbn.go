package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

const (
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 1_000_000
	DefaultQuadOrder     = 20
	DefaultMaxCount      = 1_000_000
)

// Solver computes Kraft, Burrows & Nousek (1991) confidence intervals on a
// Poisson source rate observed over a known background (ApJ 374, 344).
// The zero value is not usable; call NewSolver.
type Solver struct {
	// Tolerance is the smallest step taken while widening the interval.
	Tolerance float64
	// MaxIterations bounds the number of widening steps per solve.
	MaxIterations int
	// QuadOrder is the number of Gauss-Legendre nodes per integrated step.
	QuadOrder int
	// MaxCount is the largest observed count accepted. The normalization
	// sums MaxCount+1 Poisson terms.
	MaxCount int
}

func NewSolver() *Solver {
	return &Solver{
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
		QuadOrder:     DefaultQuadOrder,
		MaxCount:      DefaultMaxCount,
	}
}

// Result is a solved interval together with how the search got there.
type Result struct {
	Smin       float64
	Smax       float64
	Iterations int
	Conf       float64
}

type searchState struct {
	smin, smax float64
	fmin, fmax float64
	conf       float64
}

// Validate checks the inputs of a solve in the order count, confidence,
// background and returns the count as an int.
func Validate(n, b, cl float64) (int, error) {
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return 0, &InputError{Kind: ErrInvalidCount, Param: "N", Value: n}
	}
	if math.IsNaN(cl) || cl <= 0 || cl >= 1 {
		return 0, &InputError{Kind: ErrInvalidConfidence, Param: "CL", Value: cl}
	}
	if math.IsNaN(b) || math.IsInf(b, 0) || b < 0 {
		return 0, &InputError{Kind: ErrInvalidBackground, Param: "B", Value: b}
	}
	return int(n), nil
}

// Solve returns the shortest interval [Smin, Smax] holding posterior mass cl
// for n observed events over an expected background b.
//
// The search starts at the posterior mode, max(n-b, 0), and widens on
// whichever side currently has the higher density so both ends stay at
// (roughly) equal density. Once the lower end reaches zero only the upper end
// moves.
func (sv *Solver) Solve(n, b, cl float64) (Result, error) {
	count, err := Validate(n, b, cl)
	if err != nil {
		return Result{}, err
	}

	maxCount := sv.MaxCount
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}
	if count > maxCount {
		return Result{}, &InputError{Kind: ErrInvalidCount, Param: "N", Value: n,
			Reason: fmt.Sprintf("exceeds the limit of %d", maxCount)}
	}

	post := NewPosterior(count, b)
	r, cerr := sv.search(post.At, post.Mode(), cl)
	if cerr != nil {
		cerr.N, cerr.B, cerr.CL = n, b, cl
		return Result{}, cerr
	}
	return r, nil
}

// search widens [smin, smax] around mode until the density f encloses mass
// cl. Each step adds at most a fifth of the mass still missing, so the result
// lands on cl instead of overshooting it.
func (sv *Solver) search(f func(float64) float64, mode, cl float64) (Result, *ConvergenceError) {
	tol := sv.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	maxIter := sv.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	order := sv.QuadOrder
	if order <= 0 {
		order = DefaultQuadOrder
	}
	integrate := func(lo, hi float64) float64 {
		return quad.Fixed(f, lo, hi, order, quad.Legendre{}, 0)
	}

	st := searchState{}
	st.smin = mode
	st.smax = st.smin
	st.fmin = f(st.smin)
	st.fmax = st.fmin

	fail := func(iter int, reason string) (Result, *ConvergenceError) {
		return Result{}, &ConvergenceError{Iterations: iter, Conf: st.conf, Reason: reason}
	}

	iter := 0
	for st.conf < cl {
		if iter >= maxIter {
			return fail(iter, "iteration budget exhausted")
		}
		iter++

		gap := cl - st.conf
		if st.smin == 0 || st.fmin < st.fmax {
			step := math.Max(0.2*gap/st.fmax, tol)
			if math.IsInf(step, 0) || math.IsNaN(step) {
				return fail(iter, "density vanished at upper bound")
			}
			st.conf += integrate(st.smax, st.smax+step)
			st.smax += step
			st.fmax = f(st.smax)
		} else {
			step := math.Max(math.Min(0.2*gap/st.fmin, 0.1*st.smin), tol)
			if st.smin-step < tol {
				st.conf += integrate(0, st.smin)
				st.smin = 0
			} else {
				st.conf += integrate(st.smin-step, st.smin)
				st.smin -= step
			}
			st.fmin = f(st.smin)
		}

		if math.IsNaN(st.conf) || math.IsInf(st.conf, 0) {
			return fail(iter, "accumulated probability is not finite")
		}
	}

	return Result{Smin: st.smin, Smax: st.smax, Iterations: iter, Conf: st.conf}, nil
}

var defaultSolver = NewSolver()

// ComputeInterval solves with the default tolerance and iteration budget.
func ComputeInterval(n, b, cl float64) (smin, smax float64, err error) {
	r, err := defaultSolver.Solve(n, b, cl)
	if err != nil {
		return 0, 0, err
	}
	return r.Smin, r.Smax, nil
}

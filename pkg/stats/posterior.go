package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// NormConst returns the constant C that makes the posterior density of the
// source rate integrate to one over [0, inf). It is the reciprocal of the
// Poisson probability of observing at most n events given mean b.
func NormConst(n int, b float64) float64 {
	return math.Exp(logNormConst(n, b))
}

// normChunk is how many Poisson log terms are folded per LogSumExp call.
const normChunk = 256

func logNormConst(n int, b float64) float64 {
	if b == 0 {
		// only the n=0 term survives and 0^0 = 1
		return 0
	}
	p := distuv.Poisson{Lambda: b}
	var buf [normChunk + 1]float64
	total := math.Inf(-1)
	for lo := 0; lo <= n; lo += normChunk {
		hi := min(lo+normChunk, n+1)
		terms := buf[:0]
		terms = append(terms, total)
		for k := lo; k < hi; k++ {
			terms = append(terms, p.LogProb(float64(k)))
		}
		total = floats.LogSumExp(terms)
	}
	return -total
}

// Density evaluates C * exp(-(s+b)) * (s+b)^n / n!.
func Density(c float64, n int, b, s float64) float64 {
	if c <= 0 {
		return 0
	}
	return math.Exp(logDensity(math.Log(c), n, b, s))
}

func logDensity(logC float64, n int, b, s float64) float64 {
	mu := s + b
	if mu <= 0 {
		if n == 0 {
			return logC
		}
		return math.Inf(-1)
	}
	lg, _ := math.Lgamma(float64(n) + 1)
	return logC + float64(n)*math.Log(mu) - mu - lg
}

// Posterior is the normalized density of the source rate for a fixed
// observation and background. The constant is kept in log form so that a
// large background against a small count does not overflow C.
type Posterior struct {
	N    int
	B    float64
	logC float64
}

func NewPosterior(n int, b float64) Posterior {
	return Posterior{N: n, B: b, logC: logNormConst(n, b)}
}

// C returns the normalization constant.
func (p Posterior) C() float64 { return math.Exp(p.logC) }

func (p Posterior) At(s float64) float64 {
	return math.Exp(logDensity(p.logC, p.N, p.B, s))
}

// Mode is where the posterior peaks: max(N - B, 0).
func (p Posterior) Mode() float64 {
	return math.Max(float64(p.N)-p.B, 0)
}

package stats

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Array is a dense row-major n-d array of float64. An empty Shape is a
// scalar holding exactly one value.
type Array struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// Scalar wraps a single value as a zero-dimensional Array.
func Scalar(v float64) Array { return Array{Data: []float64{v}} }

// Vector wraps values as a one-dimensional Array.
func Vector(vs ...float64) Array {
	return Array{Shape: []int{len(vs)}, Data: vs}
}

// NewArray checks that data fills shape exactly.
func NewArray(shape []int, data []float64) (Array, error) {
	a := Array{Shape: shape, Data: data}
	if err := a.check(); err != nil {
		return Array{}, err
	}
	return a, nil
}

func (a Array) check() error {
	size := 1
	for _, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension in shape %v", ErrInvalidArray, a.Shape)
		}
		size *= d
	}
	if size != len(a.Data) {
		return fmt.Errorf("%w: shape %v needs %d values, got %d", ErrInvalidArray, a.Shape, size, len(a.Data))
	}
	return nil
}

// Size is the number of elements.
func (a Array) Size() int { return len(a.Data) }

// BroadcastShapes returns the common shape of the given shapes. Shapes are
// aligned on their trailing dimension; each aligned pair must be equal or
// one of them must be 1.
func BroadcastShapes(shapes ...[]int) ([]int, error) {
	ndim := 0
	for _, s := range shapes {
		if len(s) > ndim {
			ndim = len(s)
		}
	}
	out := make([]int, ndim)
	for i := range out {
		out[i] = 1
	}
	for _, s := range shapes {
		off := ndim - len(s)
		for i, d := range s {
			switch {
			case d == out[off+i] || d == 1:
			case out[off+i] == 1:
				out[off+i] = d
			default:
				return nil, fmt.Errorf("%w: cannot broadcast %v", ErrShapeMismatch, shapes)
			}
		}
	}
	return out, nil
}

// broadcastStrides maps a multi-index of shape out onto a's flat index.
// Dimensions a broadcasts along get stride 0.
func broadcastStrides(a Array, out []int) []int {
	strides := make([]int, len(out))
	off := len(out) - len(a.Shape)
	step := 1
	for i := len(a.Shape) - 1; i >= 0; i-- {
		if a.Shape[i] != 1 {
			strides[off+i] = step
		}
		step *= a.Shape[i]
	}
	return strides
}

func unravel(flat int, shape []int) []int {
	idx := make([]int, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] > 0 {
			idx[i] = flat % shape[i]
			flat /= shape[i]
		}
	}
	return idx
}

func dot(idx, strides []int) int {
	p := 0
	for i := range idx {
		p += idx[i] * strides[i]
	}
	return p
}

// SolveBroadcast solves every aligned (n, b, cl) triple of the broadcast
// inputs and returns Smin and Smax in the broadcast shape.
//
// Elements are solved concurrently, at most workers at a time (GOMAXPROCS
// when workers <= 0). The first failing element aborts the remaining work and
// is returned as an *ElementError; no partial output is returned.
func (sv *Solver) SolveBroadcast(parent context.Context, n, b, cl Array, workers int) (smin, smax Array, err error) {
	for _, a := range []Array{n, b, cl} {
		if err := a.check(); err != nil {
			return Array{}, Array{}, err
		}
	}
	shape, err := BroadcastShapes(n.Shape, b.Shape, cl.Shape)
	if err != nil {
		return Array{}, Array{}, err
	}
	size := 1
	for _, d := range shape {
		size *= d
	}

	ns, bs, cls := broadcastStrides(n, shape), broadcastStrides(b, shape), broadcastStrides(cl, shape)
	lo := make([]float64, size)
	hi := make([]float64, size)

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(parent)
	g.SetLimit(workers)
	for i := 0; i < size; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			idx := unravel(i, shape)
			r, err := sv.Solve(n.Data[dot(idx, ns)], b.Data[dot(idx, bs)], cl.Data[dot(idx, cls)])
			if err != nil {
				return &ElementError{Index: idx, Err: err}
			}
			lo[i], hi[i] = r.Smin, r.Smax
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Array{}, Array{}, err
	}
	if err := parent.Err(); err != nil {
		return Array{}, Array{}, err
	}

	return Array{Shape: shape, Data: lo}, Array{Shape: append([]int(nil), shape...), Data: hi}, nil
}

// ComputeIntervalBroadcast is SolveBroadcast with the default solver.
func ComputeIntervalBroadcast(ctx context.Context, n, b, cl Array) (smin, smax Array, err error) {
	return defaultSolver.SolveBroadcast(ctx, n, b, cl, 0)
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/catherinezucker/pwpy/pkg/calmodels"
	"github.com/catherinezucker/pwpy/pkg/config"
	"github.com/catherinezucker/pwpy/pkg/logger"
	"github.com/catherinezucker/pwpy/pkg/metrics"
	"github.com/catherinezucker/pwpy/pkg/stats"
)

// Engine binds the solver and the calibrator table to the configured limits
// and records every call in logs and metrics.
type Engine struct {
	solver      *stats.Solver
	table       *calmodels.Table
	log         *logger.Logger
	workers     int
	maxElements int
}

func New(cfg *config.Config, log *logger.Logger) (*Engine, error) {
	opts := []calmodels.Option{}
	if cfg.Flux.CasAYear > 0 {
		opts = append(opts, calmodels.WithCasA(cfg.Flux.CasAYear))
	}
	for _, v := range cfg.Flux.VLASources {
		opts = append(opts, calmodels.WithVLA(v.Name, v.LBand, v.CBand))
	}
	table, err := calmodels.NewTable(opts...)
	if err != nil {
		return nil, fmt.Errorf("build flux table: %w", err)
	}
	return &Engine{
		solver: &stats.Solver{
			Tolerance:     cfg.Solver.Tolerance,
			MaxIterations: cfg.Solver.MaxIterations,
			QuadOrder:     cfg.Solver.QuadOrder,
			MaxCount:      cfg.Solver.MaxCount,
		},
		table:       table,
		log:         log,
		workers:     cfg.Broadcast.Concurrency,
		maxElements: cfg.Broadcast.MaxElements,
	}, nil
}

func (e *Engine) Interval(n, b, cl float64) (stats.Result, error) {
	r, err := e.solver.Solve(n, b, cl)
	metrics.IntervalSolves.WithLabelValues(metrics.ResultLabel(err)).Inc()
	if err != nil {
		e.log.Warn("interval_failed", "n", n, "b", b, "cl", cl, "err", err.Error())
		return r, err
	}
	metrics.SolveIterations.Observe(float64(r.Iterations))
	e.log.Debug("interval_solved", "n", n, "b", b, "cl", cl,
		"smin", r.Smin, "smax", r.Smax, "iterations", r.Iterations)
	return r, nil
}

// ErrTooLarge is returned when a broadcast would exceed the element limit.
var ErrTooLarge = errors.New("broadcast_too_large")

func (e *Engine) Broadcast(ctx context.Context, n, b, cl stats.Array) (smin, smax stats.Array, err error) {
	shape, err := stats.BroadcastShapes(n.Shape, b.Shape, cl.Shape)
	if err != nil {
		return stats.Array{}, stats.Array{}, err
	}
	size := 1
	for _, d := range shape {
		size *= d
	}
	if e.maxElements > 0 && size > e.maxElements {
		return stats.Array{}, stats.Array{}, fmt.Errorf("%w: %d elements, limit %d", ErrTooLarge, size, e.maxElements)
	}

	smin, smax, err = e.solver.SolveBroadcast(ctx, n, b, cl, e.workers)
	metrics.IntervalSolves.WithLabelValues(metrics.ResultLabel(err)).Inc()
	if err != nil {
		e.log.Warn("broadcast_failed", "shape", shape, "err", err.Error())
		return smin, smax, err
	}
	metrics.BroadcastElements.Add(float64(size))
	e.log.Debug("broadcast_solved", "shape", shape)
	return smin, smax, nil
}

// Flux evaluates a calibrator. year is only used for Cas A, which needs it.
func (e *Engine) Flux(source string, freqMHz float64, year *float64) (float64, error) {
	var (
		f   float64
		err error
	)
	if year != nil && source == calmodels.CasAName {
		f, err = e.table.FluxAt(source, freqMHz, *year)
	} else {
		f, err = e.table.Flux(source, freqMHz)
	}
	if err != nil {
		metrics.FluxLookups.WithLabelValues("error").Inc()
		e.log.Warn("flux_failed", "source", source, "freq_mhz", freqMHz, "err", err.Error())
		return 0, err
	}
	metrics.FluxLookups.WithLabelValues("ok").Inc()
	return f, nil
}

func (e *Engine) Sources() []string { return e.table.Sources() }

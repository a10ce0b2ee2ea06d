package metrics

import (
	"errors"

	"github.com/catherinezucker/pwpy/pkg/stats"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	IntervalSolves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pwpy_interval_solves_total", Help: "Interval solves by result",
	}, []string{"result"})
	SolveIterations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pwpy_interval_iterations",
		Help:    "Widening steps taken per interval solve",
		Buckets: prometheus.ExponentialBuckets(8, 2, 12),
	})
	BroadcastElements = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pwpy_broadcast_elements_total", Help: "Elements solved through broadcast requests",
	})
	FluxLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pwpy_flux_lookups_total", Help: "Calibrator flux lookups by result",
	}, []string{"result"})
)

func MustRegister() {
	prometheus.MustRegister(IntervalSolves, SolveIterations, BroadcastElements, FluxLookups)
}

// ResultLabel maps an error onto the label used by the result counters.
func ResultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	for _, kind := range []error{
		stats.ErrInvalidCount, stats.ErrInvalidBackground,
		stats.ErrInvalidConfidence, stats.ErrConvergence,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "error"
}

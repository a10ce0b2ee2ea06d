package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/catherinezucker/pwpy/pkg/calmodels"
	"github.com/catherinezucker/pwpy/pkg/stats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Backend interface {
	Interval(n, b, cl float64) (stats.Result, error)
	Broadcast(ctx context.Context, n, b, cl stats.Array) (smin, smax stats.Array, err error)
	Flux(source string, freqMHz float64, year *float64) (float64, error)
	Sources() []string
}

type Server struct {
	Backend     Backend
	MetricsPath string
	HealthzPath string
	// MaxBodyBytes caps the broadcast request body.
	MaxBodyBytes int64
	reqInFlight atomic.Int64
	srv         *http.Server
}

const DefaultMaxBodyBytes = 10 << 20

func New(b Backend, metricsPath, healthzPath string) *Server {
	return &Server{Backend: b, MetricsPath: metricsPath, HealthzPath: healthzPath,
		MaxBodyBytes: DefaultMaxBodyBytes}
}

type broadcastRequest struct {
	N  stats.Array `json:"n"`
	B  stats.Array `json:"b"`
	CL stats.Array `json:"cl"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.HealthzPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle(s.MetricsPath, promhttp.Handler())

	mux.HandleFunc("/api/v1/interval", s.wrap(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		n, err1 := strconv.ParseFloat(q.Get("n"), 64)
		b, err2 := strconv.ParseFloat(q.Get("b"), 64)
		cl, err3 := strconv.ParseFloat(q.Get("cl"), 64)
		if err := errors.Join(err1, err2, err3); err != nil {
			sendJSON(w, 400, errMsg("n, b and cl must be numbers"))
			return
		}
		res, err := s.Backend.Interval(n, b, cl)
		if err != nil {
			sendJSON(w, statusFor(err), errMsg(err.Error()))
			return
		}
		sendJSON(w, 200, map[string]any{
			"ok": true, "smin": res.Smin, "smax": res.Smax, "iterations": res.Iterations,
		})
	}))
	mux.HandleFunc("/api/v1/interval/broadcast", s.wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendJSON(w, 405, errMsg("POST required"))
			return
		}
		limit := s.MaxBodyBytes
		if limit <= 0 {
			limit = DefaultMaxBodyBytes
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		var req broadcastRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				sendJSON(w, http.StatusRequestEntityTooLarge, errMsg("body_too_large"))
				return
			}
			sendJSON(w, 400, errMsg("bad_json"))
			return
		}
		smin, smax, err := s.Backend.Broadcast(r.Context(), req.N, req.B, req.CL)
		if err != nil {
			sendJSON(w, statusFor(err), errMsg(err.Error()))
			return
		}
		sendJSON(w, 200, map[string]any{"ok": true, "smin": smin, "smax": smax})
	}))
	mux.HandleFunc("/api/v1/flux", s.wrap(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		source := q.Get("source")
		if source == "" {
			sendJSON(w, 400, errMsg("missing source"))
			return
		}
		freq, err := strconv.ParseFloat(q.Get("freq"), 64)
		if err != nil {
			sendJSON(w, 400, errMsg("freq must be a number (MHz)"))
			return
		}
		var year *float64
		if ys := q.Get("year"); ys != "" {
			y, err := strconv.ParseFloat(ys, 64)
			if err != nil {
				sendJSON(w, 400, errMsg("year must be a number"))
				return
			}
			year = &y
		}
		flux, err := s.Backend.Flux(source, freq, year)
		if err != nil {
			sendJSON(w, statusFor(err), errMsg(err.Error()))
			return
		}
		sendJSON(w, 200, map[string]any{"ok": true, "flux": flux})
	}))
	mux.HandleFunc("/api/v1/sources", s.wrap(func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, 200, map[string]any{"ok": true, "sources": s.Backend.Sources()})
	}))
	return mux
}

func (s *Server) wrap(h func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.reqInFlight.Add(1)
		defer s.reqInFlight.Add(-1)
		h(w, r)
	}
}

// InFlight is the number of API requests currently being served.
func (s *Server) InFlight() int64 { return s.reqInFlight.Load() }

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, calmodels.ErrUnknownSource):
		return 404
	case errors.Is(err, stats.ErrConvergence):
		return 422
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 503
	default:
		return 400
	}
}

func sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func errMsg(m string) map[string]any { return map[string]any{"ok": false, "error": m} }

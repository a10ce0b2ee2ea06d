package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/catherinezucker/pwpy/internal/engine"
	"github.com/catherinezucker/pwpy/pkg/api"
	"github.com/catherinezucker/pwpy/pkg/calmodels"
	"github.com/catherinezucker/pwpy/pkg/config"
	"github.com/catherinezucker/pwpy/pkg/logger"
	"github.com/catherinezucker/pwpy/pkg/metrics"
	"github.com/spf13/cobra"
)

type app struct {
	cfgPath string
	cfg     *config.Config
	log     *logger.Logger
	eng     *engine.Engine
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("config_load_error: %w", err)
	}
	a.cfg = cfg
	a.log = logger.New(cfg.Service.LogLevel)
	a.eng, err = engine.New(cfg, a.log)
	return err
}

// NewRootCmd builds the pwpy command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "pwpy",
		Short:         "Poisson source-rate confidence intervals and calibrator fluxes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config path (yaml)")

	root.AddCommand(intervalCmd(a))
	root.AddCommand(fluxCmd(a))
	root.AddCommand(serveCmd(a))
	return root
}

func parseFloats(names []string, args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse %s %q: %w", names[i], s, err)
		}
		out[i] = v
	}
	return out, nil
}

func intervalCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interval N B CL",
		Short: "Print the KBN confidence interval Smin Smax on the source rate",
		Long: `Given N observed events, B expected background events and a confidence
level CL in (0, 1), print the shortest Bayesian interval on the source rate
(Kraft, Burrows & Nousek 1991).`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseFloats([]string{"N", "B", "CL"}, args)
			if err != nil {
				return err
			}
			r, err := a.eng.Interval(v[0], v[1], v[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%g %g\n", r.Smin, r.Smax)
			return nil
		},
	}
}

func fluxCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flux SOURCE FREQ [YEAR]",
		Short: "Print the flux in Jy of a calibrator at FREQ MHz",
		Long: `Prints the flux in Jy of the specified calibrator at the specified
frequency in MHz (e.g. 1420). YEAR is the decimal year of the observation
(e.g. 2007.8) and is only accepted, and required, for CasA.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			isCasA := source == calmodels.CasAName
			if isCasA != (len(args) == 3) {
				if isCasA {
					return fmt.Errorf("%s needs the observation year", source)
				}
				return fmt.Errorf("year is only used for %s", calmodels.CasAName)
			}
			v, err := parseFloats([]string{"frequency", "year"}, args[1:])
			if err != nil {
				return err
			}
			var year *float64
			if len(v) == 2 {
				year = &v[1]
			}
			f, err := a.eng.Flux(source, v[0], year)
			if err != nil {
				return fmt.Errorf("error finding flux of %s at %f MHz: %w", source, v[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%g\n", f)
			return nil
		},
	}
}

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics.MustRegister()
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			srv := api.New(a.eng, a.cfg.Service.MetricsPath, a.cfg.Service.HealthzPath)
			srv.MaxBodyBytes = a.cfg.BroadcastBodyLimit()
			a.log.Info("api_listen", "addr", a.cfg.Service.HTTPListen)
			err := srv.Start(ctx, a.cfg.Service.HTTPListen)
			a.log.Info("api_stopped")
			_ = a.log.Sync()
			return err
		},
	}
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

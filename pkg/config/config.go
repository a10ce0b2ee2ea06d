package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type ServiceCfg struct {
	HTTPListen  string `yaml:"http_listen" validate:"required"`
	MetricsPath string `yaml:"metrics_path" validate:"required,startswith=/"`
	HealthzPath string `yaml:"healthz_path" validate:"required,startswith=/"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

type SolverCfg struct {
	Tolerance     float64 `yaml:"tolerance" validate:"gt=0,lt=1"`
	MaxIterations int     `yaml:"max_iterations" validate:"gt=0"`
	QuadOrder     int     `yaml:"quad_order" validate:"gte=2,lte=200"`
	MaxCount      int     `yaml:"max_count" validate:"gt=0"`
}

type BroadcastCfg struct {
	Concurrency int `yaml:"concurrency" validate:"gte=0"`
	MaxElements int `yaml:"max_elements" validate:"gt=0"`
}

type VLASource struct {
	Name  string  `yaml:"name" validate:"required"`
	LBand float64 `yaml:"lband_jy" validate:"gt=0"`
	CBand float64 `yaml:"cband_jy" validate:"gt=0"`
}

type FluxCfg struct {
	CasAYear   float64     `yaml:"casa_year" validate:"gte=0"` // 0 leaves Cas A out of the table
	VLASources []VLASource `yaml:"vla_sources" validate:"dive"`
}

type Config struct {
	Service   ServiceCfg   `yaml:"service"`
	Solver    SolverCfg    `yaml:"solver"`
	Broadcast BroadcastCfg `yaml:"broadcast"`
	Flux      FluxCfg      `yaml:"flux"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Service: ServiceCfg{
			HTTPListen:  ":8080",
			MetricsPath: "/metrics",
			HealthzPath: "/healthz",
			LogLevel:    "info",
		},
		Solver: SolverCfg{
			Tolerance:     1e-6,
			MaxIterations: 1_000_000,
			QuadOrder:     20,
			MaxCount:      1_000_000,
		},
		Broadcast: BroadcastCfg{
			Concurrency: runtime.GOMAXPROCS(0),
			MaxElements: 100_000,
		},
	}
}

// Load reads path over the defaults. An empty path yields Default().
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if c.Broadcast.Concurrency <= 0 {
		c.Broadcast.Concurrency = runtime.GOMAXPROCS(0)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// bytesPerElement bounds the JSON text of one number plus its separator.
const bytesPerElement = 32

// BroadcastBodyLimit is the largest broadcast request body accepted: three
// arrays of MaxElements numbers plus room for shapes and keys.
func (c *Config) BroadcastBodyLimit() int64 {
	return 3*int64(c.Broadcast.MaxElements)*bytesPerElement + 4096
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Package config loads hydronet settings from a TOML file, an optional
// .env file and HYDRONET_* environment variables, in that order of
// precedence (environment wins), and validates them with struct tags.
//
// Zero configuration is valid: Default mirrors the library defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/katalvlaran/hydronet/formulation"
	"github.com/katalvlaran/hydronet/milp"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HYDRONET_"

// Sentinel errors.
var (
	ErrRead    = errors.New("config: cannot read file")
	ErrUnknown = errors.New("config: unknown keys")
	ErrInvalid = errors.New("config: invalid value")
	ErrBadEnv  = errors.New("config: bad environment override")
)

// Duration is a time.Duration read from strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v

	return nil
}

// MarshalText renders the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Solver configures the reference branch-and-bound backend.
type Solver struct {
	MaxNodes  int      `toml:"max_nodes" validate:"gte=1"`
	MIPGap    float64  `toml:"mip_gap" validate:"gte=0,lt=1"`
	Tolerance float64  `toml:"tolerance" validate:"gt=0,lt=1"`
	TimeLimit Duration `toml:"time_limit"`
}

// Weights holds the objective weights of both modes.
type Weights struct {
	Proportional formulation.Weights `toml:"proportional"`
	Absolute     formulation.Weights `toml:"absolute"`
}

// Model configures formulation choices.
type Model struct {
	GateMinFlow bool `toml:"gate_min_flow"`
	Analyze     bool `toml:"analyze"`
}

// Server configures the HTTP API.
type Server struct {
	Addr         string   `toml:"addr" validate:"required,hostname_port"`
	Mode         string   `toml:"mode" validate:"oneof=debug release test"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
	SolveTimeout Duration `toml:"solve_timeout"`
	MaxBodyBytes int64    `toml:"max_body_bytes" validate:"gte=1024"`
}

// Runner sizes the async worker pool.
type Runner struct {
	Workers int `toml:"workers" validate:"gte=0,lte=1024"`
}

// Log configures slog output.
type Log struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// Config is the full configuration tree.
type Config struct {
	Solver  Solver  `toml:"solver"`
	Weights Weights `toml:"weights"`
	Model   Model   `toml:"model"`
	Server  Server  `toml:"server"`
	Runner  Runner  `toml:"runner"`
	Log     Log     `toml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Solver: Solver{
			MaxNodes:  milp.DefaultMaxNodes,
			MIPGap:    milp.DefaultMIPGap,
			Tolerance: milp.DefaultTolerance,
			TimeLimit: Duration{milp.DefaultTimeLimit},
		},
		Weights: Weights{
			Proportional: formulation.DefaultWeights(formulation.Proportional),
			Absolute:     formulation.DefaultWeights(formulation.Absolute),
		},
		Server: Server{
			Addr:         "127.0.0.1:8080",
			Mode:         "release",
			ReadTimeout:  Duration{10 * time.Second},
			WriteTimeout: Duration{60 * time.Second},
			SolveTimeout: Duration{30 * time.Second},
			MaxBodyBytes: 1 << 20,
		},
		Runner: Runner{Workers: 4},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load builds a Config.
//
// Steps:
//  1. Start from Default.
//  2. Load envFiles into the process environment (missing files are
//     skipped; existing variables are not overwritten).
//  3. Decode path when non-empty; keys not in Config are rejected.
//  4. Apply HYDRONET_* overrides.
//  5. Validate.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %v", ErrRead, f, err)
		}
	}

	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRead, path, err)
		}
		if und := meta.Undecoded(); len(und) > 0 {
			keys := make([]string, len(und))
			for i, k := range und {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("%w in %s: %s", ErrUnknown, path, strings.Join(keys, ", "))
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q", ErrBadEnv, EnvPrefix, key, v)
		}
		*dst = n
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q", ErrBadEnv, EnvPrefix, key, v)
		}
		*dst = b
		return nil
	}
	duration := func(key string, dst *Duration) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%w: %s%s=%q", ErrBadEnv, EnvPrefix, key, v)
		}
		return nil
	}

	str("SERVER_ADDR", &c.Server.Addr)
	str("SERVER_MODE", &c.Server.Mode)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(
		integer("SOLVER_MAX_NODES", &c.Solver.MaxNodes),
		integer("RUNNER_WORKERS", &c.Runner.Workers),
		duration("SOLVER_TIME_LIMIT", &c.Solver.TimeLimit),
		duration("SERVER_SOLVE_TIMEOUT", &c.Server.SolveTimeout),
		boolean("MODEL_GATE_MIN_FLOW", &c.Model.GateMinFlow),
		boolean("MODEL_ANALYZE", &c.Model.Analyze),
	)
}

var validate = validator.New()

// Validate checks struct tags and the constraints tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for name, d := range map[string]Duration{
		"Solver.TimeLimit":    c.Solver.TimeLimit,
		"Server.ReadTimeout":  c.Server.ReadTimeout,
		"Server.WriteTimeout": c.Server.WriteTimeout,
		"Server.SolveTimeout": c.Server.SolveTimeout,
	} {
		if d.Duration < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalid, name)
		}
	}

	return nil
}

// SolverOptions converts the solver section into backend options.
func (c *Config) SolverOptions(logger *slog.Logger) []milp.Option {
	opts := []milp.Option{
		milp.WithMaxNodes(c.Solver.MaxNodes),
		milp.WithMIPGap(c.Solver.MIPGap),
		milp.WithTolerance(c.Solver.Tolerance),
		milp.WithTimeLimit(c.Solver.TimeLimit.Duration),
	}
	if logger != nil {
		opts = append(opts, milp.WithLogger(logger))
	}

	return opts
}

// FormulationOptions converts weights and model flags.
func (c *Config) FormulationOptions() formulation.Options {
	return formulation.Options{
		Proportional: c.Weights.Proportional,
		Absolute:     c.Weights.Absolute,
		GateMinFlow:  c.Model.GateMinFlow,
	}
}

// Logger builds the slog logger described by the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}

	return slog.New(slog.NewTextHandler(w, hopts))
}

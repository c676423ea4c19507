package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/katalvlaran/hydronet/config"
	"github.com/katalvlaran/hydronet/diagnostics"
	"github.com/katalvlaran/hydronet/flow"
	"github.com/katalvlaran/hydronet/formulation"
	"github.com/katalvlaran/hydronet/milp"
	"github.com/katalvlaran/hydronet/network"
	"github.com/katalvlaran/hydronet/report"
	"github.com/katalvlaran/hydronet/server"
	"github.com/katalvlaran/hydronet/solve"
)

// Exit statuses.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type cli struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
}

// common holds the flags shared by every subcommand.
type common struct {
	configPath string
	envFile    string
	netPath    string
}

func (c *cli) flags(name string, needNetwork bool) (*flag.FlagSet, *common) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	cm := &common{}
	fs.StringVar(&cm.configPath, "config", "", "TOML configuration file")
	fs.StringVar(&cm.envFile, "env", ".env", "dotenv file with HYDRONET_* overrides")
	if needNetwork {
		fs.StringVar(&cm.netPath, "network", "", "network YAML file (required)")
	}

	return fs, cm
}

// setup loads the configuration and the logger. Logs go to stderr.
func (c *cli) setup(cm *common) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cm.configPath, cm.envFile)
	if err != nil {
		return nil, nil, err
	}

	return cfg, cfg.Logger(c.stderr), nil
}

// loadDraft reads and validates the network file.
func (c *cli) loadDraft(cm *common) (*network.Draft, error) {
	if cm.netPath == "" {
		return nil, errors.New("-network is required")
	}
	d, err := network.LoadFile(cm.netPath)
	if err != nil {
		return nil, err
	}

	return d, network.Validate(d)
}

func (c *cli) fail(err error) int {
	fmt.Fprintln(c.stderr, failStyle.Render("error: ")+err.Error())
	return exitFailure
}

// parse runs fs.Parse and maps -h to a clean exit.
func parse(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}

	return 0, true
}

func (c *cli) validate(args []string) int {
	fs, cm := c.flags("validate", true)
	if code, ok := parse(fs, args); !ok {
		return code
	}
	_, logger, err := c.setup(cm)
	if err != nil {
		return c.fail(err)
	}
	d, err := c.loadDraft(cm)
	if err != nil {
		return c.fail(err)
	}
	logger.Debug("network valid", slog.Int("nodes", len(d.Nodes)), slog.Int("arcs", len(d.Arcs)))
	fmt.Fprintln(c.stdout, okStyle.Render("valid")+" "+cm.netPath)

	return exitOK
}

func (c *cli) diagnose(args []string) int {
	fs, cm := c.flags("diagnose", true)
	if code, ok := parse(fs, args); !ok {
		return code
	}
	_, logger, err := c.setup(cm)
	if err != nil {
		return c.fail(err)
	}
	d, err := c.loadDraft(cm)
	if err != nil {
		return c.fail(err)
	}
	net, err := d.Build()
	if err != nil {
		return c.fail(err)
	}

	fmt.Fprintln(c.stdout, diagnostics.Diagnose(net))
	an, err := diagnostics.Analyze(net, flow.Options{Ctx: c.ctx, Logger: logger})
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.stdout, an.String())
	if len(diagnostics.Summarize(net).Blocking()) > 0 {
		return exitFailure
	}

	return exitOK
}

func (c *cli) solve(args []string) int {
	fs, cm := c.flags("solve", true)
	snapshot := fs.String("snapshot", "", "write a compressed run snapshot to this file")
	asJSON := fs.Bool("json", false, "print the outcome as JSON")
	only := fs.String("mode", "auto", "equity mode: auto (proportional, then absolute), proportional or absolute")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	cfg, logger, err := c.setup(cm)
	if err != nil {
		return c.fail(err)
	}
	d, err := c.loadDraft(cm)
	if err != nil {
		return c.fail(err)
	}
	net, err := d.Build()
	if err != nil {
		return c.fail(err)
	}

	ctx := c.ctx
	if t := cfg.Server.SolveTimeout.Duration; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	var (
		out    *solve.Outcome
		runErr error
	)
	if *only == "auto" {
		out, runErr = orchestrator(cfg, logger, nil).Run(ctx, net)
	} else {
		mode, err := formulation.ParseMode(*only)
		if err != nil {
			return c.fail(err)
		}
		out, runErr = single(ctx, cfg, logger, net, mode)
	}

	if *snapshot != "" && out != nil {
		if err := report.SaveFile(*snapshot, report.NewSnapshot(net, out, runErr)); err != nil {
			return c.fail(err)
		}
		logger.Info("snapshot written", slog.String("path", *snapshot))
	}

	if *asJSON && out != nil {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return c.fail(err)
		}
	}

	var agg *solve.AggregateFailure
	switch {
	case runErr == nil:
		if !*asJSON {
			fmt.Fprintln(c.stdout, renderResult(out))
			fmt.Fprint(c.stdout, renderAttempts(out))
		}
		return exitOK
	case errors.As(runErr, &agg):
		fmt.Fprintln(c.stderr, agg.Error())
		fmt.Fprintln(c.stderr)
		fmt.Fprintln(c.stderr, agg.Explain())
		return exitFailure
	default:
		return c.fail(runErr)
	}
}

func (c *cli) inspect(args []string) int {
	fs, _ := c.flags("inspect", false)
	path := fs.String("snapshot", "", "snapshot file (required)")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	if *path == "" {
		return c.fail(errors.New("-snapshot is required"))
	}
	s, err := report.LoadFile(*path)
	if err != nil {
		return c.fail(err)
	}

	fmt.Fprintf(c.stdout, "%s v%d, %s\n", titleStyle.Render("snapshot"), s.Version, s.CreatedAt.Format("2006-01-02 15:04:05Z07:00"))
	if s.Outcome == nil {
		return exitOK
	}
	fmt.Fprintln(c.stdout, s.Outcome.PreReport)
	fmt.Fprint(c.stdout, renderAttempts(s.Outcome))
	if s.Outcome.Result != nil {
		fmt.Fprintln(c.stdout, renderResult(s.Outcome))
	}
	if s.Failure != "" {
		fmt.Fprintln(c.stdout, s.Failure)
	}

	return exitOK
}

func (c *cli) serve(args []string) int {
	fs, cm := c.flags("serve", false)
	addr := fs.String("addr", "", "listen address, overrides server.addr")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	cfg, logger, err := c.setup(cm)
	if err != nil {
		return c.fail(err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	metrics := solve.NewMetrics(nil)
	orch := orchestrator(cfg, logger, metrics)
	runner, err := solve.NewRunner(orch, cfg.Runner.Workers)
	if err != nil {
		return c.fail(err)
	}
	defer runner.Release()

	srv := server.New(cfg.Server, server.Deps{
		Orchestrator: orch,
		Runner:       runner,
		Metrics:      metrics,
		Logger:       logger,
	})
	if err := srv.ListenAndServe(c.ctx); err != nil {
		return c.fail(err)
	}

	return exitOK
}

// single solves net in one mode only, without fallback. The outcome has the
// same shape as an orchestrated run.
func single(ctx context.Context, cfg *config.Config, logger *slog.Logger, net *network.Network, mode formulation.Mode) (*solve.Outcome, error) {
	out := &solve.Outcome{
		RunID:     uuid.NewString(),
		State:     solve.StateSolved,
		PreReport: diagnostics.Diagnose(net),
	}
	start := time.Now()
	res, err := formulation.Solve(ctx, net, mode, milp.NewBranchAndBound(cfg.SolverOptions(logger)...), cfg.FormulationOptions())
	att := solve.Attempt{Mode: mode, Err: err, Duration: time.Since(start)}
	if err != nil {
		att.Error = err.Error()
		out.State = solve.StateFailed
		out.Attempts = append(out.Attempts, att)
		return out, err
	}
	out.Attempts = append(out.Attempts, att)
	res.RunID = out.RunID
	out.Result = res

	return out, nil
}

// orchestrator wires the configured solver, formulation weights and metrics.
func orchestrator(cfg *config.Config, logger *slog.Logger, metrics *solve.Metrics) *solve.Orchestrator {
	solver := milp.NewBranchAndBound(cfg.SolverOptions(logger)...)

	return solve.New(solver,
		solve.WithFormulation(cfg.FormulationOptions()),
		solve.WithLogger(logger),
		solve.WithMetrics(metrics),
		solve.WithAnalysis(cfg.Model.Analyze))
}

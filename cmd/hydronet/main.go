// Command hydronet validates, diagnoses and optimizes water-distribution
// networks described in YAML, and can serve the same operations over HTTP.
//
// Usage:
//
//	hydronet validate -network net.yaml
//	hydronet diagnose -network net.yaml
//	hydronet solve    -network net.yaml [-mode auto] [-snapshot run.sz] [-json]
//	hydronet inspect  -snapshot run.sz
//	hydronet serve    [-config hydronet.toml]
//
// Every command accepts -config (TOML) and -env (dotenv file, default ".env").
// Exit status is 0 on success, 1 when the network is invalid or cannot be
// solved, and 2 on usage errors.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.3.0"

const usage = `hydronet - capacitated lossy water distribution optimizer

Usage:
  hydronet <command> [options]

Commands:
  validate   Check a network file against the input rules
  diagnose   Print the pre-solve diagnostic and structural analysis
  solve      Optimize a network (proportional equity, falling back to absolute)
  inspect    Print an archived run snapshot
  serve      Start the HTTP API
  version    Print the version

Use "hydronet <command> -h" for the options of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches args[0] and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	c := &cli{ctx: ctx, stdout: stdout, stderr: stderr}
	switch args[0] {
	case "validate":
		return c.validate(args[1:])
	case "diagnose":
		return c.diagnose(args[1:])
	case "solve":
		return c.solve(args[1:])
	case "inspect":
		return c.inspect(args[1:])
	case "serve":
		return c.serve(args[1:])
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "hydronet %s\n", version)
		return exitOK
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
}

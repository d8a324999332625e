// fixzit-agent stabilises a JavaScript/TypeScript repository: it mines git
// history, runs read-only scanners, writes report artifacts, compares them
// with a baseline and can apply the canonical-structure move plan.
//
// Commands:
//
//	fixzit-agent [--report|--apply]   run the orchestrator (same as `run`)
//	delta                             compare two aggregates
//	baseline save|push|pull|restore   manage the stored baseline
//	history                           list recorded snapshots
//	doctor                            check workspace readiness
//	watch                             re-run report mode on changes
//	waivers check                     validate the waiver file
//	version                           print version information
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajranjith/fixzit-agent/internal/apply"
	"github.com/ajranjith/fixzit-agent/internal/config"
	"github.com/ajranjith/fixzit-agent/internal/logging"
	"github.com/ajranjith/fixzit-agent/internal/orchestrator"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// Exit codes.
const (
	exitOK    = 0
	exitFail  = 1
	exitFatal = 2
)

// exitStatus carries a non-zero outcome that is not an error message, such as
// regressions found by a successful run.
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// applyFailure wraps an apply that stopped after the report was written.
type applyFailure struct{ err error }

func (e *applyFailure) Error() string { return "apply failed: " + e.err.Error() }
func (e *applyFailure) Unwrap() error { return e.err }

// configError marks a configuration that could not be loaded or validated.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	root       string
	waivers    string
	logLevel   string
	logJSON    bool
}

// app is the resolved per-invocation state.
type app struct {
	cfg   config.Config
	paths orchestrator.Paths
	log   *slog.Logger
	out   io.Writer
	// waiverExplicit is set when --waivers was given.
	waiverExplicit bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	code := exitCode(err)
	if err != nil {
		var status exitStatus
		if !errors.As(err, &status) {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		}
	}
	os.Exit(code)
}

// exitCode maps an error returned by a command to the process exit code.
// Apply failures and plan conflicts exit 1; every other error (invalid config
// or waivers, missing baseline, unreadable inputs, lock held, interrupt) is
// fatal.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var (
		status   exitStatus
		applyErr *applyFailure
		conflict *apply.ConflictError
	)
	switch {
	case errors.As(err, &status):
		return int(status)
	case errors.As(err, &applyErr), errors.As(err, &conflict):
		return exitFail
	}
	return exitFatal
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	rf := &runFlags{}
	root := &cobra.Command{
		Use:   "fixzit-agent",
		Short: "Repository stabilization agent for Next.js codebases",
		Long: `fixzit-agent scans a JavaScript/TypeScript repository for i18n gaps,
API routes without handlers, duplicate files, misplaced files and stray
console calls. It writes JSON and Markdown reports, compares them with a
baseline and can apply the canonical-structure move plan on a new branch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(stderr)
			if err != nil {
				return err
			}
			a.out = stdout
			return a.run(cmd.Context(), rf)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "config file (YAML or JSON)")
	pf.StringVar(&g.root, "root", "", "workspace root (default: paths.workspaceRoot)")
	pf.StringVar(&g.waivers, "waivers", "", "waiver file (default: <state>/waivers.json)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&g.logJSON, "log-json", false, "log as JSON")
	rf.bind(root)

	root.AddCommand(newRunCmd(g, stdout, stderr))
	root.AddCommand(newDeltaCmd(g, stdout, stderr))
	root.AddCommand(newBaselineCmd(g, stdout, stderr))
	root.AddCommand(newWatchCmd(g, stdout, stderr))
	root.AddCommand(newWaiversCmd(g, stdout, stderr))
	root.AddCommand(newHistoryCmd(g, stdout, stderr))
	root.AddCommand(newDoctorCmd(g, stdout, stderr))
	root.AddCommand(newVersionCmd(stdout))
	return root
}

// setup resolves config, paths and logger for one command.
func (g *globalFlags) setup(stderr io.Writer) (*app, error) {
	cfg, _, warnings, err := config.Resolve(config.Flags{ConfigPath: g.configPath})
	if err != nil {
		return nil, &configError{err: err}
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logJSON {
		cfg.Logging.JSON = true
	}
	log, err := logging.New(stderr, cfg.Logging)
	if err != nil {
		return nil, &configError{err: err}
	}
	for _, w := range warnings {
		fmt.Fprintf(stderr, "WARNING: %s\n", w)
	}

	paths, err := orchestrator.ResolvePaths(cfg, g.root)
	if err != nil {
		return nil, &configError{err: err}
	}
	a := &app{cfg: cfg, paths: paths, log: log}
	if g.waivers != "" {
		if a.paths.Waivers, err = absPath(g.waivers); err != nil {
			return nil, &configError{err: err}
		}
		a.waiverExplicit = true
	}
	return a, nil
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "fixzit-agent %s (built %s)\n", Version, BuildDate)
		},
	}
}

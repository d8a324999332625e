package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajranjith/fixzit-agent/internal/delta"
	"github.com/ajranjith/fixzit-agent/internal/doctor"
	"github.com/ajranjith/fixzit-agent/internal/history"
	"github.com/ajranjith/fixzit-agent/internal/orchestrator"
	"github.com/ajranjith/fixzit-agent/internal/output"
	"github.com/ajranjith/fixzit-agent/internal/storage"
	"github.com/ajranjith/fixzit-agent/internal/support"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
	"github.com/ajranjith/fixzit-agent/internal/watch"
)

type runFlags struct {
	report     bool
	apply      bool
	days       int
	reportsDir string
	baseline   string
}

func (rf *runFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&rf.report, "report", false, "scan and write reports only (default mode)")
	f.BoolVar(&rf.apply, "apply", false, "apply the move plan on a new branch after reporting")
	f.IntVar(&rf.days, "days", 0, "git lookback window in days (default: run.lookbackDays)")
	f.StringVar(&rf.reportsDir, "reports-dir", "", "reports directory (default: paths.reportsDir)")
	f.StringVar(&rf.baseline, "baseline", "", "baseline directory or aggregate.json to compare against")
	cmd.MarkFlagsMutuallyExclusive("report", "apply")
}

func newRunCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan the workspace and write reports (optionally apply the move plan)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(stderr)
			if err != nil {
				return err
			}
			a.out = stdout
			return a.run(cmd.Context(), rf)
		},
	}
	rf.bind(cmd)
	return cmd
}

func (a *app) run(ctx context.Context, rf *runFlags) error {
	mode, err := orchestrator.ParseMode(a.cfg.Run.DefaultMode)
	if err != nil {
		return &configError{err: err}
	}
	switch {
	case rf.apply:
		mode = orchestrator.ModeApply
	case rf.report:
		mode = orchestrator.ModeReport
	}
	if rf.days < 0 {
		return &configError{err: fmt.Errorf("--days must not be negative")}
	}

	opts := orchestrator.Options{
		Config:         a.cfg,
		Paths:          a.paths,
		Mode:           mode,
		Days:           rf.days,
		WaiverExplicit: a.waiverExplicit,
		Log:            a.log,
	}
	if rf.reportsDir != "" {
		if opts.Paths.Reports, err = absPath(rf.reportsDir); err != nil {
			return &configError{err: err}
		}
	}
	if rf.baseline != "" {
		if opts.Paths.Baseline, err = absPath(rf.baseline); err != nil {
			return &configError{err: err}
		}
		opts.WithBaseline = true
	}

	out, err := orchestrator.Run(ctx, opts)
	if out != nil {
		a.printOutcome(out)
	}
	if err != nil {
		if out != nil {
			return &applyFailure{err: err}
		}
		return err
	}
	if out.ExitCode != exitOK {
		return exitStatus(out.ExitCode)
	}
	return nil
}

func (a *app) printOutcome(out *orchestrator.Outcome) {
	output.PrintSummary(a.out, out.Aggregate)
	if out.Delta != nil {
		output.PrintDelta(a.out, out.Delta)
	}
	if out.Apply != nil {
		fmt.Fprintf(a.out, "\nApplied %d move(s), %d file(s) rewritten on branch %s (commit %s). Nothing was pushed.\n",
			out.Apply.Moves, out.Apply.Rewritten, out.Apply.Branch, out.Apply.Commit)
	}
	if out.Dropped > 0 {
		fmt.Fprintf(a.out, "WARNING: %d finding(s) pointed outside the snapshot and were dropped\n", out.Dropped)
	}
}

func newDeltaCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var baseline, current, outPath string
	cmd := &cobra.Command{
		Use:   "delta",
		Short: "Compare the current aggregate with a baseline (exit 0 clean, 1 regressions, 2 missing input)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(stderr)
			if err != nil {
				return err
			}
			basePath, curPath := a.paths.Baseline, a.paths.Reports
			if baseline != "" {
				if basePath, err = absPath(baseline); err != nil {
					return &configError{err: err}
				}
			}
			if current != "" {
				if curPath, err = absPath(current); err != nil {
					return &configError{err: err}
				}
			}
			base, err := delta.Load("baseline", basePath)
			if err != nil {
				return err
			}
			cur, err := delta.Load("current", curPath)
			if err != nil {
				return err
			}
			res := delta.Compare(base, cur)
			res.Baseline = basePath
			output.PrintDelta(stdout, res)
			if outPath != "" {
				if err := support.WriteJSONAtomic(outPath, res); err != nil {
					return err
				}
			}
			entry := support.AuditEntry{
				RunID:       cur.RunID,
				Operation:   "delta",
				Findings:    cur.Totals.Findings,
				Failing:     cur.Totals.Failing,
				Regressions: len(res.Regressions),
				Result:      "PASS",
			}
			if res.ExitCode() != delta.ExitClean {
				entry.Result = "FAIL"
			}
			if err := support.AppendAudit(a.paths.State, entry); err != nil {
				a.log.Warn("audit log not written", "error", err)
			}
			if code := res.ExitCode(); code != delta.ExitClean {
				return exitStatus(code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseline, "baseline", "", "baseline directory or aggregate.json (default: paths.baselineDir)")
	cmd.Flags().StringVar(&current, "current", "", "current directory or aggregate.json (default: paths.reportsDir)")
	cmd.Flags().StringVar(&outPath, "out", "", "also write the delta as JSON to this file")
	return cmd
}

func newBaselineCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage the stored baseline",
	}
	var reportsDir, baselineDir string
	dirs := func(a *app) (string, string, error) {
		reports, base := a.paths.Reports, a.paths.Baseline
		var err error
		if reportsDir != "" {
			if reports, err = absPath(reportsDir); err != nil {
				return "", "", err
			}
		}
		if baselineDir != "" {
			if base, err = absPath(baselineDir); err != nil {
				return "", "", err
			}
		}
		return reports, base, nil
	}
	cmd.PersistentFlags().StringVar(&reportsDir, "reports-dir", "", "reports directory (default: paths.reportsDir)")
	cmd.PersistentFlags().StringVar(&baselineDir, "baseline-dir", "", "baseline directory (default: paths.baselineDir)")

	save := &cobra.Command{
		Use:   "save",
		Short: "Copy the latest reports into the baseline directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(stderr)
			if err != nil {
				return err
			}
			reports, base, err := dirs(a)
			if err != nil {
				return &configError{err: err}
			}
			n, err := storage.SaveBaseline(reports, base)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Saved %d artifact(s) from %s to %s\n", n, reports, base)
			a.audit("baseline-save")
			return nil
		},
	}
	push := &cobra.Command{
		Use:   "push",
		Short: "Upload the baseline to the configured bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(stderr)
			if err != nil {
				return err
			}
			_, base, err := dirs(a)
			if err != nil {
				return &configError{err: err}
			}
			remote, err := storage.NewRemote(a.cfg.Storage)
			if err != nil {
				return &configError{err: err}
			}
			keys, err := remote.Push(cmd.Context(), base)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintf(stdout, "uploaded s3://%s/%s\n", a.cfg.Storage.Bucket, k)
			}
			a.audit("baseline-push")
			return nil
		},
	}
	pull := &cobra.Command{
		Use:   "pull",
		Short: "Download the baseline from the configured bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(stderr)
			if err != nil {
				return err
			}
			_, base, err := dirs(a)
			if err != nil {
				return &configError{err: err}
			}
			remote, err := storage.NewRemote(a.cfg.Storage)
			if err != nil {
				return &configError{err: err}
			}
			got, err := remote.Pull(cmd.Context(), base)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Downloaded %d artifact(s) into %s\n", len(got), base)
			a.audit("baseline-pull")
			return nil
		},
	}
	var to string
	restore := &cobra.Command{
		Use:   "restore",
		Short: "Replace the baseline aggregate with a history snapshot (default: newest passing)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(stderr)
			if err != nil {
				return err
			}
			_, base, err := dirs(a)
			if err != nil {
				return &configError{err: err}
			}
			snap, err := storage.RestoreBaseline(a.paths.State, to, base)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Restored %s into %s\n", snap.Name, base)
			a.audit("baseline-restore")
			return nil
		},
	}
	restore.Flags().StringVar(&to, "to", "", "snapshot name from `fixzit-agent history`")
	cmd.AddCommand(save, push, pull, restore)
	return cmd
}

func newHistoryCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded aggregate snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(stderr)
			if err != nil {
				return err
			}
			snaps, err := history.List(a.paths.State)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(snaps))
			for _, s := range snaps {
				result := "FAIL"
				if s.Pass {
					result = "PASS"
				}
				rows = append(rows, []string{s.Name, s.Time.Format(time.DateTime), s.SHA, result})
			}
			output.PrintSnapshots(stdout, rows)
			return nil
		},
	}
}

func newDoctorCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the workspace has what a run needs (exit 1 when degraded)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(stderr)
			if err != nil {
				return err
			}
			rep := doctor.Run(cmd.Context(), a.cfg, a.paths)
			if asJSON {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(rep.Checks))
				for _, c := range rep.Checks {
					rows = append(rows, []string{c.Name, string(c.Level), c.Detail})
				}
				output.PrintChecks(stdout, rep.Status, rows)
			}
			if rep.Status != doctor.StatusOK {
				return exitStatus(exitFail)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

// audit records a successful baseline operation.
func (a *app) audit(op string) {
	if err := support.AppendAudit(a.paths.State, support.AuditEntry{Operation: op, Result: "PASS"}); err != nil {
		a.log.Warn("audit log not written", "error", err)
	}
}

func newWatchCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run report mode whenever the workspace changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(stderr)
			if err != nil {
				return err
			}
			a.out = stdout
			runOnce := func(ctx context.Context) error {
				out, err := orchestrator.Run(ctx, orchestrator.Options{
					Config:         a.cfg,
					Paths:          a.paths,
					Mode:           orchestrator.ModeReport,
					Days:           days,
					WaiverExplicit: a.waiverExplicit,
					Log:            a.log,
				})
				if err != nil {
					return err
				}
				a.printOutcome(out)
				return nil
			}
			trigger := func(ctx context.Context) {
				if err := runOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
					fmt.Fprintf(stderr, "ERROR: %v\n", err)
				}
			}
			// Broken inputs at startup are fatal; later runs only report them.
			if err := runOnce(cmd.Context()); err != nil {
				return err
			}
			return watch.Run(cmd.Context(), watch.Options{
				Root:        a.paths.Root,
				ExcludeDirs: a.paths.ExcludeDirs(a.cfg.Scan.ExcludeDirs),
				Debounce:    watch.DefaultDebounce,
				Skip:        func() bool { return orchestrator.Locked(a.paths.State) },
				Trigger:     trigger,
				Log:         a.log,
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "git lookback window in days (default: run.lookbackDays)")
	return cmd
}

func newWaiversCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waivers",
		Short: "Inspect the waiver file",
	}
	check := &cobra.Command{
		Use:   "check",
		Short: "Validate the waiver file and print entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.setup(stderr)
			if err != nil {
				return err
			}
			set, err := waiver.Load(a.paths.Waivers, a.waiverExplicit)
			if err != nil {
				return err
			}
			if _, statErr := os.Stat(a.paths.Waivers); errors.Is(statErr, fs.ErrNotExist) {
				fmt.Fprintf(stdout, "No waiver file at %s; every finding is reported.\n", a.paths.Waivers)
				return nil
			}
			order := append(append([]string(nil), waiver.Categories...), "waivers")
			output.PrintWaiverCounts(stdout, a.paths.Waivers, set.Counts(), order)
			return nil
		},
	}
	cmd.AddCommand(check)
	return cmd
}

func absPath(p string) (string, error) {
	return filepath.Abs(p)
}

// Package orchestrator runs one stabilization pass: preflight, git mining,
// concurrent scanners, artifacts, the optional delta and the optional apply.
package orchestrator

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajranjith/fixzit-agent/internal/apply"
	"github.com/ajranjith/fixzit-agent/internal/config"
	"github.com/ajranjith/fixzit-agent/internal/delta"
	"github.com/ajranjith/fixzit-agent/internal/gitlog"
	"github.com/ajranjith/fixzit-agent/internal/logging"
	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/scan"
	"github.com/ajranjith/fixzit-agent/internal/support"
	"github.com/ajranjith/fixzit-agent/internal/tree"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

type Mode string

const (
	ModeReport Mode = "report"
	ModeApply  Mode = "apply"
)

// ParseMode accepts "report" or "apply".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReport, ModeApply:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (expected report or apply)", s)
}

// InputError is a preflight failure. Nothing has been scanned or written.
type InputError struct {
	What string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %v", e.What, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

type Options struct {
	Config config.Config
	Paths  Paths
	Mode   Mode
	Days   int
	// WithBaseline enables the delta against Paths.Baseline. A missing
	// baseline is then an input error.
	WithBaseline   bool
	WaiverExplicit bool
	Log            *slog.Logger
	Now            func() time.Time
}

// Outcome is everything a run produced. ExitCode follows the CLI contract:
// 0 clean, 1 regressions or failing findings or failed sections.
type Outcome struct {
	Aggregate *model.Aggregate
	Delta     *delta.Result
	Changeset *apply.Changeset
	Apply     *apply.Result
	Manifest  *support.Manifest
	Artifacts []string
	Dropped   int
	ExitCode  int
}

// preflight holds the read-only inputs shared by every scanner.
type preflight struct {
	waivers  waiver.Set
	catalogs []*scan.Catalog
	snap     *tree.Snapshot
	baseline *model.Aggregate
	key      ed25519.PrivateKey
}

// Run executes one pass. A returned error without an Outcome is fatal; apply
// failures return both so the caller can still print the report.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	log := logging.OrDiscard(opts.Log)
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	cfg := opts.Config
	if opts.Mode == "" {
		opts.Mode = ModeReport
	}
	if opts.Days <= 0 {
		opts.Days = cfg.Run.LookbackDays
	}

	release, err := shareTree(opts.Paths.State)
	if err != nil {
		return nil, err
	}
	pre, err := prepare(ctx, opts, log)
	if err != nil {
		release()
		return nil, err
	}
	log.Info("preflight complete",
		"files", pre.snap.Len(),
		"waivers", pre.waivers.Counts(),
		"catalogs", len(pre.catalogs),
	)

	git := gitlog.Mine(ctx, opts.Paths.Root, opts.Days, cfg.Run.TopFiles)
	if !git.Available {
		log.Warn("git history unavailable", "root", opts.Paths.Root)
	}

	reports, err := runScanners(ctx, pre, cfg.Scan, cfg.Apply.Aliases, log, now)
	release()
	if err != nil {
		return nil, err
	}

	agg := &model.Aggregate{
		RunID:       uuid.NewString(),
		GeneratedAt: model.Stamp(now()),
		Mode:        string(opts.Mode),
		Root:        opts.Paths.Root,
		Git:         git,
		Scanners:    reports,
		MovePlan:    model.MovePlan{},
	}
	out := &Outcome{Aggregate: agg}
	out.Dropped = dropUnknownPaths(agg, pre.snap, log)
	agg.MovePlan = movePlan(agg, log)
	agg.Recount()

	if pre.baseline != nil {
		out.Delta = delta.Compare(pre.baseline, agg)
		out.Delta.Baseline = opts.Paths.Baseline
		log.Info("delta computed",
			"regressions", len(out.Delta.Regressions),
			"improvements", len(out.Delta.Improvements),
			"incomplete", out.Delta.Incomplete,
		)
	}
	out.ExitCode = exitCode(agg, out.Delta)

	if err := writeArtifacts(opts.Paths, agg, out, pre.key, now()); err != nil {
		return nil, fmt.Errorf("write artifacts: %w", err)
	}
	if err := recordHistory(ctx, opts, agg, out.ExitCode == 0, now()); err != nil {
		log.Warn("history snapshot not written", "error", err)
	}
	audit := support.AuditEntry{
		RunID:     agg.RunID,
		Operation: "run",
		Mode:      agg.Mode,
		Findings:  agg.Totals.Findings,
		Failing:   agg.Totals.Failing,
		Moves:     len(agg.MovePlan),
		Result:    resultLabel(out.ExitCode),
	}
	if out.Delta != nil {
		audit.Regressions = len(out.Delta.Regressions)
	}
	if out.Manifest != nil {
		audit.ManifestSHA = manifestDigest(opts.Paths.Reports)
	}
	if err := support.AppendAudit(opts.Paths.State, audit); err != nil {
		log.Warn("audit log not written", "error", err)
	}

	if opts.Mode == ModeApply {
		if err := applyPlan(ctx, opts, pre, out, log); err != nil {
			_ = support.AppendAudit(opts.Paths.State, support.AuditEntry{
				RunID: agg.RunID, Operation: "apply", Moves: len(agg.MovePlan),
				Result: "FAIL", Error: err.Error(),
			})
			return out, err
		}
	}
	return out, nil
}

func prepare(ctx context.Context, opts Options, log *slog.Logger) (*preflight, error) {
	cfg := opts.Config
	pre := &preflight{}

	ws, err := waiver.Load(opts.Paths.Waivers, opts.WaiverExplicit)
	if err != nil {
		return nil, err
	}
	pre.waivers = ws

	if enabled(cfg.Scan.Scanners, "i18n") {
		cats, err := scan.LoadCatalogs(opts.Paths.Root, cfg.Scan.I18n.Catalogs)
		if err != nil {
			return nil, &InputError{What: "i18n catalogs", Err: err}
		}
		pre.catalogs = cats
	}

	snap, err := tree.Build(ctx, opts.Paths.Root, tree.Options{
		ExcludeDirs:  opts.Paths.ExcludeDirs(cfg.Scan.ExcludeDirs),
		MaxFileBytes: cfg.Scan.MaxFileBytes,
		Workers:      cfg.Run.Concurrency,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &InputError{What: "workspace", Err: err}
	}
	pre.snap = snap
	log.Debug("tree snapshot built", "root", snap.Root, "files", snap.Len())

	if opts.WithBaseline {
		base, err := delta.Load("baseline", opts.Paths.Baseline)
		if err != nil {
			return nil, err
		}
		pre.baseline = base
	}

	key, err := support.LoadSigningKey(cfg.Signing.KeyPath)
	if err != nil {
		return nil, &InputError{What: "signing key", Err: err}
	}
	pre.key = key
	return pre, nil
}

// runScanners runs every configured scanner in its own goroutine. A scanner
// that errors or panics yields a failed section; the others are unaffected.
func runScanners(ctx context.Context, pre *preflight, cfg config.ScanConfig, aliases map[string]string, log *slog.Logger, now func() time.Time) (map[string]*model.ScanReport, error) {
	scanners, err := scan.New(cfg.Scanners)
	if err != nil {
		return nil, &InputError{What: "scanners", Err: err}
	}
	in := scan.Input{
		Tree:     pre.snap,
		Waivers:  pre.waivers,
		Config:   cfg,
		Catalogs: pre.catalogs,
		Aliases:  aliases,
		Log:      log,
	}
	results := make([]*model.ScanReport, len(scanners))
	var wg sync.WaitGroup
	for i, s := range scanners {
		wg.Add(1)
		go func(i int, s scan.Scanner) {
			defer wg.Done()
			results[i] = runOne(ctx, s, in, log, now)
		}(i, s)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]*model.ScanReport, len(scanners))
	for i, s := range scanners {
		out[s.Name()] = results[i]
	}
	return out, nil
}

func runOne(ctx context.Context, s scan.Scanner, in scan.Input, log *slog.Logger, now func() time.Time) (rep *model.ScanReport) {
	start := time.Now()
	name := s.Name()
	defer func() {
		if r := recover(); r != nil {
			log.Error("scanner panicked", "scanner", name, "panic", r)
			rep = model.FailedReport(name, fmt.Errorf("panic: %v", r))
		}
		rep.ScannerName = name
		rep.Timestamp = model.Stamp(now())
		log.Info("scanner finished",
			"scanner", name,
			"status", rep.Status,
			"findings", len(rep.Findings),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}()
	rep, err := s.Scan(ctx, in)
	if err != nil {
		log.Error("scanner failed", "scanner", name, "error", err)
		return model.FailedReport(name, err)
	}
	if rep == nil {
		return model.FailedReport(name, errors.New("scanner returned no report"))
	}
	return rep
}

// dropUnknownPaths enforces that every finding points at a file of the
// snapshot. Offending findings are logged and removed.
func dropUnknownPaths(agg *model.Aggregate, snap *tree.Snapshot, log *slog.Logger) int {
	dropped := 0
	for _, name := range agg.ScannerNames() {
		rep := agg.Scanners[name]
		kept := rep.Findings[:0]
		for _, f := range rep.Findings {
			if snap.Has(f.FilePath) {
				kept = append(kept, f)
				continue
			}
			dropped++
			log.Warn("dropping finding for path outside the snapshot", "scanner", name, "finding", f.String())
		}
		if len(kept) != len(rep.Findings) {
			rep.Findings = kept
			rep.SummaryCounts = model.CountBySeverity(kept)
		}
	}
	return dropped
}

func movePlan(agg *model.Aggregate, log *slog.Logger) model.MovePlan {
	rep, ok := agg.Scanners["structure"]
	if !ok {
		return model.MovePlan{}
	}
	details, ok := rep.Details.(*scan.StructureDetails)
	if rep.Status == model.StatusFailed || !ok || !details.Ran {
		log.Warn("structure checker failed; no move plan", "error", rep.Error)
		return model.MovePlan{}
	}
	if len(details.Plan) == 0 {
		log.Info("compliant: empty move plan", "checked", details.Checked)
		return model.MovePlan{}
	}
	log.Info("move plan proposed", "moves", len(details.Plan))
	return details.Plan
}

func exitCode(agg *model.Aggregate, res *delta.Result) int {
	if len(agg.Totals.FailedScanners) > 0 {
		return 1
	}
	if res != nil {
		return res.ExitCode()
	}
	if agg.Totals.Failing > 0 {
		return 1
	}
	return 0
}

func resultLabel(code int) string {
	if code == 0 {
		return "PASS"
	}
	return "FAIL"
}

func applyPlan(ctx context.Context, opts Options, pre *preflight, out *Outcome, log *slog.Logger) error {
	agg := out.Aggregate
	if rep, ok := agg.Scanners["structure"]; !ok || rep.Status == model.StatusFailed {
		return errors.New("apply needs a successful structure section")
	}
	if len(agg.MovePlan) == 0 {
		log.Info("nothing to apply: tree is compliant")
		return nil
	}
	cs, err := apply.Prepare(ctx, pre.snap, agg.MovePlan, pre.waivers, opts.Config.Scan, opts.Config.Apply)
	if err != nil {
		return err
	}
	out.Changeset = cs
	log.Info("apply prepared", "moves", len(cs.Moves), "importEdits", len(cs.Edits), "files", len(cs.Rewrites))

	release, err := lockTree(opts.Paths.State)
	if err != nil {
		return err
	}
	defer release()
	res, err := apply.Execute(ctx, opts.Paths.Root, cs, apply.Options{
		BranchPrefix:  opts.Config.Apply.BranchPrefix,
		CommitMessage: opts.Config.Apply.CommitMessage,
		Now:           opts.Now,
	})
	if err != nil {
		return err
	}
	out.Apply = res
	log.Info("apply committed", "branch", res.Branch, "commit", res.Commit)
	if err := writeApplyRecord(opts.Paths.Reports, cs, res); err != nil {
		log.Warn("apply record not written", "error", err)
	}
	return support.AppendAudit(opts.Paths.State, support.AuditEntry{
		RunID:     agg.RunID,
		Operation: "apply",
		Mode:      string(ModeApply),
		Moves:     res.Moves,
		Branch:    res.Branch,
		Commit:    res.Commit,
		Result:    "PASS",
	})
}

func enabled(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

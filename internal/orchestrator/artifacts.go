package orchestrator

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ajranjith/fixzit-agent/internal/apply"
	"github.com/ajranjith/fixzit-agent/internal/delta"
	"github.com/ajranjith/fixzit-agent/internal/gitlog"
	"github.com/ajranjith/fixzit-agent/internal/history"
	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/output"
	"github.com/ajranjith/fixzit-agent/internal/support"
)

// Artifact names inside the reports dir.
const (
	MovePlanFile = "move-plan.json"
	SummaryFile  = "summary.md"
	DeltaFile    = "delta.json"
	ManifestFile = "manifest.json"
	ApplyFile    = "apply.json"
)

// writeArtifacts overwrites the report set of this run. The manifest is
// written last and covers every other artifact.
func writeArtifacts(p Paths, agg *model.Aggregate, out *Outcome, key ed25519.PrivateKey, now time.Time) error {
	var names []string
	write := func(name string, v any) error {
		if err := support.WriteJSONAtomic(filepath.Join(p.Reports, name), v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		names = append(names, name)
		return nil
	}

	for _, name := range sortedKeys(agg.Scanners) {
		if err := write(name+".json", agg.Scanners[name]); err != nil {
			return err
		}
	}
	if err := write(delta.AggregateFile, agg); err != nil {
		return err
	}
	if err := write(MovePlanFile, agg.MovePlan); err != nil {
		return err
	}
	if out.Delta != nil {
		if err := write(DeltaFile, out.Delta); err != nil {
			return err
		}
	} else if err := os.Remove(filepath.Join(p.Reports, DeltaFile)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := support.WriteFileAtomic(filepath.Join(p.Reports, SummaryFile), output.Markdown(agg, out.Delta)); err != nil {
		return fmt.Errorf("%s: %w", SummaryFile, err)
	}
	names = append(names, SummaryFile)

	m, err := support.BuildManifest(p.Reports, names, agg.RunID, model.Stamp(now), out.ExitCode == 0)
	if err != nil {
		return err
	}
	if key != nil {
		if err := support.SignManifest(m, key); err != nil {
			return fmt.Errorf("sign manifest: %w", err)
		}
	}
	if err := support.WriteJSONAtomic(filepath.Join(p.Reports, ManifestFile), m); err != nil {
		return fmt.Errorf("%s: %w", ManifestFile, err)
	}
	out.Manifest = m
	out.Artifacts = append(names, ManifestFile)
	return nil
}

func manifestDigest(reportsDir string) string {
	sum, err := support.HashFile(filepath.Join(reportsDir, ManifestFile))
	if err != nil {
		return ""
	}
	return sum
}

// recordHistory keeps a copy of the aggregate under <state>/history and
// rotates old snapshots.
func recordHistory(ctx context.Context, opts Options, agg *model.Aggregate, pass bool, now time.Time) error {
	data, err := support.MarshalJSON(agg)
	if err != nil {
		return err
	}
	sha := gitlog.Repo{Dir: opts.Paths.Root}.ShortSHA(ctx)
	if _, err := history.Write(opts.Paths.State, data, sha, pass, now); err != nil {
		return err
	}
	_, err = history.Rotate(opts.Paths.State, opts.Config.History.KeepDays, opts.Config.History.MaxSnapshots, now)
	return err
}

type applyRecord struct {
	Changeset *apply.Changeset `json:"changeset"`
	Result    *apply.Result    `json:"result"`
}

func writeApplyRecord(reportsDir string, cs *apply.Changeset, res *apply.Result) error {
	return support.WriteJSONAtomic(filepath.Join(reportsDir, ApplyFile), applyRecord{Changeset: cs, Result: res})
}

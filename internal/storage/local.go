// Package storage persists baselines locally and in an S3-compatible bucket.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ajranjith/fixzit-agent/internal/delta"
	"github.com/ajranjith/fixzit-agent/internal/history"
	"github.com/ajranjith/fixzit-agent/internal/support"
)

// SaveBaseline copies the artifacts of reportsDir into baselineDir. The
// reports must contain a readable aggregate so a saved baseline is always
// usable by delta.
func SaveBaseline(reportsDir, baselineDir string) (int, error) {
	if _, err := delta.Load("current", reportsDir); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(baselineDir, 0o755); err != nil {
		return 0, fmt.Errorf("create baseline dir: %w", err)
	}
	n, err := support.CopyDir(reportsDir, baselineDir)
	if err != nil {
		return n, fmt.Errorf("copy %s to %s: %w", reportsDir, baselineDir, err)
	}
	return n, nil
}

// baselineFiles are the artifacts exchanged with remote storage. Only the
// aggregate is required.
var baselineFiles = []string{delta.AggregateFile, "manifest.json", "summary.md"}

func existing(dir string) []string {
	var out []string
	for _, name := range baselineFiles {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && info.Mode().IsRegular() {
			out = append(out, name)
		}
	}
	return out
}

// RestoreBaseline replaces the baseline aggregate with a history snapshot:
// the named one, or the newest passing one when name is empty.
func RestoreBaseline(stateDir, name, baselineDir string) (history.Snapshot, error) {
	snap, err := history.Find(stateDir, name)
	if err != nil {
		return history.Snapshot{}, err
	}
	src := history.Path(stateDir, snap)
	if _, err := delta.Load("snapshot", src); err != nil {
		return history.Snapshot{}, err
	}
	if err := support.CopyFileAtomic(src, filepath.Join(baselineDir, delta.AggregateFile)); err != nil {
		return history.Snapshot{}, fmt.Errorf("restore %s: %w", snap.Name, err)
	}
	return snap, nil
}

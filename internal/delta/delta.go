// Package delta compares a run's aggregate against a stored baseline.
package delta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/support"
)

// Exit codes of a delta check.
const (
	ExitClean       = 0
	ExitRegressions = 1
	ExitArtifact    = 2
)

// AggregateFile is the artifact name inside a reports or baseline directory.
const AggregateFile = "aggregate.json"

// ArtifactError means the baseline or current aggregate is missing or
// unreadable. It is never the same outcome as "no regressions".
type ArtifactError struct {
	Role string
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("%s aggregate %s: %v", e.Role, e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// Result is the outcome of Compare.
type Result struct {
	Baseline     string          `json:"baseline"`
	BaselineRun  string          `json:"baselineRunId"`
	CurrentRun   string          `json:"currentRunId"`
	Regressions  []model.Finding `json:"regressions"`
	Improvements []model.Finding `json:"improvements"`
	// Incomplete lists sections that failed in either run; their missing
	// findings are not counted as improvements.
	Incomplete []string `json:"incomplete"`
	Unchanged  int      `json:"unchanged"`
}

func (r *Result) ExitCode() int {
	if len(r.Regressions) > 0 {
		return ExitRegressions
	}
	return ExitClean
}

// Load reads an aggregate from a file, or from aggregate.json inside a
// directory. role names the artifact in errors ("baseline", "current").
func Load(role, path string) (*model.Aggregate, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, AggregateFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactError{Role: role, Path: path, Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(support.StripBOM(data)))
	var agg model.Aggregate
	if err := dec.Decode(&agg); err != nil {
		return nil, &ArtifactError{Role: role, Path: path, Err: fmt.Errorf("corrupt JSON: %w", err)}
	}
	if agg.Scanners == nil {
		return nil, &ArtifactError{Role: role, Path: path, Err: fmt.Errorf("not an aggregate: no scanners section")}
	}
	for name, rep := range agg.Scanners {
		if rep == nil {
			return nil, &ArtifactError{Role: role, Path: path, Err: fmt.Errorf("scanner section %q is null", name)}
		}
	}
	return &agg, nil
}

// Compare set-differences findings by identity.
func Compare(baseline, current *model.Aggregate) *Result {
	res := &Result{
		BaselineRun:  baseline.RunID,
		CurrentRun:   current.RunID,
		Regressions:  []model.Finding{},
		Improvements: []model.Finding{},
		Incomplete:   []string{},
	}
	incomplete := map[string]bool{}
	for _, agg := range []*model.Aggregate{baseline, current} {
		for name, rep := range agg.Scanners {
			if rep.Status == model.StatusFailed {
				incomplete[name] = true
			}
		}
	}
	res.Incomplete = append(res.Incomplete, sortedNames(incomplete)...)

	prevSet := findingSet(baseline)
	currSet := findingSet(current)
	for k, f := range currSet {
		if _, ok := prevSet[k]; ok {
			res.Unchanged++
			continue
		}
		res.Regressions = append(res.Regressions, f.finding)
	}
	for k, f := range prevSet {
		if _, ok := currSet[k]; ok {
			continue
		}
		if incomplete[f.scanner] {
			continue
		}
		res.Improvements = append(res.Improvements, f.finding)
	}
	model.SortFindings(res.Regressions)
	model.SortFindings(res.Improvements)
	return res
}

type scoped struct {
	scanner string
	finding model.Finding
}

func findingSet(agg *model.Aggregate) map[string]scoped {
	m := map[string]scoped{}
	for name, rep := range agg.Scanners {
		for _, f := range rep.Findings {
			m[f.Identity()] = scoped{scanner: name, finding: f}
		}
	}
	return m
}

func sortedNames(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

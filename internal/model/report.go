package model

import (
	"sort"
	"time"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// ScanReport is the result of one scanner run.
type ScanReport struct {
	ScannerName   string           `json:"scannerName"`
	Timestamp     string           `json:"timestamp,omitempty"`
	Status        Status           `json:"status"`
	Error         string           `json:"error,omitempty"`
	Findings      []Finding        `json:"findings"`
	SummaryCounts map[Severity]int `json:"summaryCounts"`
	Details       any              `json:"details,omitempty"`
}

// NewScanReport builds a report with sorted findings and complete counts.
// Findings is never nil so an empty result serialises as [].
func NewScanReport(name string, findings []Finding, details any) *ScanReport {
	if findings == nil {
		findings = []Finding{}
	}
	SortFindings(findings)
	return &ScanReport{
		ScannerName:   name,
		Status:        StatusOK,
		Findings:      findings,
		SummaryCounts: CountBySeverity(findings),
		Details:       details,
	}
}

// FailedReport marks a scanner section that could not produce results.
func FailedReport(name string, err error) *ScanReport {
	r := NewScanReport(name, nil, nil)
	r.Status = StatusFailed
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func (r *ScanReport) Failing() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity.Failing() {
			n++
		}
	}
	return n
}

// Move is one proposed relocation, paths relative to the workspace root.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MovePlan is an ordered list of moves. An empty, non-nil plan means the tree
// is already compliant.
type MovePlan []Move

type FileChurn struct {
	Path    string `json:"path"`
	Changes int    `json:"changes"`
}

type GitSummary struct {
	Available    bool        `json:"available"`
	LookbackDays int         `json:"lookbackDays"`
	CommitCount  int         `json:"commitCount"`
	Authors      int         `json:"authors"`
	TopFiles     []FileChurn `json:"topFiles"`
	Error        string      `json:"error,omitempty"`
}

type Totals struct {
	Findings       int              `json:"findings"`
	Failing        int              `json:"failing"`
	BySeverity     map[Severity]int `json:"bySeverity"`
	FailedScanners []string         `json:"failedScanners,omitempty"`
}

// Aggregate is the consolidated artifact of one orchestrator run.
type Aggregate struct {
	RunID       string                 `json:"runId"`
	GeneratedAt string                 `json:"generatedAt"`
	Mode        string                 `json:"mode"`
	Root        string                 `json:"root"`
	Git         GitSummary             `json:"git"`
	Scanners    map[string]*ScanReport `json:"scanners"`
	MovePlan    MovePlan               `json:"movePlan"`
	Totals      Totals                 `json:"totals"`
}

// Findings flattens the findings of every scanner section.
func (a *Aggregate) Findings() []Finding {
	var out []Finding
	for _, name := range a.ScannerNames() {
		out = append(out, a.Scanners[name].Findings...)
	}
	return out
}

// ScannerNames returns section names in a stable order.
func (a *Aggregate) ScannerNames() []string {
	names := make([]string, 0, len(a.Scanners))
	for name := range a.Scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Recount refreshes Totals from the scanner sections.
func (a *Aggregate) Recount() {
	all := a.Findings()
	t := Totals{
		Findings:   len(all),
		BySeverity: CountBySeverity(all),
	}
	for _, f := range all {
		if f.Severity.Failing() {
			t.Failing++
		}
	}
	for _, name := range a.ScannerNames() {
		if a.Scanners[name].Status == StatusFailed {
			t.FailedScanners = append(t.FailedScanners, name)
		}
	}
	a.Totals = t
}

func Stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Package model holds the value types shared by the scanners, the orchestrator
// and the delta checker.
package model

import (
	"fmt"
	"sort"
	"strings"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityMajor, SeverityModerate, SeverityMinor}

// Failing reports whether findings of this severity fail a run.
// Minor findings are warnings only.
func (s Severity) Failing() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityModerate:
		return true
	default:
		return false
	}
}

func (s Severity) Valid() bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}

// Finding is one rule violation. Treat it as immutable once created.
type Finding struct {
	FilePath   string   `json:"filePath"`
	LineNumber int      `json:"lineNumber,omitempty"`
	Pattern    string   `json:"pattern"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Subject    string   `json:"subject,omitempty"`
}

// Identity is the key used to compare findings across runs.
func (f Finding) Identity() string {
	id := fmt.Sprintf("%s|%s|%d", f.FilePath, f.Pattern, f.LineNumber)
	if f.Subject != "" {
		id += "|" + f.Subject
	}
	return id
}

func (f Finding) String() string {
	loc := f.FilePath
	if f.LineNumber > 0 {
		loc = fmt.Sprintf("%s:%d", f.FilePath, f.LineNumber)
	}
	return fmt.Sprintf("%s [%s/%s] %s", loc, f.Severity, f.Pattern, f.Message)
}

// SortFindings orders findings by path, line, pattern and subject so that
// reports are byte-stable across runs.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		if a.Pattern != b.Pattern {
			return a.Pattern < b.Pattern
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return strings.Compare(a.Message, b.Message) < 0
	})
}

// CountBySeverity returns a count for every severity, zero entries included.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, s := range Severities {
		counts[s] = 0
	}
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ajranjith/fixzit-agent/internal/delta"
	"github.com/ajranjith/fixzit-agent/internal/model"
)

func sampleAggregate() *model.Aggregate {
	agg := &model.Aggregate{
		RunID:       "run-1",
		GeneratedAt: "2026-01-01T00:00:00Z",
		Mode:        "report",
		Root:        "/repo",
		Git:         model.GitSummary{Available: true, LookbackDays: 14, CommitCount: 3, Authors: 2, TopFiles: []model.FileChurn{{Path: "lib/a.ts", Changes: 2}}},
		Scanners: map[string]*model.ScanReport{
			"console": model.NewScanReport("console", []model.Finding{
				{FilePath: "lib/a.ts", LineNumber: 4, Pattern: "console.log", Severity: model.SeverityModerate, Message: "console.log call | left"},
			}, nil),
			"structure": model.NewScanReport("structure", nil, nil),
			"routes":    model.FailedReport("routes", errors.New("boom")),
		},
		MovePlan: model.MovePlan{},
	}
	agg.Recount()
	return agg
}

func TestMarkdownCompliantAndFailed(t *testing.T) {
	md := string(Markdown(sampleAggregate(), nil))
	for _, want := range []string{
		"# Fixzit stabilization report",
		"Compliant: empty move plan.",
		"**Failed sections:** routes",
		"Scanner failed: boom",
		"`lib/a.ts`",
		`console.log call \| left`,
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected %q in summary:\n%s", want, md)
		}
	}
	if strings.Contains(md, "Delta vs baseline") {
		t.Fatal("delta section must be omitted without a baseline")
	}
}

func TestMarkdownMovePlanAndDelta(t *testing.T) {
	agg := sampleAggregate()
	agg.MovePlan = model.MovePlan{{From: "src/x.ts", To: "lib/x.ts"}}
	res := &delta.Result{
		Baseline:    ".fixzit/baseline",
		Regressions: []model.Finding{{FilePath: "lib/new.ts", Pattern: "routes.no-handler", Severity: model.SeverityMajor, Message: "new"}},
	}
	md := string(Markdown(agg, res))
	if strings.Contains(md, "Compliant: empty move plan.") {
		t.Fatal("a non-empty plan must not be reported as compliant")
	}
	for _, want := range []string{"`src/x.ts`", "`lib/x.ts`", "## Delta vs baseline", "- Regressions: 1", "`lib/new.ts`"} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected %q in summary:\n%s", want, md)
		}
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, sampleAggregate())
	out := buf.String()
	for _, want := range []string{"run-1", "console", "structure", "failed", "3 commits by 2 authors"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table output:\n%s", want, out)
		}
	}
}

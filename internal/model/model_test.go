package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestIdentity(t *testing.T) {
	a := Finding{FilePath: "i18n/ar.json", Pattern: "i18n.parity-gap", Subject: "nav.home", Message: "one"}
	b := Finding{FilePath: "i18n/ar.json", Pattern: "i18n.parity-gap", Subject: "nav.about", Message: "one"}
	if a.Identity() == b.Identity() {
		t.Fatal("findings about different keys must not share an identity")
	}
	c := a
	c.Message = "reworded"
	if a.Identity() != c.Identity() {
		t.Fatal("the message is not part of the identity")
	}
	if got := (Finding{FilePath: "a.ts", Pattern: "console.log", LineNumber: 4}).Identity(); got != "a.ts|console.log|4" {
		t.Fatalf("unexpected identity %q", got)
	}
}

func TestSortFindings(t *testing.T) {
	fs := []Finding{
		{FilePath: "b.ts", LineNumber: 1, Pattern: "x"},
		{FilePath: "a.ts", LineNumber: 9, Pattern: "x"},
		{FilePath: "a.ts", LineNumber: 2, Pattern: "y"},
		{FilePath: "a.ts", LineNumber: 2, Pattern: "x", Subject: "k2"},
		{FilePath: "a.ts", LineNumber: 2, Pattern: "x", Subject: "k1"},
	}
	SortFindings(fs)
	var got []string
	for _, f := range fs {
		got = append(got, f.Identity())
	}
	want := "a.ts|x|2|k1,a.ts|x|2|k2,a.ts|y|2,a.ts|x|9,b.ts|x|1"
	if strings.Join(got, ",") != want {
		t.Fatalf("unexpected order:\n%s\nwant\n%s", strings.Join(got, ","), want)
	}
}

func TestNewScanReportCounts(t *testing.T) {
	r := NewScanReport("console", nil, nil)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"findings":[]`) {
		t.Fatalf("empty findings must serialise as []: %s", data)
	}
	for _, s := range Severities {
		if _, ok := r.SummaryCounts[s]; !ok {
			t.Fatalf("missing count for %s", s)
		}
	}

	r = NewScanReport("console", []Finding{
		{FilePath: "a.ts", Severity: SeverityModerate},
		{FilePath: "b.ts", Severity: SeverityMinor},
	}, nil)
	if r.Failing() != 1 || r.SummaryCounts[SeverityMinor] != 1 {
		t.Fatalf("unexpected counts %+v", r.SummaryCounts)
	}
}

func TestAggregateRecount(t *testing.T) {
	agg := &Aggregate{Scanners: map[string]*ScanReport{
		"routes":  NewScanReport("routes", []Finding{{FilePath: "app/api/x/route.ts", Severity: SeverityMajor}}, nil),
		"i18n":    NewScanReport("i18n", []Finding{{FilePath: "app/page.tsx", Severity: SeverityMinor}}, nil),
		"console": FailedReport("console", errors.New("boom")),
	}}
	agg.Recount()
	if agg.Totals.Findings != 2 || agg.Totals.Failing != 1 {
		t.Fatalf("unexpected totals %+v", agg.Totals)
	}
	if len(agg.Totals.FailedScanners) != 1 || agg.Totals.FailedScanners[0] != "console" {
		t.Fatalf("expected console to be reported as failed, got %v", agg.Totals.FailedScanners)
	}
	if names := strings.Join(agg.ScannerNames(), ","); names != "console,i18n,routes" {
		t.Fatalf("unexpected order %s", names)
	}
	if FailedReport("x", errors.New("boom")).Error != "boom" {
		t.Fatal("failed report keeps its error")
	}
}

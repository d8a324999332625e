package scan

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

func TestDuplicatesHealthyTree(t *testing.T) {
	in := newInput(t, map[string]string{
		"lib/a.ts":        "export const a = 1",
		"lib/b.ts":        "export const b = 2",
		"app/page.tsx":    "export default function Page() {}",
		"app/x/page.tsx":  "export default function X() {}",
		"public/empty.md": "",
		"public/other.md": "",
	}, waiver.Set{})
	rep, err := Duplicates{}.Scan(context.Background(), in)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if rep.Status != model.StatusOK || len(rep.Findings) != 0 {
		t.Fatalf("expected an ok report without findings, got %s %+v", rep.Status, rep.Findings)
	}
	details := rep.Details.(*DuplicatesDetails)
	if details.ByHash == nil || details.ByName == nil {
		t.Fatal("expected non-nil empty group lists")
	}
	data, _ := json.Marshal(details)
	if !strings.Contains(string(data), `"byHash":[]`) || !strings.Contains(string(data), `"byName":[]`) {
		t.Fatalf("expected empty lists to serialise as [], got %s", data)
	}
}

func TestDuplicatesSameContentDifferentNames(t *testing.T) {
	in := newInput(t, map[string]string{
		"lib/money.ts":         "export const fmt = (n) => n.toFixed(2)",
		"components/format.ts": "export const fmt = (n) => n.toFixed(2)",
		"lib/unrelated.ts":     "export const u = 1",
	}, waiver.Set{})
	rep, err := Duplicates{}.Scan(context.Background(), in)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	details := rep.Details.(*DuplicatesDetails)
	if len(details.ByHash) != 1 || len(details.ByHash[0].Files) != 2 {
		t.Fatalf("expected one hash group of two, got %+v", details.ByHash)
	}
	if len(details.ByName) != 0 {
		t.Fatalf("expected no name groups, got %+v", details.ByName)
	}
	if n := countPattern(rep, PatternDuplicateContent); n != 2 {
		t.Fatalf("expected a finding per group member, got %d", n)
	}
}

func TestDuplicatesSameContentSameName(t *testing.T) {
	in := newInput(t, map[string]string{
		"lib/utils.ts":      "export const same = true",
		"services/utils.ts": "export const same = true",
		"app/index.ts":      "export {}",
		"lib/index.ts":      "export * from './utils'",
	}, waiver.Set{})
	rep, err := Duplicates{}.Scan(context.Background(), in)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	details := rep.Details.(*DuplicatesDetails)
	if len(details.ByHash) != 1 || len(details.ByHash[0].Files) != 2 {
		t.Fatalf("expected one hash group of two, got %+v", details.ByHash)
	}
	if len(details.ByName) != 1 || details.ByName[0].Name != "utils.ts" || len(details.ByName[0].Files) != 2 {
		t.Fatalf("expected one name group of two (index.ts ignored), got %+v", details.ByName)
	}
}

func TestDuplicatesWaivedPaths(t *testing.T) {
	w := parseWaivers(t, `{"duplicates": [{"path": "public/", "reason": "static assets"}]}`)
	in := newInput(t, map[string]string{
		"public/a/logo.svg": "<svg/>",
		"public/b/logo.svg": "<svg/>",
	}, w)
	rep, err := Duplicates{}.Scan(context.Background(), in)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rep.Findings) != 0 {
		t.Fatalf("expected waived directory to be excluded, got %+v", rep.Findings)
	}
}

func TestDuplicatesEmptyFilesShareName(t *testing.T) {
	in := newInput(t, map[string]string{
		"lib/utils.ts":            "",
		"components/utils.ts":     "",
		"components/constants.ts": "",
	}, waiver.Set{})
	rep, err := Duplicates{}.Scan(context.Background(), in)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	details := rep.Details.(*DuplicatesDetails)
	if len(details.ByHash) != 0 {
		t.Fatalf("empty files must not form a content group, got %+v", details.ByHash)
	}
	if len(details.ByName) != 1 || details.ByName[0].Name != "utils.ts" || len(details.ByName[0].Files) != 2 {
		t.Fatalf("expected one utils.ts name group, got %+v", details.ByName)
	}
	if len(rep.Findings) != 2 {
		t.Fatalf("expected a name finding per file, got %+v", rep.Findings)
	}
}

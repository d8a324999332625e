package apply

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ajranjith/fixzit-agent/internal/config"
	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/tree"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func snapshot(t *testing.T, root string) *tree.Snapshot {
	t.Helper()
	snap, err := tree.Build(context.Background(), root, tree.Options{ExcludeDirs: []string{".git"}, Workers: 2})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

var fixture = map[string]string{
	"src/lib/money.ts": "import { round } from './round'\nexport const fmt = (n: number) => round(n)\n",
	"src/lib/round.ts": "export const round = Math.round\n",
	"app/page.tsx": `import { fmt } from "../src/lib/money"
import { fmt as f2 } from "@/src/lib/money"
import legacy from "@/src/lib/legacy-money"
import React from "react"
`,
	"src/lib/legacy-money.ts": "export default 1\n",
	"lib/other.ts":            "export const other = 1\n",
}

func TestPrepareRewritesImports(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, fixture)
	snap := snapshot(t, root)
	w, err := waiver.Parse("w.json", []byte(`{"imports": [{"pattern": "@/src/lib/legacy-*", "reason": "bundler alias"}]}`))
	if err != nil {
		t.Fatalf("waivers: %v", err)
	}
	plan := model.MovePlan{
		{From: "src/lib/money.ts", To: "lib/money.ts"},
		{From: "src/lib/legacy-money.ts", To: "lib/legacy-money.ts"},
	}
	cfg := config.Default()
	cs, err := Prepare(context.Background(), snap, plan, w, cfg.Scan, cfg.Apply)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	page := string(cs.Rewrites["app/page.tsx"])
	for _, want := range []string{`from "../lib/money"`, `from "@/lib/money"`, `from "@/src/lib/legacy-money"`, `from "react"`} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected %s in rewritten page:\n%s", want, page)
		}
	}
	moved := string(cs.Rewrites["lib/money.ts"])
	if !strings.Contains(moved, `from '../src/lib/round'`) {
		t.Fatalf("expected moved file's relative import to be rebased:\n%s", moved)
	}
	if _, ok := cs.Rewrites["src/lib/round.ts"]; ok {
		t.Fatal("files without affected imports must not be rewritten")
	}
	if len(cs.Edits) != 3 {
		t.Fatalf("expected 3 import edits, got %+v", cs.Edits)
	}

	// phase 1 never touches the disk
	data, _ := os.ReadFile(filepath.Join(root, "app", "page.tsx"))
	if string(data) != fixture["app/page.tsx"] {
		t.Fatal("prepare must not modify files")
	}
}

func TestPrepareRejectsConflicts(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, fixture)
	snap := snapshot(t, root)
	cfg := config.Default()
	cases := map[string]model.MovePlan{
		"destination exists": {{From: "src/lib/money.ts", To: "lib/other.ts"}},
		"missing source":     {{From: "src/nope.ts", To: "lib/nope.ts"}},
		"duplicate target":   {{From: "src/lib/money.ts", To: "lib/x.ts"}, {From: "src/lib/round.ts", To: "lib/x.ts"}},
		"escaping path":      {{From: "src/lib/money.ts", To: "../outside.ts"}},
	}
	for name, plan := range cases {
		_, err := Prepare(context.Background(), snap, plan, waiver.Set{}, cfg.Scan, cfg.Apply)
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("%s: expected ConflictError, got %v", name, err)
		}
	}
}

func TestPrepareEmptyPlan(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, fixture)
	cfg := config.Default()
	cs, err := Prepare(context.Background(), snapshot(t, root), model.MovePlan{}, waiver.Set{}, cfg.Scan, cfg.Apply)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !cs.Empty() {
		t.Fatal("expected empty changeset")
	}
	if _, err := Execute(context.Background(), root, cs, Options{}); !errors.Is(err, ErrNothingToApply) {
		t.Fatalf("expected ErrNothingToApply, got %v", err)
	}
}

package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ajranjith/fixzit-agent/internal/config"
	"github.com/ajranjith/fixzit-agent/internal/orchestrator"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func levels(rep Report) map[string]Level {
	out := map[string]Level{}
	for _, c := range rep.Checks {
		out[c.Name] = c.Level
	}
	return out
}

func TestDoctorHealthyWorkspace(t *testing.T) {
	t.Setenv("FIXZIT_SIGNING_PRIVATE_KEY", "")
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"i18n/en.json":          `{"a": "A"}`,
		"i18n/ar.json":          `{"a": "أ"}`,
		"app/api/ping/route.ts": "export function GET() {}\n",
	})
	cfg := config.Default()
	p, err := orchestrator.ResolvePaths(cfg, root)
	if err != nil {
		t.Fatal(err)
	}
	rep := Run(context.Background(), cfg, p)
	if rep.Status != StatusOK {
		t.Fatalf("expected OK, got %s: %v", rep.Status, rep.Reasons)
	}
	lv := levels(rep)
	if lv["routes"] != LevelOK || lv["i18n catalogs"] != LevelOK {
		t.Fatalf("unexpected levels %v", lv)
	}
	if lv["baseline"] != LevelWarn || lv["storage"] != LevelWarn {
		t.Fatalf("missing baseline and storage are warnings: %v", lv)
	}
}

func TestDoctorReportsBrokenInputs(t *testing.T) {
	t.Setenv("FIXZIT_SIGNING_PRIVATE_KEY", "")
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"i18n/en.json":         `{"a": "A"}`,
		".fixzit/waivers.json": `{"console": [{"pattern": "console.log"}]}`,
	})
	cfg := config.Default()
	p, err := orchestrator.ResolvePaths(cfg, root)
	if err != nil {
		t.Fatal(err)
	}
	rep := Run(context.Background(), cfg, p)
	if rep.Status != StatusDegraded {
		t.Fatalf("expected DEGRADED, got %s", rep.Status)
	}
	lv := levels(rep)
	if lv["i18n catalogs"] != LevelFail || lv["waivers"] != LevelFail {
		t.Fatalf("expected catalog and waiver failures, got %v", lv)
	}
	if len(rep.Reasons) != 2 {
		t.Fatalf("expected two reasons, got %v", rep.Reasons)
	}
}

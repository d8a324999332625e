package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ajranjith/fixzit-agent/internal/config"
	"github.com/ajranjith/fixzit-agent/internal/tree"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

// newInput snapshots files and loads the default catalogs when present.
func newInput(t *testing.T, files map[string]string, w waiver.Set) Input {
	t.Helper()
	root := writeFiles(t, files)
	cfg := config.Default().Scan
	snap, err := tree.Build(context.Background(), root, tree.Options{ExcludeDirs: cfg.ExcludeDirs, Workers: 2})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	in := Input{Tree: snap, Waivers: w, Config: cfg}
	if _, ok := files["i18n/en.json"]; ok {
		cats, err := LoadCatalogs(root, cfg.I18n.Catalogs)
		if err != nil {
			t.Fatalf("catalogs: %v", err)
		}
		in.Catalogs = cats
	}
	return in
}

func parseWaivers(t *testing.T, body string) waiver.Set {
	t.Helper()
	set, err := waiver.Parse("waivers.json", []byte(body))
	if err != nil {
		t.Fatalf("waivers: %v", err)
	}
	return set
}

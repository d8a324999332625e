package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Scan.I18n.Catalogs) != 2 {
		t.Fatalf("expected two default catalogs, got %d", len(cfg.Scan.I18n.Catalogs))
	}
}

func TestResolveYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixzit.yml")
	body := `schemaVersion: "1.0"
run:
  lookbackDays: 30
scan:
  structure:
    buckets: ["src/", "tests/"]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, cfgPath, _, err := Resolve(Flags{ConfigPath: path})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfgPath != path {
		t.Fatalf("expected config path %s, got %s", path, cfgPath)
	}
	if cfg.Run.LookbackDays != 30 {
		t.Fatalf("expected lookbackDays 30, got %d", cfg.Run.LookbackDays)
	}
	if len(cfg.Scan.Structure.Buckets) != 2 || cfg.Scan.Structure.Buckets[0] != "src/" {
		t.Fatalf("unexpected buckets: %v", cfg.Scan.Structure.Buckets)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %s", cfg.Logging.Level)
	}
	if cfg.Paths.ReportsDir != ".fixzit/reports" {
		t.Fatalf("expected default reports dir to be merged, got %s", cfg.Paths.ReportsDir)
	}
	if !cfg.Scan.Structure.AllowRootFiles || !cfg.Scan.I18n.ReportUnused {
		t.Fatal("expected boolean defaults to survive a partial override")
	}
	if len(cfg.Scan.Routes.Methods) == 0 {
		t.Fatal("expected default route methods to be merged")
	}
}

func TestResolveRejectsBadSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixzit.json")
	if err := os.WriteFile(path, []byte(`{"schemaVersion":"2.0"}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := Resolve(Flags{ConfigPath: path}); err == nil {
		t.Fatal("expected unsupported schemaVersion error")
	}
}

func TestValidateRejectsUnknownRuleKind(t *testing.T) {
	cfg := Default()
	cfg.Scan.Structure.Rules = []BucketRule{{Kind: "regex", Match: ".*", Bucket: "lib/"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown rule kind error")
	}
}

func TestResolveMissingFile(t *testing.T) {
	if _, _, _, err := Resolve(Flags{ConfigPath: filepath.Join(t.TempDir(), "nope.yml")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

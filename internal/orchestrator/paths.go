package orchestrator

import (
	"path/filepath"
	"strings"

	"github.com/ajranjith/fixzit-agent/internal/config"
)

// Paths are the absolute locations a run reads and writes.
type Paths struct {
	Root     string
	State    string
	Reports  string
	Baseline string
	Waivers  string
}

// ResolvePaths anchors the configured paths at root. Absolute values are
// kept as they are.
func ResolvePaths(cfg config.Config, root string) (Paths, error) {
	if root == "" {
		root = cfg.Paths.WorkspaceRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, err
	}
	at := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(abs, filepath.FromSlash(p))
	}
	return Paths{
		Root:     abs,
		State:    at(cfg.Paths.StateDir),
		Reports:  at(cfg.Paths.ReportsDir),
		Baseline: at(cfg.Paths.BaselineDir),
		Waivers:  at(cfg.Paths.WaiverFile),
	}, nil
}

// ExcludeDirs adds the state and reports dirs to the configured exclusions when
// they live inside the root.
func (p Paths) ExcludeDirs(base []string) []string {
	out := append([]string(nil), base...)
	for _, dir := range []string{p.State, p.Reports, p.Baseline} {
		if rel, ok := p.rel(dir); ok {
			out = append(out, rel)
		}
	}
	return out
}

func (p Paths) rel(abs string) (string, bool) {
	if abs == "" {
		return "", false
	}
	rel, err := filepath.Rel(p.Root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// Package doctor checks that a workspace has what a run needs.
package doctor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ajranjith/fixzit-agent/internal/config"
	"github.com/ajranjith/fixzit-agent/internal/delta"
	"github.com/ajranjith/fixzit-agent/internal/gitlog"
	"github.com/ajranjith/fixzit-agent/internal/orchestrator"
	"github.com/ajranjith/fixzit-agent/internal/pathglob"
	"github.com/ajranjith/fixzit-agent/internal/scan"
	"github.com/ajranjith/fixzit-agent/internal/support"
	"github.com/ajranjith/fixzit-agent/internal/tree"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

const (
	StatusOK       = "OK"
	StatusDegraded = "DEGRADED"
)

type Level string

const (
	LevelOK   Level = "ok"
	LevelWarn Level = "warn"
	LevelFail Level = "fail"
)

type Check struct {
	Name   string `json:"name"`
	Level  Level  `json:"level"`
	Detail string `json:"detail"`
}

type Report struct {
	GeneratedAtUtc string   `json:"generatedAtUtc"`
	Root           string   `json:"root"`
	Checks         []Check  `json:"checks"`
	Status         string   `json:"status"`
	Reasons        []string `json:"reasons,omitempty"`
}

// Run performs every check. Failing checks would abort a run in preflight;
// warnings only disable optional features.
func Run(ctx context.Context, cfg config.Config, p orchestrator.Paths) Report {
	rep := Report{
		GeneratedAtUtc: time.Now().UTC().Format(time.RFC3339),
		Root:           p.Root,
		Status:         StatusOK,
	}
	add := func(name string, level Level, format string, args ...any) {
		rep.Checks = append(rep.Checks, Check{Name: name, Level: level, Detail: fmt.Sprintf(format, args...)})
		if level == LevelFail {
			rep.Status = StatusDegraded
			rep.Reasons = append(rep.Reasons, name+": "+fmt.Sprintf(format, args...))
		}
	}

	snap, err := tree.Build(ctx, p.Root, tree.Options{
		ExcludeDirs:  p.ExcludeDirs(cfg.Scan.ExcludeDirs),
		MaxFileBytes: cfg.Scan.MaxFileBytes,
		Workers:      cfg.Run.Concurrency,
	})
	if err != nil {
		add("workspace", LevelFail, "%v", err)
	} else {
		add("workspace", LevelOK, "%d files, %d source files", snap.Len(), len(snap.WithExt(cfg.Scan.SourceExtensions)))
	}

	if (gitlog.Repo{Dir: p.Root}).Available(ctx) {
		add("git", LevelOK, "work tree detected")
	} else {
		add("git", LevelWarn, "not a git work tree; history mining and apply are unavailable")
	}

	if enabledScanner(cfg, "i18n") {
		cats, err := scan.LoadCatalogs(p.Root, cfg.Scan.I18n.Catalogs)
		switch {
		case err != nil:
			add("i18n catalogs", LevelFail, "%v", err)
		case len(cats) < 2:
			add("i18n catalogs", LevelWarn, "%d catalog(s); parity checks need two", len(cats))
		default:
			var parts []string
			for _, c := range cats {
				parts = append(parts, fmt.Sprintf("%s=%d keys", c.Locale, c.Len()))
			}
			add("i18n catalogs", LevelOK, "%s", strings.Join(parts, ", "))
		}
	}

	if ws, err := waiver.Load(p.Waivers, false); err != nil {
		add("waivers", LevelFail, "%v", err)
	} else {
		total := 0
		for _, n := range ws.Counts() {
			total += n
		}
		add("waivers", LevelOK, "%d entries in %s", total, p.Waivers)
	}

	if snap != nil && enabledScanner(cfg, "routes") {
		n := 0
		for _, f := range snap.Files() {
			if pathglob.MatchAny(cfg.Scan.Routes.Globs, f) {
				n++
			}
		}
		if n == 0 {
			add("routes", LevelWarn, "no files match the route globs")
		} else {
			add("routes", LevelOK, "%d route file(s)", n)
		}
	}

	if _, err := delta.Load("baseline", p.Baseline); err != nil {
		add("baseline", LevelWarn, "no usable baseline at %s; delta is unavailable", p.Baseline)
	} else {
		add("baseline", LevelOK, "%s", p.Baseline)
	}

	if orchestrator.Locked(p.State) {
		add("lock", LevelWarn, "apply lock present in %s", p.State)
	} else {
		add("lock", LevelOK, "work tree unlocked")
	}

	if cfg.Storage.Endpoint == "" || cfg.Storage.Bucket == "" {
		add("storage", LevelWarn, "not configured; baseline push/pull disabled")
	} else {
		add("storage", LevelOK, "%s/%s", cfg.Storage.Endpoint, cfg.Storage.Bucket)
	}

	if key, err := support.LoadSigningKey(cfg.Signing.KeyPath); err != nil {
		add("signing", LevelFail, "%v", err)
	} else if key == nil {
		add("signing", LevelOK, "manifests are unsigned")
	} else {
		add("signing", LevelOK, "manifests are signed (ed25519)")
	}
	return rep
}

func enabledScanner(cfg config.Config, name string) bool {
	for _, s := range cfg.Scan.Scanners {
		if s == name {
			return true
		}
	}
	return false
}

// Package scan implements the read-only scanners run by the orchestrator.
// Each scanner is side-effect free; it receives everything it needs through
// Input and returns a ScanReport.
package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ajranjith/fixzit-agent/internal/config"
	"github.com/ajranjith/fixzit-agent/internal/logging"
	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/tree"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

// Input is shared read-only by every scanner of a run.
type Input struct {
	Tree     *tree.Snapshot
	Waivers  waiver.Set
	Config   config.ScanConfig
	Catalogs []*Catalog
	// Aliases maps import prefixes such as "@/" to directories (apply.aliases).
	Aliases map[string]string
	Log     *slog.Logger
}

type Scanner interface {
	Name() string
	Scan(ctx context.Context, in Input) (*model.ScanReport, error)
}

// New returns the named scanners in the given order.
func New(names []string) ([]Scanner, error) {
	out := make([]Scanner, 0, len(names))
	for _, name := range names {
		switch name {
		case "i18n":
			out = append(out, I18n{})
		case "routes":
			out = append(out, Routes{})
		case "duplicates":
			out = append(out, Duplicates{})
		case "structure":
			out = append(out, Structure{})
		case "console":
			out = append(out, Console{})
		case "imports":
			out = append(out, Imports{})
		default:
			return nil, fmt.Errorf("unknown scanner %q", name)
		}
	}
	return out, nil
}

// collector gathers findings for one scanner, dropping those suppressed by a
// rule-tag waiver as they are produced.
type collector struct {
	scanner  string
	waivers  waiver.Set
	findings []model.Finding
	waived   int
}

func newCollector(scanner string, w waiver.Set) *collector {
	return &collector{scanner: scanner, waivers: w}
}

func (c *collector) add(f model.Finding) {
	if c.waivers.Suppresses(c.scanner, f) {
		c.waived++
		return
	}
	c.findings = append(c.findings, f)
}

// finish builds the report and marks it partial when some files could not
// be read.
func (c *collector) finish(details any, failed []tree.FileError) *model.ScanReport {
	r := model.NewScanReport(c.scanner, c.findings, details)
	if len(failed) > 0 {
		r.Status = model.StatusPartial
		r.Error = fmt.Sprintf("%d file(s) could not be scanned (first: %s: %s)", len(failed), failed[0].Path, failed[0].Err)
	}
	return r
}

func logger(in Input) *slog.Logger {
	return logging.OrDiscard(in.Log)
}

func sourceFiles(in Input, category string) []string {
	var out []string
	for _, f := range in.Tree.WithExt(in.Config.SourceExtensions) {
		if !in.Waivers.PathWaived(category, f) {
			out = append(out, f)
		}
	}
	return out
}

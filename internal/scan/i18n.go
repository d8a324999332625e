package scan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/tree"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

const (
	PatternMissingKey    = "i18n.missing-key"
	PatternParityGap     = "i18n.parity-gap"
	PatternUnsafeDynamic = "i18n.unsafe-dynamic"
	PatternUnusedKey     = "i18n.unused-key"
)

// I18n checks translation usage against the locale catalogs and the
// catalogs against each other.
type I18n struct{}

type I18nDetails struct {
	Locales          []string           `json:"locales"`
	CatalogKeys      map[string]int     `json:"catalogKeys"`
	FilesScanned     int                `json:"filesScanned"`
	StaticCallSites  int                `json:"staticCallSites"`
	DynamicCallSites int                `json:"dynamicCallSites"`
	ByKind           map[string]int     `json:"byKind"`
	UsedKeys         []string           `json:"usedKeys"`
	DynamicFiles     []string           `json:"dynamicFiles"`
	Coverage         map[string]float64 `json:"coverage"`
	Failed           []tree.FileError   `json:"failed,omitempty"`
}

func (I18n) Name() string { return "i18n" }

func (s I18n) Scan(ctx context.Context, in Input) (*model.ScanReport, error) {
	if len(in.Catalogs) == 0 {
		return nil, errors.New("no locale catalogs loaded")
	}
	cfg := in.Config.I18n
	classifier := NewClassifier(cfg.Functions, cfg.TransComponents, cfg.NamespaceSeparator)

	catalogPaths := map[string]bool{}
	for _, c := range in.Catalogs {
		catalogPaths[c.Path] = true
	}
	var files []string
	for _, f := range sourceFiles(in, waiver.CategoryI18n) {
		if !catalogPaths[f] {
			files = append(files, f)
		}
	}

	results, failed, err := tree.Map(ctx, in.Tree, files, func(rel string, data []byte) ([]CallSite, error) {
		if tree.IsBinary(data) {
			return nil, nil
		}
		return classifier.Classify(string(data)), nil
	})
	if err != nil {
		return nil, err
	}

	col := newCollector(s.Name(), in.Waivers)
	details := &I18nDetails{
		CatalogKeys:  map[string]int{},
		ByKind:       map[string]int{},
		UsedKeys:     []string{},
		DynamicFiles: []string{},
		Coverage:     map[string]float64{},
		Failed:       failed,
		FilesScanned: len(results),
	}
	for _, c := range in.Catalogs {
		details.Locales = append(details.Locales, c.Locale)
		details.CatalogKeys[c.Locale] = c.Len()
	}

	used := map[string]struct{}{}
	for _, r := range results {
		var firstDynamic, dynamicCount int
		for _, site := range r.Value {
			details.ByKind[site.Kind.String()]++
			if !site.Kind.Static() {
				dynamicCount++
				if firstDynamic == 0 {
					firstDynamic = site.Line
				}
				continue
			}
			if in.Waivers.KeyWaived(site.Key) {
				continue
			}
			used[site.Key] = struct{}{}
			for _, cat := range in.Catalogs {
				if cat.Has(site.Key) {
					continue
				}
				col.add(model.Finding{
					FilePath:   r.Path,
					LineNumber: site.Line,
					Pattern:    PatternMissingKey,
					Severity:   model.SeverityMajor,
					Message:    fmt.Sprintf("translation key %q is missing from the %s catalog (%s)", site.Key, cat.Locale, cat.Path),
					Subject:    site.Key + "@" + cat.Locale,
				})
			}
		}
		details.DynamicCallSites += dynamicCount
		details.StaticCallSites += len(r.Value) - dynamicCount
		if dynamicCount > 0 {
			details.DynamicFiles = append(details.DynamicFiles, r.Path)
			col.add(model.Finding{
				FilePath:   r.Path,
				LineNumber: firstDynamic,
				Pattern:    PatternUnsafeDynamic,
				Severity:   model.SeverityMinor,
				Message:    fmt.Sprintf("%d translation key(s) built at runtime cannot be verified statically", dynamicCount),
			})
		}
	}

	s.parity(in, col)
	if cfg.ReportUnused {
		s.unused(in, used, col)
	}

	details.UsedKeys = sortedKeys(used)
	for _, cat := range in.Catalogs {
		details.Coverage[cat.Locale] = coverage(cat, used)
	}

	logger(in).Debug("i18n scan complete",
		"files", len(results), "static", details.StaticCallSites, "dynamic", details.DynamicCallSites)
	return col.finish(details, failed), nil
}

// parity reports keys present in one catalog but absent from another. The
// finding is located in the catalog that lacks the key.
func (I18n) parity(in Input, col *collector) {
	union := map[string][]string{}
	for _, cat := range in.Catalogs {
		for _, k := range cat.Keys() {
			union[k] = append(union[k], cat.Locale)
		}
	}
	for _, key := range sortedKeys(union) {
		if in.Waivers.KeyWaived(key) {
			continue
		}
		owners := union[key]
		if len(owners) == len(in.Catalogs) {
			continue
		}
		for _, cat := range in.Catalogs {
			if cat.HasLeaf(key) {
				continue
			}
			col.add(model.Finding{
				FilePath: cat.Path,
				Pattern:  PatternParityGap,
				Severity: model.SeverityMajor,
				Message:  fmt.Sprintf("key %q exists in %s but not in %s", key, strings.Join(owners, ", "), cat.Locale),
				Subject:  key,
			})
		}
	}
}

// unused reports reference-catalog keys that no static call site uses,
// directly or through an ancestor subtree.
func (I18n) unused(in Input, used map[string]struct{}, col *collector) {
	ref := in.Catalogs[0]
	for _, key := range ref.Keys() {
		if keyUsed(key, used) || in.Waivers.KeyWaived(key) {
			continue
		}
		col.add(model.Finding{
			FilePath: ref.Path,
			Pattern:  PatternUnusedKey,
			Severity: model.SeverityMinor,
			Message:  fmt.Sprintf("key %q is never referenced by a static translation call", key),
			Subject:  key,
		})
	}
}

func keyUsed(key string, used map[string]struct{}) bool {
	if _, ok := used[key]; ok {
		return true
	}
	for i := strings.LastIndexByte(key, '.'); i > 0; i = strings.LastIndexByte(key[:i], '.') {
		if _, ok := used[key[:i]]; ok {
			return true
		}
	}
	return false
}

// coverage is the share of statically used keys the catalog resolves, as a
// percentage rounded to two decimals. Dynamic keys are not counted.
func coverage(cat *Catalog, used map[string]struct{}) float64 {
	if len(used) == 0 {
		return 100
	}
	hit := 0
	for k := range used {
		if cat.Has(k) {
			hit++
		}
	}
	return math.Round(float64(hit)/float64(len(used))*10000) / 100
}

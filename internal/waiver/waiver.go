// Package waiver loads and queries the allow-list consulted by every scanner.
//
// A waiver file is JSON (or YAML for .yml/.yaml) with one list per category
// plus a generic list:
//
//	{
//	  "routes":     [{"path": "app/api/legacy/**", "pattern": "createHandler(", "reason": "..."}],
//	  "console":    [{"pattern": "console.log", "allowedTypes": ["error", "warn"], "reason": "..."}],
//	  "duplicates": [{"path": "public/", "reason": "..."}],
//	  "imports":    [{"pattern": "@/legacy/**", "reason": "..."}],
//	  "i18n":       [{"key": "legacy.*", "reason": "..."}],
//	  "structure":  [{"path": "tools/**", "reason": "..."}],
//	  "waivers":    [{"scope": "i18n.unused-key", "reason": "...", "appliesTo": ["i18n"]}]
//	}
//
// Categories are scoped independently: an entry only ever affects the scanner
// it is filed under (or the scanners named in appliesTo).
package waiver

import (
	"strings"

	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/pathglob"
)

const (
	CategoryRoutes     = "routes"
	CategoryConsole    = "console"
	CategoryDuplicates = "duplicates"
	CategoryImports    = "imports"
	CategoryI18n       = "i18n"
	CategoryStructure  = "structure"
)

// Categories lists every waiver category in file order.
var Categories = []string{
	CategoryRoutes, CategoryConsole, CategoryDuplicates,
	CategoryImports, CategoryI18n, CategoryStructure,
}

type RouteWaiver struct {
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Reason  string `json:"reason" yaml:"reason"`
}

type ConsoleWaiver struct {
	Pattern      string   `json:"pattern" yaml:"pattern"`
	AllowedTypes []string `json:"allowedTypes,omitempty" yaml:"allowedTypes,omitempty"`
	Paths        []string `json:"paths,omitempty" yaml:"paths,omitempty"`
	Reason       string   `json:"reason" yaml:"reason"`
}

// PathWaiver exempts a glob or directory prefix.
type PathWaiver struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}

type ImportWaiver struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Reason  string `json:"reason" yaml:"reason"`
}

type I18nWaiver struct {
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Key    string `json:"key,omitempty" yaml:"key,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

// Waiver is a generic entry. Scope is a rule tag (e.g. "i18n.unused-key",
// "console.*") or a path glob.
type Waiver struct {
	Scope     string   `json:"scope" yaml:"scope"`
	Reason    string   `json:"reason" yaml:"reason"`
	AppliesTo []string `json:"appliesTo" yaml:"appliesTo"`
}

// Set is the validated, read-only waiver configuration. It is passed by
// value into each scanner.
type Set struct {
	Version    string          `json:"version,omitempty" yaml:"version,omitempty"`
	Routes     []RouteWaiver   `json:"routes,omitempty" yaml:"routes,omitempty"`
	Console    []ConsoleWaiver `json:"console,omitempty" yaml:"console,omitempty"`
	Duplicates []PathWaiver    `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Imports    []ImportWaiver  `json:"imports,omitempty" yaml:"imports,omitempty"`
	I18n       []I18nWaiver    `json:"i18n,omitempty" yaml:"i18n,omitempty"`
	Structure  []PathWaiver    `json:"structure,omitempty" yaml:"structure,omitempty"`
	Waivers    []Waiver        `json:"waivers,omitempty" yaml:"waivers,omitempty"`
}

// Counts reports the number of entries per category.
func (s Set) Counts() map[string]int {
	return map[string]int{
		CategoryRoutes:     len(s.Routes),
		CategoryConsole:    len(s.Console),
		CategoryDuplicates: len(s.Duplicates),
		CategoryImports:    len(s.Imports),
		CategoryI18n:       len(s.I18n),
		CategoryStructure:  len(s.Structure),
		"waivers":          len(s.Waivers),
	}
}

func (s Set) Empty() bool {
	for _, n := range s.Counts() {
		if n > 0 {
			return false
		}
	}
	return true
}

// PathWaived reports whether rel is exempt from the given category's scanner.
func (s Set) PathWaived(category, rel string) bool {
	switch category {
	case CategoryDuplicates:
		for _, w := range s.Duplicates {
			if matchPath(w.Path, rel) {
				return true
			}
		}
	case CategoryStructure:
		for _, w := range s.Structure {
			if matchPath(w.Path, rel) {
				return true
			}
		}
	case CategoryRoutes:
		for _, w := range s.Routes {
			if w.Pattern == "" && matchPath(w.Path, rel) {
				return true
			}
		}
	case CategoryI18n:
		for _, w := range s.I18n {
			if w.Key == "" && matchPath(w.Path, rel) {
				return true
			}
		}
	}
	for _, w := range s.Waivers {
		if w.appliesTo(category) && !isRuleTag(w.Scope) && matchPath(w.Scope, rel) {
			return true
		}
	}
	return false
}

// RouteMarkers returns the handler idiom strings that mark rel as handled.
func (s Set) RouteMarkers(rel string) []string {
	var out []string
	for _, w := range s.Routes {
		if w.Pattern == "" {
			continue
		}
		if w.Path != "" && !matchPath(w.Path, rel) {
			continue
		}
		out = append(out, w.Pattern)
	}
	return out
}

// ConsoleAllowed reports whether a console.<method> call in rel is waived.
func (s Set) ConsoleAllowed(method, rel string) bool {
	tag := "console." + method
	for _, w := range s.Console {
		if len(w.Paths) > 0 && !pathglob.MatchAny(w.Paths, rel) {
			continue
		}
		if len(w.AllowedTypes) > 0 {
			for _, t := range w.AllowedTypes {
				if strings.EqualFold(t, method) {
					return true
				}
			}
			continue
		}
		if w.Pattern == tag || isWholeFamily(w.Pattern) {
			return true
		}
	}
	return false
}

// KeyWaived reports whether a translation key is exempt.
func (s Set) KeyWaived(key string) bool {
	for _, w := range s.I18n {
		if w.Key == "" {
			continue
		}
		if w.Key == key || pathglob.Match(w.Key, key) {
			return true
		}
	}
	return false
}

// ImportWaived reports whether an import specifier is exempt: it is neither
// rewritten when files move nor reported when it does not resolve.
func (s Set) ImportWaived(spec string) bool {
	for _, w := range s.Imports {
		if w.Pattern == spec || pathglob.Match(w.Pattern, spec) {
			return true
		}
		if !pathglob.HasMeta(w.Pattern) && strings.HasPrefix(spec, strings.TrimSuffix(w.Pattern, "/")+"/") {
			return true
		}
	}
	return false
}

// Suppresses reports whether a generic waiver scoped to a rule tag covers f
// for the named scanner.
func (s Set) Suppresses(scanner string, f model.Finding) bool {
	for _, w := range s.Waivers {
		if !w.appliesTo(scanner) || !isRuleTag(w.Scope) {
			continue
		}
		if w.Scope == f.Pattern {
			return true
		}
		if strings.HasSuffix(w.Scope, ".*") && strings.HasPrefix(f.Pattern, strings.TrimSuffix(w.Scope, "*")) {
			return true
		}
	}
	return false
}

func (w Waiver) appliesTo(category string) bool {
	for _, c := range w.AppliesTo {
		if c == category {
			return true
		}
	}
	return false
}

// isRuleTag distinguishes "<category>.<rule>" scopes from path globs.
func isRuleTag(scope string) bool {
	if strings.Contains(scope, "/") {
		return false
	}
	head, _, ok := strings.Cut(scope, ".")
	if !ok {
		return false
	}
	for _, c := range Categories {
		if head == c {
			return true
		}
	}
	return false
}

func isWholeFamily(pattern string) bool {
	return pattern == "console" || pattern == "console.*"
}

// matchPath treats a pattern without glob syntax as a file or directory prefix.
func matchPath(pattern, rel string) bool {
	if pattern == "" {
		return false
	}
	if pathglob.HasMeta(pattern) || strings.HasSuffix(pattern, "/") {
		return pathglob.Match(pattern, rel)
	}
	pattern = strings.TrimPrefix(pattern, "./")
	return rel == pattern || strings.HasPrefix(rel, pattern+"/")
}

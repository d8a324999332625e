// Package jsimport finds module specifiers in JavaScript/TypeScript sources
// and resolves them against a file tree.
package jsimport

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// Ref is one module specifier in a source file. Start and End bound the
// specifier text inside its quotes.
type Ref struct {
	Spec  string
	Line  int
	Start int
	End   int
}

var importRes = []*regexp.Regexp{
	// import x from "y" / import { a } from 'y' / export { a } from "y" / export * from "y"
	regexp.MustCompile(`(?m)^\s*(?:import|export)\b[^'";]*?\bfrom\s*(['"])([^'"\n]+)['"]`),
	// import "y"
	regexp.MustCompile(`(?m)^\s*import\s*(['"])([^'"\n]+)['"]`),
	// require("y") / import("y") / jest.mock("y")
	regexp.MustCompile(`\b(?:require|import|jest\.mock)\s*\(\s*(['"])([^'"\n]+)['"]\s*\)`),
}

// Extract returns every static specifier in src, in source order.
func Extract(src string) []Ref {
	seen := map[int]bool{}
	var refs []Ref
	for _, re := range importRes {
		for _, m := range re.FindAllStringSubmatchIndex(src, -1) {
			start, end := m[4], m[5]
			if seen[start] {
				continue
			}
			seen[start] = true
			refs = append(refs, Ref{
				Spec:  src[start:end],
				Line:  strings.Count(src[:start], "\n") + 1,
				Start: start,
				End:   end,
			})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Start < refs[j].Start })
	return refs
}

func IsRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// RelativeSpec returns an import specifier reaching target from a file in
// fromDir, always starting with "./" or "../".
func RelativeSpec(fromDir, target string) string {
	from := splitPath(fromDir)
	to := splitPath(target)
	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	var parts []string
	for range from[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[i:]...)
	rel := strings.Join(parts, "/")
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel
}

func splitPath(p string) []string {
	p = path.Clean(p)
	if p == "." || p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Alias maps a specifier prefix such as "@/" to a directory under the root.
// Root is empty or ends in "/".
type Alias struct {
	Prefix string
	Root   string
}

// SortAliases orders aliases longest prefix first so "@/lib/" wins over "@/".
func SortAliases(m map[string]string) []Alias {
	out := make([]Alias, 0, len(m))
	for p, r := range m {
		r = strings.Trim(r, "/")
		if r != "" {
			r += "/"
		}
		out = append(out, Alias{Prefix: p, Root: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Prefix) != len(out[j].Prefix) {
			return len(out[i].Prefix) > len(out[j].Prefix)
		}
		return out[i].Prefix < out[j].Prefix
	})
	return out
}

// Files is the part of a tree snapshot the resolver needs.
type Files interface {
	Has(rel string) bool
}

type Resolver struct {
	Files   Files
	Exts    []string
	Aliases []Alias
}

// Base maps spec, imported from the file at fromRel, to a module base path
// relative to the root. ok is false for bare package specifiers. alias is
// the alias that matched, if any.
func (r Resolver) Base(fromRel, spec string) (base string, alias *Alias, ok bool) {
	if IsRelative(spec) {
		return path.Join(path.Dir(fromRel), spec), nil, true
	}
	for i := range r.Aliases {
		if strings.HasPrefix(spec, r.Aliases[i].Prefix) {
			return r.Aliases[i].Root + strings.TrimPrefix(spec, r.Aliases[i].Prefix), &r.Aliases[i], true
		}
	}
	return "", nil, false
}

// Resolve maps a module base path to a file in the tree, returning the
// suffix that was appended (an extension or "/index.ext").
func (r Resolver) Resolve(base string) (string, string, bool) {
	base = path.Clean(base)
	if r.Files.Has(base) {
		return base, "", true
	}
	for _, ext := range r.Exts {
		if r.Files.Has(base + ext) {
			return base + ext, ext, true
		}
	}
	for _, ext := range r.Exts {
		idx := "/index" + ext
		if r.Files.Has(base + idx) {
			return base + idx, idx, true
		}
	}
	return "", "", false
}

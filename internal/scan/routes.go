package scan

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/pathglob"
	"github.com/ajranjith/fixzit-agent/internal/tree"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

const PatternNoHandler = "routes.no-handler"

// MethodAny marks a pages/api handler that serves every method through its
// default export.
const MethodAny = "ANY"

// Routes verifies every API route file exports at least one HTTP handler.
type Routes struct{}

type RouteRecord struct {
	File    string   `json:"file"`
	URL     string   `json:"url"`
	Methods []string `json:"methods"`
	Waived  bool     `json:"waived,omitempty"`
}

type RoutesDetails struct {
	Routes      []RouteRecord    `json:"routes"`
	WithHandler int              `json:"withHandler"`
	NoHandler   int              `json:"noHandler"`
	Failed      []tree.FileError `json:"failed,omitempty"`
}

var (
	// export [async] function GET( / export const GET = / export const GET: Handler =
	exportFuncRe  = regexp.MustCompile(`\bexport\s+(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*[(<]`)
	exportConstRe = regexp.MustCompile(`\bexport\s+(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*[=:]`)
	// [export] const { GET, POST: post } = factory(...)
	destructureRe = regexp.MustCompile(`\b(export\s+)?(?:const|let|var)\s*\{([^}]*)\}\s*=`)
	// export { a as GET, POST } [from "./x"]
	exportListRe    = regexp.MustCompile(`\bexport\s*(?:type\s*)?\{([^}]*)\}(\s*from\s*['"][^'"]+['"])?`)
	exportDefaultRe = regexp.MustCompile(`\bexport\s+default\b`)
)

func (Routes) Name() string { return "routes" }

func (s Routes) Scan(ctx context.Context, in Input) (*model.ScanReport, error) {
	cfg := in.Config.Routes
	methods := map[string]bool{}
	for _, m := range cfg.Methods {
		methods[strings.ToUpper(m)] = true
	}

	var files []string
	for _, f := range in.Tree.Files() {
		if pathglob.MatchAny(cfg.Globs, f) && !in.Waivers.PathWaived(waiver.CategoryRoutes, f) {
			files = append(files, f)
		}
	}

	results, failed, err := tree.Map(ctx, in.Tree, files, func(rel string, data []byte) (RouteRecord, error) {
		rec := RouteRecord{File: rel, URL: routeURL(rel), Methods: []string{}}
		src := string(data)
		for _, marker := range in.Waivers.RouteMarkers(rel) {
			if strings.Contains(src, marker) {
				rec.Waived = true
				return rec, nil
			}
		}
		rec.Methods = DetectMethods(src, methods, isPagesAPI(rel))
		return rec, nil
	})
	if err != nil {
		return nil, err
	}

	col := newCollector(s.Name(), in.Waivers)
	details := &RoutesDetails{Routes: []RouteRecord{}, Failed: failed}
	for _, r := range results {
		rec := r.Value
		details.Routes = append(details.Routes, rec)
		if rec.Waived || len(rec.Methods) > 0 {
			details.WithHandler++
			continue
		}
		details.NoHandler++
		col.add(model.Finding{
			FilePath: rec.File,
			Pattern:  PatternNoHandler,
			Severity: model.SeverityMajor,
			Message:  fmt.Sprintf("route %s exports no HTTP method handler", rec.URL),
		})
	}
	return col.finish(details, failed), nil
}

// DetectMethods returns the HTTP methods exported by a route module, sorted.
// A default export in a pages/api module counts as ANY.
func DetectMethods(src string, methods map[string]bool, pagesAPI bool) []string {
	code := stripComments(src)
	found := map[string]bool{}
	add := func(name string) {
		if methods[name] {
			found[name] = true
		}
	}

	for _, m := range exportFuncRe.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	for _, m := range exportConstRe.FindAllStringSubmatch(code, -1) {
		add(m[1])
	}
	for _, m := range destructureRe.FindAllStringSubmatch(code, -1) {
		if m[1] == "" {
			// local bindings only count once re-exported below
			continue
		}
		for _, b := range destructuredBindings(m[2]) {
			add(b)
		}
	}
	for _, m := range exportListRe.FindAllStringSubmatch(code, -1) {
		for _, name := range exportedNames(m[1]) {
			add(name)
		}
	}
	if pagesAPI && exportDefaultRe.MatchString(code) {
		found[MethodAny] = true
	}

	out := make([]string, 0, len(found))
	for m := range found {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// destructuredBindings returns the local names bound by an object pattern:
// "GET, POST: post, ...rest" -> GET, post, rest.
func destructuredBindings(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "..."))
		if part == "" {
			continue
		}
		if _, local, ok := strings.Cut(part, ":"); ok {
			part = strings.TrimSpace(local)
		}
		if name, _, ok := strings.Cut(part, "="); ok {
			part = strings.TrimSpace(name)
		}
		out = append(out, part)
	}
	return out
}

// exportedNames returns the public names of an export list:
// "handler as GET, POST" -> GET, POST.
func exportedNames(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if fields := strings.Fields(part); len(fields) > 0 {
			out = append(out, fields[len(fields)-1])
		}
	}
	return out
}

func isPagesAPI(rel string) bool {
	return strings.HasPrefix(rel, "pages/api/") || strings.Contains(rel, "/pages/api/")
}

// routeURL derives the served URL from a Next.js route file path. Route
// groups "(name)" do not contribute a segment.
func routeURL(rel string) string {
	p := strings.TrimPrefix(rel, "src/")
	ext := path.Ext(p)
	p = strings.TrimSuffix(p, ext)
	switch {
	case strings.HasPrefix(p, "app/"):
		p = strings.TrimPrefix(p, "app/")
		p = strings.TrimSuffix(p, "route")
	case strings.HasPrefix(p, "pages/"):
		p = strings.TrimPrefix(p, "pages/")
		p = strings.TrimSuffix(p, "index")
	}
	var segs []string
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || (strings.HasPrefix(seg, "(") && strings.HasSuffix(seg, ")")) {
			continue
		}
		segs = append(segs, seg)
	}
	return "/" + strings.Join(segs, "/")
}

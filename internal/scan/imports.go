package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajranjith/fixzit-agent/internal/jsimport"
	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/tree"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

const PatternUnresolvedImport = "imports.unresolved"

// Imports flags relative and aliased module specifiers that resolve to no
// file in the tree. Bare package specifiers are never checked.
type Imports struct{}

type ImportsDetails struct {
	FilesScanned int              `json:"filesScanned"`
	Checked      int              `json:"checked"`
	Unresolved   int              `json:"unresolved"`
	Waived       int              `json:"waived"`
	Failed       []tree.FileError `json:"failed,omitempty"`
}

type unresolvedImport struct {
	spec string
	line int
}

type importScan struct {
	checked    int
	waived     int
	unresolved []unresolvedImport
}

// esmExts are output extensions TypeScript sources may be imported by.
var esmExts = []string{".js", ".jsx", ".mjs", ".cjs"}

func (Imports) Name() string { return "imports" }

func (s Imports) Scan(ctx context.Context, in Input) (*model.ScanReport, error) {
	r := jsimport.Resolver{
		Files:   in.Tree,
		Exts:    in.Config.SourceExtensions,
		Aliases: jsimport.SortAliases(in.Aliases),
	}
	files := sourceFiles(in, waiver.CategoryImports)

	results, failed, err := tree.Map(ctx, in.Tree, files, func(rel string, data []byte) (importScan, error) {
		if tree.IsBinary(data) {
			return importScan{}, nil
		}
		var out importScan
		for _, ref := range jsimport.Extract(stripComments(string(data))) {
			base, _, ok := r.Base(rel, ref.Spec)
			if !ok {
				continue
			}
			out.checked++
			if in.Waivers.ImportWaived(ref.Spec) {
				out.waived++
				continue
			}
			if !resolves(r, base) {
				out.unresolved = append(out.unresolved, unresolvedImport{spec: ref.Spec, line: ref.Line})
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	col := newCollector(s.Name(), in.Waivers)
	details := &ImportsDetails{FilesScanned: len(results), Failed: failed}
	for _, res := range results {
		details.Checked += res.Value.checked
		details.Waived += res.Value.waived
		for _, u := range res.Value.unresolved {
			details.Unresolved++
			col.add(model.Finding{
				FilePath:   res.Path,
				LineNumber: u.line,
				Pattern:    PatternUnresolvedImport,
				Subject:    u.spec,
				Severity:   model.SeverityMajor,
				Message:    fmt.Sprintf("import %q does not resolve to a file in the workspace", u.spec),
			})
		}
	}
	return col.finish(details, failed), nil
}

// resolves also accepts "./x.js" naming the source "./x.ts".
func resolves(r jsimport.Resolver, base string) bool {
	if _, _, ok := r.Resolve(base); ok {
		return true
	}
	for _, ext := range esmExts {
		if strings.HasSuffix(base, ext) {
			_, _, ok := r.Resolve(strings.TrimSuffix(base, ext))
			return ok
		}
	}
	return false
}

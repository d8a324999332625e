package scan

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/tree"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

// Console flags console.<method>( calls left in source files.
type Console struct{}

type ConsoleDetails struct {
	FilesScanned int              `json:"filesScanned"`
	ByMethod     map[string]int   `json:"byMethod"`
	Waived       int              `json:"waived"`
	Failed       []tree.FileError `json:"failed,omitempty"`
}

type consoleCall struct {
	method string
	line   int
}

var consoleCallRe = regexp.MustCompile(`(?:^|[^\w$.])console\s*\.\s*([A-Za-z]+)\s*\(`)

func (Console) Name() string { return "console" }

func (s Console) Scan(ctx context.Context, in Input) (*model.ScanReport, error) {
	methods := map[string]bool{}
	for _, m := range in.Config.Console.Methods {
		methods[m] = true
	}
	files := sourceFiles(in, waiver.CategoryConsole)

	results, failed, err := tree.Map(ctx, in.Tree, files, func(rel string, data []byte) ([]consoleCall, error) {
		if tree.IsBinary(data) {
			return nil, nil
		}
		return findConsoleCalls(string(data), methods), nil
	})
	if err != nil {
		return nil, err
	}

	col := newCollector(s.Name(), in.Waivers)
	details := &ConsoleDetails{FilesScanned: len(results), ByMethod: map[string]int{}, Failed: failed}
	for _, r := range results {
		for _, call := range r.Value {
			if in.Waivers.ConsoleAllowed(call.method, r.Path) {
				details.Waived++
				continue
			}
			details.ByMethod[call.method]++
			col.add(model.Finding{
				FilePath:   r.Path,
				LineNumber: call.line,
				Pattern:    "console." + call.method,
				Severity:   model.SeverityModerate,
				Message:    fmt.Sprintf("console.%s call left in source", call.method),
			})
		}
	}
	return col.finish(details, failed), nil
}

// findConsoleCalls returns one entry per method and line, ignoring comments.
func findConsoleCalls(src string, methods map[string]bool) []consoleCall {
	code := stripComments(src)
	lines := newLineIndex(code)
	seen := map[consoleCall]bool{}
	var out []consoleCall
	for _, m := range consoleCallRe.FindAllStringSubmatchIndex(code, -1) {
		method := code[m[2]:m[3]]
		if !methods[method] {
			continue
		}
		call := consoleCall{method: method, line: lines.line(m[2])}
		if seen[call] {
			continue
		}
		seen[call] = true
		out = append(out, call)
	}
	return out
}

package scan

import (
	"context"
	"testing"

	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

func TestConsoleWaiverAllowedTypes(t *testing.T) {
	w := parseWaivers(t, `{"console": [{"pattern": "console.log", "allowedTypes": ["error", "warn"], "reason": "errors may be logged"}]}`)
	in := newInput(t, map[string]string{
		"lib/service.ts": "console.log(\"debug\")\nconsole.error(\"x\")\n",
	}, w)
	rep, err := Console{}.Scan(context.Background(), in)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rep.Findings) != 1 {
		t.Fatalf("expected exactly one finding, got %+v", rep.Findings)
	}
	f := rep.Findings[0]
	if f.Pattern != "console.log" || f.LineNumber != 1 {
		t.Fatalf("expected the console.log call, got %+v", f)
	}
	if rep.Details.(*ConsoleDetails).Waived != 1 {
		t.Fatal("expected the console.error call to be counted as waived")
	}
}

func TestConsoleIgnoresCommentsAndLookalikes(t *testing.T) {
	in := newInput(t, map[string]string{
		"lib/a.ts": `// console.log("old")
/* console.warn("old") */
myconsole.log("x")
logger.console.log("x")
console.info("a"); console.info("b")
console.table(rows)
`,
	}, waiver.Set{})
	rep, err := Console{}.Scan(context.Background(), in)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rep.Findings) != 1 || rep.Findings[0].Pattern != "console.info" || rep.Findings[0].LineNumber != 5 {
		t.Fatalf("expected one console.info finding on line 5, got %+v", rep.Findings)
	}
}

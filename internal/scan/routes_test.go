package scan

import (
	"context"
	"strings"
	"testing"
)

func TestDetectMethods(t *testing.T) {
	all := map[string]bool{"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "HEAD": true, "OPTIONS": true}
	cases := []struct {
		name  string
		src   string
		pages bool
		want  string
	}{
		{"direct function", `export async function GET(req: Request) {}` + "\n" + `export function POST() {}`, false, "GET,POST"},
		{"direct const", `export const PATCH = withAuth(async () => {})` + "\n" + `export const DELETE: Handler = h`, false, "DELETE,PATCH"},
		{"exported destructure", `export const { GET, POST } = createCrudHandlers(Model)`, false, "GET,POST"},
		{"local destructure re-exported", "const { GET, PUT: update } = handlers(x)\nexport { GET, update as PUT }", false, "GET,PUT"},
		{"re-export from", `export { GET, handler as POST } from "../shared/route"`, false, "GET,POST"},
		{"local destructure only", `const { GET } = handlers(x)`, false, ""},
		{"commented out", `// export async function GET() {}`, false, ""},
		{"helpers only", `export function helper() {}` + "\n" + `export const config = {}`, false, ""},
		{"pages default", `export default async function handler(req, res) {}`, true, "ANY"},
		{"app default ignored", `export default function x() {}`, false, ""},
	}
	for _, tc := range cases {
		got := strings.Join(DetectMethods(tc.src, all, tc.pages), ",")
		if got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestRouteURL(t *testing.T) {
	cases := map[string]string{
		"app/api/orders/route.ts":                 "/api/orders",
		"src/app/(admin)/api/users/[id]/route.ts": "/api/users/[id]",
		"pages/api/health.ts":                     "/api/health",
		"pages/api/work-orders/index.ts":          "/api/work-orders",
	}
	for in, want := range cases {
		if got := routeURL(in); got != want {
			t.Fatalf("routeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRoutesScan(t *testing.T) {
	w := parseWaivers(t, `{"routes": [
		{"pattern": "createLegacyRoute(", "reason": "framework factory"},
		{"path": "app/api/frozen/**", "reason": "frozen module"}
	]}`)
	in := newInput(t, map[string]string{
		"app/api/orders/route.ts":   `export async function GET() {}`,
		"app/api/empty/route.ts":    `export const dynamic = "force-dynamic"`,
		"app/api/legacy/route.ts":   `module.exports = createLegacyRoute(Model)`,
		"app/api/frozen/x/route.ts": `// nothing`,
		"pages/api/health.ts":       `export default function handler() {}`,
		"lib/not-a-route.ts":        `export const x = 1`,
	}, w)
	rep, err := Routes{}.Scan(context.Background(), in)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rep.Findings) != 1 || rep.Findings[0].FilePath != "app/api/empty/route.ts" || rep.Findings[0].Pattern != PatternNoHandler {
		t.Fatalf("expected one no-handler finding for the empty route, got %+v", rep.Findings)
	}
	details := rep.Details.(*RoutesDetails)
	if len(details.Routes) != 4 || details.WithHandler != 3 || details.NoHandler != 1 {
		t.Fatalf("unexpected route details: %+v", details)
	}
}

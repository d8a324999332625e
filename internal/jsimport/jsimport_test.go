package jsimport

import "testing"

func TestExtract(t *testing.T) {
	src := `import React from "react"
import { fmt,
  parse } from '../lib/money'
import "./styles.css"
export * from "./types"
const x = require('./legacy')
const y = await import("@/lib/lazy")
`
	refs := Extract(src)
	want := []string{"react", "../lib/money", "./styles.css", "./types", "./legacy", "@/lib/lazy"}
	if len(refs) != len(want) {
		t.Fatalf("expected %d refs, got %+v", len(want), refs)
	}
	for i, w := range want {
		if refs[i].Spec != w {
			t.Fatalf("ref %d: got %q, want %q", i, refs[i].Spec, w)
		}
		if src[refs[i].Start:refs[i].End] != w {
			t.Fatalf("ref %d: offsets do not bound the specifier", i)
		}
	}
	if refs[1].Line != 3 {
		t.Fatalf("expected multi-line import on line 3, got %d", refs[1].Line)
	}
}

func TestRelativeSpec(t *testing.T) {
	cases := []struct{ from, to, want string }{
		{"lib", "lib/a", "./a"},
		{"app/x", "lib/a", "../../lib/a"},
		{"", "lib/a", "./lib/a"},
		{"lib/deep", "lib/a", "../a"},
	}
	for _, tc := range cases {
		if got := RelativeSpec(tc.from, tc.to); got != tc.want {
			t.Fatalf("RelativeSpec(%q, %q) = %q, want %q", tc.from, tc.to, got, tc.want)
		}
	}
}

type fileSet map[string]bool

func (f fileSet) Has(rel string) bool { return f[rel] }

func TestResolver(t *testing.T) {
	r := Resolver{
		Files:   fileSet{"lib/money.ts": true, "components/ui/index.tsx": true, "styles/app.css": true},
		Exts:    []string{".ts", ".tsx"},
		Aliases: SortAliases(map[string]string{"@/": "", "@ui/": "components/ui"}),
	}
	cases := []struct {
		from, spec, target string
		ok                 bool
	}{
		{"app/page.tsx", "../lib/money", "lib/money.ts", true},
		{"app/page.tsx", "@/lib/money", "lib/money.ts", true},
		{"app/page.tsx", "@ui/", "components/ui/index.tsx", true},
		{"app/page.tsx", "../styles/app.css", "styles/app.css", true},
		{"app/page.tsx", "../lib/missing", "", false},
	}
	for _, tc := range cases {
		base, _, ok := r.Base(tc.from, tc.spec)
		if !ok {
			t.Fatalf("%s: expected a base path", tc.spec)
		}
		target, _, found := r.Resolve(base)
		if found != tc.ok || target != tc.target {
			t.Fatalf("%s: got %q %v, want %q %v", tc.spec, target, found, tc.target, tc.ok)
		}
	}
	if _, _, ok := r.Base("app/page.tsx", "react"); ok {
		t.Fatal("bare package specifiers have no base path")
	}
}

package pathglob

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"app/**/route.ts", "app/api/users/route.ts", true},
		{"app/**/route.ts", "app/route.ts", true},
		{"app/**/route.{ts,js}", "app/api/x/route.js", true},
		{"app/**/route.{ts,js}", "app/api/x/route.tsx", false},
		{"*.md", "README.md", true},
		{"*.md", "docs/README.md", false},
		{"**/*.md", "docs/README.md", true},
		{"node_modules/", "node_modules/react/index.js", true},
		{"lib/*.ts", "lib/a/b.ts", false},
		{"lib/?.ts", "lib/a.ts", true},
		{"", "anything", false},
	}
	for _, tc := range cases {
		if got := Match(tc.pattern, tc.path); got != tc.want {
			t.Fatalf("Match(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}

func TestMatchAny(t *testing.T) {
	if !MatchAny([]string{"x/**", "app/**/page.tsx"}, "app/a/page.tsx") {
		t.Fatal("expected a match")
	}
	if MatchAny(nil, "app/a/page.tsx") {
		t.Fatal("expected no match for empty pattern list")
	}
}

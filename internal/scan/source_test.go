package scan

import (
	"strings"
	"testing"
)

func TestStripCommentsRegexLiterals(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		keep    []string
		removed []string
	}{
		{
			name:    "backtick in regex",
			src:     "const re = /`/g\n// console.log('old')\nconsole.warn('y')\n",
			keep:    []string{"/`/g", "console.warn"},
			removed: []string{"console.log"},
		},
		{
			name:    "quote in class",
			src:     "if (/['\"/]/.test(s)) run()\n/* t('gone') */ t('kept')\n",
			keep:    []string{`/['"/]/`, "t('kept')"},
			removed: []string{"gone"},
		},
		{
			name:    "after return",
			src:     "function f() { return /\\/\\//.source } // console.log(1)\n",
			keep:    []string{`/\/\//`},
			removed: []string{"console.log"},
		},
		{
			name:    "division",
			src:     "const half = total / 2 // console.log(half)\nconst q = a / b / c\n",
			keep:    []string{"total / 2", "a / b / c"},
			removed: []string{"console.log"},
		},
		{
			name:    "jsx closing tag",
			src:     "return <p>{t('a')}</p> // console.log(x)\n",
			keep:    []string{"</p>"},
			removed: []string{"console.log"},
		},
	}
	for _, tc := range cases {
		got := stripComments(tc.src)
		if len(got) != len(tc.src) || strings.Count(got, "\n") != strings.Count(tc.src, "\n") {
			t.Fatalf("%s: offsets changed", tc.name)
		}
		for _, k := range tc.keep {
			if !strings.Contains(got, k) {
				t.Fatalf("%s: expected %q to survive in %q", tc.name, k, got)
			}
		}
		for _, r := range tc.removed {
			if strings.Contains(got, r) {
				t.Fatalf("%s: expected %q to be blanked in %q", tc.name, r, got)
			}
		}
	}
}

func TestConsoleIgnoresCommentAfterRegexLiteral(t *testing.T) {
	calls := findConsoleCalls("const tick = /`/\n// console.log('old')\nconsole.error('x')\n", map[string]bool{"log": true, "error": true})
	if len(calls) != 1 || calls[0].method != "error" || calls[0].line != 3 {
		t.Fatalf("expected only console.error on line 3, got %+v", calls)
	}
}

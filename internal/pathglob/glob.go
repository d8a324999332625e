// Package pathglob matches slash-separated relative paths against glob
// patterns supporting `*`, `?`, `**` and `{a,b}` alternation.
package pathglob

import (
	"path"
	"regexp"
	"strings"
	"sync"
)

var (
	mu    sync.Mutex
	cache = map[string]*regexp.Regexp{}
)

// Match reports whether rel matches pattern. A pattern ending in "/" matches
// everything below that directory.
func Match(pattern, rel string) bool {
	pattern = strings.TrimPrefix(toSlash(pattern), "./")
	rel = strings.TrimPrefix(toSlash(rel), "./")
	if pattern == "" {
		return false
	}
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(rel, pattern)
	}
	re := compile(pattern)
	if re.MatchString(rel) {
		return true
	}
	ok, _ := path.Match(pattern, rel)
	return ok
}

// MatchAny reports whether rel matches at least one of patterns.
func MatchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if Match(p, rel) {
			return true
		}
	}
	return false
}

// HasMeta reports whether s contains glob syntax.
func HasMeta(s string) bool {
	return strings.ContainsAny(s, "*?{[")
}

func compile(pattern string) *regexp.Regexp {
	mu.Lock()
	defer mu.Unlock()
	if re, ok := cache[pattern]; ok {
		return re
	}
	re := regexp.MustCompile("^" + translate(pattern) + "$")
	cache[pattern] = re
	return re
}

func translate(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '*' && strings.HasPrefix(pattern[i:], "**/"):
			b.WriteString("(?:.*/)?")
			i += 2
		case c == '*' && strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString("[^/]")
		case c == '{':
			end := strings.IndexByte(pattern[i:], '}')
			if end < 0 {
				b.WriteString(regexp.QuoteMeta(string(c)))
				continue
			}
			alts := strings.Split(pattern[i+1:i+end], ",")
			for j, a := range alts {
				alts[j] = translate(a)
			}
			b.WriteString("(?:" + strings.Join(alts, "|") + ")")
			i += end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

package scan

import (
	"sort"
	"strings"
)

// stripComments blanks out // and /* */ comments in JS/TS source while
// keeping byte offsets and newlines intact, so offsets still map to lines.
// String, template and regex literals are left alone.
func stripComments(src string) string {
	b := []byte(src)
	const (
		code = iota
		lineComment
		blockComment
		quoted
		regex
	)
	state := code
	var quote byte
	inClass := false
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch state {
		case code:
			switch {
			case c == '/' && i+1 < len(b) && b[i+1] == '/':
				state = lineComment
				b[i], b[i+1] = ' ', ' '
				i++
			case c == '/' && i+1 < len(b) && b[i+1] == '*':
				state = blockComment
				b[i], b[i+1] = ' ', ' '
				i++
			case c == '\'' || c == '"' || c == '`':
				state = quoted
				quote = c
			case c == '/' && regexAllowed(b, i):
				state = regex
				inClass = false
			}
		case lineComment:
			if c == '\n' {
				state = code
			} else {
				b[i] = ' '
			}
		case blockComment:
			if c == '*' && i+1 < len(b) && b[i+1] == '/' {
				b[i], b[i+1] = ' ', ' '
				i++
				state = code
			} else if c != '\n' {
				b[i] = ' '
			}
		case quoted:
			switch {
			case c == '\\':
				i++
			case c == quote:
				state = code
			case c == '\n' && quote != '`':
				state = code
			}
		case regex:
			switch {
			case c == '\\':
				i++
			case c == '[':
				inClass = true
			case c == ']':
				inClass = false
			case c == '/' && !inClass, c == '\n':
				state = code
			}
		}
	}
	return string(b)
}

// regexStarters are keywords after which a slash opens a regex literal.
var regexStarters = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// regexAllowed reports whether the slash at b[i] starts a regex literal
// rather than a division, judged by the previous significant byte. '<' and
// '>' are excluded so JSX closing tags stay code.
func regexAllowed(b []byte, i int) bool {
	j := i - 1
	for j >= 0 && (b[j] == ' ' || b[j] == '\t' || b[j] == '\n' || b[j] == '\r') {
		j--
	}
	if j < 0 {
		return true
	}
	if strings.IndexByte("(,=:[!&|?{};+-*%~^", b[j]) >= 0 {
		return true
	}
	end := j + 1
	for j >= 0 && isIdentByte(b[j]) {
		j--
	}
	return end > j+1 && regexStarters[string(b[j+1:end])]
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(src string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (l lineIndex) line(offset int) int {
	return sort.Search(len(l), func(i int) bool { return l[i] > offset })
}

// readStringLiteral reads a JS string literal starting at src[i] (which must
// be a quote). It returns the literal body, whether it contains template
// interpolation, the offset after the closing quote, and ok=false when the
// literal is unterminated.
func readStringLiteral(src string, i int) (body string, interpolated bool, end int, ok bool) {
	if i >= len(src) {
		return "", false, i, false
	}
	q := src[i]
	if q != '\'' && q != '"' && q != '`' {
		return "", false, i, false
	}
	var sb strings.Builder
	for j := i + 1; j < len(src); j++ {
		c := src[j]
		switch {
		case c == '\\' && j+1 < len(src):
			sb.WriteByte(src[j+1])
			j++
		case c == q:
			return sb.String(), interpolated, j + 1, true
		case c == '\n' && q != '`':
			return "", false, j, false
		case q == '`' && c == '$' && j+1 < len(src) && src[j+1] == '{':
			interpolated = true
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return "", false, len(src), false
}

func skipSpace(src string, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\n' || src[i] == '\r') {
		i++
	}
	return i
}

// matchingBrace returns the offset of the brace closing the one at src[i].
func matchingBrace(src string, i int) int {
	depth := 0
	for j := i; j < len(src); j++ {
		switch src[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

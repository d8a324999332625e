package scan

import (
	"regexp"
	"strings"
)

// CallKind is the closed set of translation call-site shapes.
type CallKind int

const (
	// DirectLiteral is t("a.b").
	DirectLiteral CallKind = iota
	// NamespacedLiteral is t("ns:a.b").
	NamespacedLiteral
	// OptionsObject is t("a.b", { ns: "x" }).
	OptionsObject
	// TransComponent is <Trans i18nKey="a.b" />.
	TransComponent
	// DynamicTemplate is any key that cannot be enumerated statically:
	// t(`a.${x}`), t(key), t("a." + x).
	DynamicTemplate
)

var callKindNames = [...]string{
	DirectLiteral:     "DirectLiteral",
	NamespacedLiteral: "NamespacedLiteral",
	OptionsObject:     "OptionsObject",
	TransComponent:    "TransComponent",
	DynamicTemplate:   "DynamicTemplate",
}

func (k CallKind) String() string {
	if int(k) < len(callKindNames) {
		return callKindNames[k]
	}
	return "Unknown"
}

// Static reports whether the key of a call site is known at scan time.
func (k CallKind) Static() bool { return k != DynamicTemplate }

// CallSite is one classified translation lookup. Key is the fully resolved
// dotted key and is empty for DynamicTemplate.
type CallSite struct {
	Kind CallKind
	Key  string
	Line int
}

// Classifier finds and classifies translation call sites in one pass.
type Classifier struct {
	call      *regexp.Regexp
	trans     *regexp.Regexp
	separator string
}

var (
	nsOptionRe  = regexp.MustCompile(`\bns\s*:\s*(?:'([^']*)'|"([^"]*)"|` + "`([^`$]*)`" + `)`)
	transAttrRe = regexp.MustCompile(`\b(i18nKey|ns)\s*=\s*`)
)

func NewClassifier(functions, components []string, separator string) *Classifier {
	fns := make([]string, 0, len(functions))
	for _, f := range functions {
		fns = append(fns, regexp.QuoteMeta(f))
	}
	comps := make([]string, 0, len(components))
	for _, c := range components {
		comps = append(comps, regexp.QuoteMeta(c))
	}
	c := &Classifier{separator: separator}
	if len(fns) > 0 {
		// The leading group rejects member access (x.t) and identifiers
		// ending in the function name (format, set).
		c.call = regexp.MustCompile(`(^|[^\w$.])(` + strings.Join(fns, "|") + `)\s*\(`)
	}
	if len(comps) > 0 {
		c.trans = regexp.MustCompile(`<(?:` + strings.Join(comps, "|") + `)\b`)
	}
	return c
}

// Classify returns the call sites of src in source order. Comments are ignored.
func (c *Classifier) Classify(src string) []CallSite {
	code := stripComments(src)
	lines := newLineIndex(code)
	var sites []CallSite
	if c.call != nil {
		for _, m := range c.call.FindAllStringSubmatchIndex(code, -1) {
			nameStart := m[4]
			if isDeclaration(code, m[2]) {
				continue
			}
			site := c.classifyCall(code, m[1])
			site.Line = lines.line(nameStart)
			sites = append(sites, site)
		}
	}
	if c.trans != nil {
		for _, m := range c.trans.FindAllStringIndex(code, -1) {
			site, ok := c.classifyTrans(code, m[1])
			if !ok {
				continue
			}
			site.Line = lines.line(m[0])
			sites = append(sites, site)
		}
	}
	sortSites(sites)
	return sites
}

// classifyCall inspects the arguments following an opening parenthesis.
func (c *Classifier) classifyCall(code string, argStart int) CallSite {
	i := skipSpace(code, argStart)
	body, interpolated, end, ok := readStringLiteral(code, i)
	if !ok || interpolated || body == "" {
		return CallSite{Kind: DynamicTemplate}
	}
	j := skipSpace(code, end)
	if j >= len(code) || (code[j] != ',' && code[j] != ')') {
		return CallSite{Kind: DynamicTemplate}
	}
	if key, ok := c.splitNamespace(body); ok {
		return CallSite{Kind: NamespacedLiteral, Key: key}
	}
	if code[j] == ',' {
		k := skipSpace(code, j+1)
		if k < len(code) && code[k] == '{' {
			if close := matchingBrace(code, k); close > k {
				if ns, ok := firstGroup(nsOptionRe.FindStringSubmatch(code[k:close])); ok && ns != "" {
					return CallSite{Kind: OptionsObject, Key: ns + "." + body}
				}
			}
		}
	}
	return CallSite{Kind: DirectLiteral, Key: body}
}

// classifyTrans reads the attributes of a Trans element up to the end of
// its opening tag. Elements without i18nKey are not lookups.
func (c *Classifier) classifyTrans(code string, attrStart int) (CallSite, bool) {
	end := strings.IndexByte(code[attrStart:], '>')
	if end < 0 {
		return CallSite{}, false
	}
	tag := code[attrStart : attrStart+end]
	var key, ns string
	var found, dynamic bool
	for _, m := range transAttrRe.FindAllStringSubmatchIndex(tag, -1) {
		name := tag[m[2]:m[3]]
		val, static := attrValue(tag, m[1])
		switch name {
		case "i18nKey":
			found = true
			if !static {
				dynamic = true
			}
			key = val
		case "ns":
			if static {
				ns = val
			}
		}
	}
	if !found {
		return CallSite{}, false
	}
	if dynamic || key == "" {
		return CallSite{Kind: DynamicTemplate}, true
	}
	if k, ok := c.splitNamespace(key); ok {
		return CallSite{Kind: TransComponent, Key: k}, true
	}
	if ns != "" {
		key = ns + "." + key
	}
	return CallSite{Kind: TransComponent, Key: key}, true
}

// attrValue reads a JSX attribute value: "x", 'x' or {"x"}.
func attrValue(tag string, i int) (string, bool) {
	if i >= len(tag) {
		return "", false
	}
	if tag[i] == '{' {
		j := skipSpace(tag, i+1)
		body, interpolated, end, ok := readStringLiteral(tag, j)
		if !ok || interpolated {
			return "", false
		}
		if k := skipSpace(tag, end); k >= len(tag) || tag[k] != '}' {
			return "", false
		}
		return body, true
	}
	body, interpolated, _, ok := readStringLiteral(tag, i)
	return body, ok && !interpolated
}

func (c *Classifier) splitNamespace(key string) (string, bool) {
	if c.separator == "" {
		return "", false
	}
	ns, rest, ok := strings.Cut(key, c.separator)
	if !ok || ns == "" || rest == "" {
		return "", false
	}
	return ns + "." + rest, true
}

// isDeclaration rejects `function t(` so helper definitions are not counted
// as lookups.
func isDeclaration(code string, at int) bool {
	before := strings.TrimRight(code[:at+1], " \t")
	return strings.HasSuffix(before, "function")
}

func firstGroup(m []string) (string, bool) {
	for _, g := range m[min(1, len(m)):] {
		if g != "" {
			return g, true
		}
	}
	return "", false
}

func sortSites(sites []CallSite) {
	// insertion sort keeps equal lines in discovery order
	for i := 1; i < len(sites); i++ {
		for j := i; j > 0 && sites[j].Line < sites[j-1].Line; j-- {
			sites[j], sites[j-1] = sites[j-1], sites[j]
		}
	}
}
